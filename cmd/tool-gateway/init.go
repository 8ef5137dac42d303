// ABOUTME: Interactive `init` command that writes a starter config file
// ABOUTME: Answers are substituted into the annotated sample so its comments survive

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/tool-gateway/internal/config"
)

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	HTTPAddr         string
	MongoURI         string
	AuditPath        string
	TailscaleEnabled bool
	TailscaleHost    string
	LogLevel         string
	LogFormat        string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		HTTPAddr:      "0.0.0.0:8000",
		MongoURI:      "mongodb://localhost:27017",
		TailscaleHost: "tool-gateway",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("tool-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	defaultConfigPath, err := config.DefaultPath()
	if err != nil {
		return err
	}

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	a := defaultAnswers()

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", a.HTTPAddr)

	fmt.Println("\n--- MongoDB Configuration ---")
	a.MongoURI = prompt(reader, "MongoDB URI", a.MongoURI)

	fmt.Println("\n--- Audit Log ---")
	a.AuditPath = prompt(reader, "SQLite invocation log path (empty disables)", "")

	fmt.Println("\n--- Tailscale Configuration ---")
	a.TailscaleEnabled = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TailscaleHost = prompt(reader, "Tailscale hostname", a.TailscaleHost)
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", a.LogLevel)
	a.LogFormat = prompt(reader, "Log format (text/json)", a.LogFormat)

	content := renderConfig(a)

	// Refuse to write something the server would reject at startup.
	if _, err := config.Parse([]byte(content), false); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("Start the gateway with: tool-gateway serve")
	return nil
}

// renderConfig fills the sample config with the collected answers.
func renderConfig(a initAnswers) string {
	replacements := []struct{ old, new string }{
		{`http_addr: "0.0.0.0:8000"`, fmt.Sprintf("http_addr: %q", a.HTTPAddr)},
		{`uri: "mongodb://localhost:27017"`, fmt.Sprintf("uri: %q", a.MongoURI)},
		{`level: "info"`, fmt.Sprintf("level: %q", a.LogLevel)},
		{`format: "text"`, fmt.Sprintf("format: %q", a.LogFormat)},
		{`hostname: "tool-gateway"`, fmt.Sprintf("hostname: %q", a.TailscaleHost)},
	}
	if a.AuditPath != "" {
		replacements = append(replacements, struct{ old, new string }{
			`path: ""   # e.g. ~/.local/share/tool-gateway/invocations.db`,
			fmt.Sprintf("path: %q", a.AuditPath),
		})
	}
	if a.TailscaleEnabled {
		replacements = append(replacements, struct{ old, new string }{
			"tailscale:\n  enabled: false",
			"tailscale:\n  enabled: true",
		})
	}

	out := "# Generated by tool-gateway init\n" + config.Sample
	for _, r := range replacements {
		out = strings.Replace(out, r.old, r.new, 1)
	}
	return out
}

func yes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
