// ABOUTME: Client subcommands that talk to a running gateway over HTTP
// ABOUTME: health, tools and call use the readiness probe, manifest and legacy invoke endpoints

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tool-gateway/internal/mcp"
)

// envGatewayURL overrides the gateway address derived from the config file.
const envGatewayURL = "TOOL_GATEWAY_URL"

const clientTimeout = 30 * time.Second

// gatewayURL returns the base URL for client commands.
func gatewayURL() (string, error) {
	if u := os.Getenv(envGatewayURL); u != "" {
		return strings.TrimRight(u, "/"), nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	return baseURL(cfg.Server.HTTPAddr)
}

// baseURL turns a listen address into a URL a local client can dial.
func baseURL(listenAddr string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid http_addr %q: %w", listenAddr, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return (&url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}).String(), nil
}

func doRequest(ctx context.Context, method, target string, body io.Reader) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func runHealth(ctx context.Context) error {
	base, err := gatewayURL()
	if err != nil {
		return err
	}

	status, body, err := doRequest(ctx, http.MethodGet, base+"/health/ready", nil)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(string(body))
	if status != http.StatusOK {
		color.Red("✗ %s: %s", base, text)
		return fmt.Errorf("gateway not ready (status %d)", status)
	}
	color.Green("✓ %s: %s", base, text)
	return nil
}

func runTools(ctx context.Context) error {
	base, err := gatewayURL()
	if err != nil {
		return err
	}

	status, body, err := doRequest(ctx, http.MethodGet, base+"/mcp/manifest", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return responseError(status, body)
	}

	var manifest mcp.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}

	printManifest(os.Stdout, manifest)
	return nil
}

// printManifest writes one row per tool with its parameter signature.
func printManifest(w io.Writer, m mcp.Manifest) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s", m.Name)
	fmt.Fprintf(w, " (%d tools)\n\n", len(m.Tools))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range m.Tools {
		params := make([]string, 0, len(t.Parameters))
		for _, p := range t.Parameters {
			params = append(params, fmt.Sprintf("%s %s=%v", p.Name, p.Type, p.Default))
		}
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, strings.Join(params, ", "))
	}
	_ = tw.Flush()
}

// buildInvokeBody assembles the legacy invoke request from CLI arguments.
func buildInvokeBody(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: tool-gateway call TOOL [JSON-ARGUMENTS]")
	}

	req := mcp.InvokeRequest{Tool: args[0]}
	if len(args) > 1 {
		raw := json.RawMessage(args[1])
		if !json.Valid(raw) {
			return nil, fmt.Errorf("arguments are not valid JSON: %s", args[1])
		}
		req.Input = raw
	}
	return json.Marshal(req)
}

func runCall(ctx context.Context, args []string) error {
	payload, err := buildInvokeBody(args)
	if err != nil {
		return err
	}

	base, err := gatewayURL()
	if err != nil {
		return err
	}

	status, body, err := doRequest(ctx, http.MethodPost, base+"/mcp/invoke", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return responseError(status, body)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(out.String())
	return nil
}

func responseError(status int, body []byte) error {
	var e mcp.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("gateway returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("gateway returned %d: %s", status, strings.TrimSpace(string(body)))
}
