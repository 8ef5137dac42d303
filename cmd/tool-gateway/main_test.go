// ABOUTME: Tests for the tool-gateway command helpers
// ABOUTME: Covers logger setup, config rendering and client request building

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tool-gateway/internal/config"
	"github.com/2389/tool-gateway/internal/mcp"
	"github.com/2389/tool-gateway/internal/toolbox"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "mcp").WithGroup("req").Info("served", "tool_name", "no_op")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF served")
	assert.Contains(t, out, "component=mcp")
	assert.Contains(t, out, "req.tool_name=no_op")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("skipped")
	logger.Warn("kept", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestRenderConfig(t *testing.T) {
	a := defaultAnswers()
	a.HTTPAddr = "127.0.0.1:9000"
	a.MongoURI = "mongodb://db.internal:27017"
	a.AuditPath = "/var/lib/tool-gateway/audit.db"
	a.TailscaleEnabled = true
	a.TailscaleHost = "traffic-tools"
	a.LogFormat = "json"

	cfg, err := config.Parse([]byte(renderConfig(a)), false)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "/var/lib/tool-gateway/audit.db", cfg.Audit.Path)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Equal(t, "traffic-tools", cfg.Tailscale.Hostname)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "tool-gateway", cfg.Telemetry.ServiceName)
}

func TestRenderConfigDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(renderConfig(defaultAnswers())), false)
	require.NoError(t, err)

	assert.False(t, cfg.Tailscale.Enabled)
	assert.Empty(t, cfg.Audit.Path)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.HTTPAddr)
}

func TestYes(t *testing.T) {
	assert.True(t, yes("y"))
	assert.True(t, yes(" YES "))
	assert.False(t, yes("no"))
	assert.False(t, yes(""))
}

func TestBaseURL(t *testing.T) {
	got, err := baseURL("0.0.0.0:8000")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", got)

	got, err = baseURL("10.1.2.3:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://10.1.2.3:8080", got)

	_, err = baseURL("no-port")
	assert.Error(t, err)
}

func TestBuildInvokeBody(t *testing.T) {
	body, err := buildInvokeBody([]string{"get_peak_flow_timestamp"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"get_peak_flow_timestamp"}`, string(body))

	body, err = buildInvokeBody([]string{"count_all_lanes", `{"database":"traffic_db"}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"count_all_lanes","input":{"database":"traffic_db"}}`, string(body))

	_, err = buildInvokeBody([]string{"find", "{not json"})
	assert.Error(t, err)

	_, err = buildInvokeBody(nil)
	assert.Error(t, err)
}

func TestPrintManifest(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printManifest(&buf, mcp.Manifest{
		Name: "MongoToolServer",
		Tools: []toolbox.ManifestEntry{
			{Name: "no_op"},
			{Name: "find", Parameters: []toolbox.ManifestParam{
				{Name: "database", Type: "str", Default: toolbox.RequiredLabel},
				{Name: "limit", Type: "int", Default: 10},
			}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "MongoToolServer (2 tools)")
	assert.Contains(t, out, "database str=REQUIRED, limit int=10")
}

func TestRedactURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", redactURI("mongodb://localhost:27017"))
	assert.Equal(t, "mongodb://admin:xxxxx@db:27017", redactURI("mongodb://admin:secret@db:27017"))
}
