// ABOUTME: Human-readable tool documentation rendered from the live manifest.
// ABOUTME: Builds Markdown per request and converts it to HTML with goldmark.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/tool-gateway/internal/toolbox"
)

var (
	docsMarkdown     goldmark.Markdown
	docsMarkdownOnce sync.Once
)

func markdownRenderer() goldmark.Markdown {
	docsMarkdownOnce.Do(func() {
		docsMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return docsMarkdown
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: .25rem .5rem; text-align: left; }
code { background: #f4f4f4; padding: 0 .2rem; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

// handleDocs serves GET /mcp/docs.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	md := manifestMarkdown(s.info, s.dispatcher.Registry().Manifest())

	var htmlBuf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(md), &htmlBuf); err != nil {
		s.logger.Error("failed to convert markdown", "error", err)
		htmlBuf.Reset()
		htmlBuf.WriteString("<p>Failed to render tool documentation.</p>")
	}

	data := struct {
		Title   string
		Content template.HTML
	}{
		Title:   s.info.Name + " tools",
		Content: template.HTML(htmlBuf.String()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := docsPage.Execute(w, data); err != nil {
		s.logger.Error("failed to render docs page", "error", err)
	}
}

// manifestMarkdown renders the manifest as a Markdown document.
func manifestMarkdown(info ServerInfo, tools []toolbox.ManifestEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(info.Name))
	if info.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(info.Description))
	}
	fmt.Fprintf(&b, "Version `%s`. %d tools.\n\n", info.Version, len(tools))

	for _, t := range tools {
		fmt.Fprintf(&b, "## `%s`\n\n", t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(t.Description))
		}
		if len(t.Parameters) == 0 {
			b.WriteString("_No parameters._\n\n")
			continue
		}
		b.WriteString("| Parameter | Type | Default | Description |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, p := range t.Parameters {
			typ := p.Type
			if len(p.Enum) > 0 {
				typ += ": " + strings.Join(p.Enum, ", ")
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
				p.Name,
				escapeCell(typ),
				escapeCell(formatDefault(p.Default)),
				escapeCell(p.Description),
			)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatDefault renders a default value for display.
func formatDefault(v any) string {
	if v == toolbox.RequiredLabel {
		return "**required**"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return "`" + string(data) + "`"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
	"<", "&lt;",
	">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// escapeCell keeps table cells on one line and escapes pipes.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
