// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/storage"
)

var (
	codeBlockRe  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page with
// embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// pageData feeds pageTemplate.
type pageData struct {
	Title      string
	Theme      string
	CreatedISO string
	CreatedAt  string
	Metadata   bool
	ID         string
	Count      int
	Messages   []messageData
	Exported   string
}

type messageData struct {
	Role      string
	Label     string
	Timestamp string
	Body      template.HTML
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	data := pageData{
		Title:      conv.Summary,
		Theme:      "dark",
		CreatedISO: conv.CreatedAt.Format(time.RFC3339),
		CreatedAt:  formatTimestamp(conv.CreatedAt),
		Metadata:   e.options.IncludeMetadata,
		ID:         conv.ID,
		Count:      len(conv.Messages),
		Exported:   e.options.now().Format("January 2, 2006 at 3:04 PM"),
	}
	if e.options.Theme == "light" {
		data.Theme = "light"
	}
	for _, msg := range conv.Messages {
		data.Messages = append(data.Messages, e.messageData(msg))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *HTMLExporter) messageData(msg model.Message) messageData {
	role := msg.Role
	if !role.Valid() {
		role = model.RoleAssistant
	}
	m := messageData{
		Role:  string(role),
		Label: role.DisplayName(),
		// formatContent escapes everything it does not generate itself.
		Body: template.HTML(e.formatContent(msg.Content)),
	}
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		m.Timestamp = formatShortTimestamp(msg.Timestamp)
	}
	return m
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// CONTENT
// =============================================================================

// formatContent escapes content, highlights fenced code, marks inline
// code and wraps the remaining text in paragraphs.
func (e *HTMLExporter) formatContent(content string) string {
	var out []string
	rest := content
	for {
		loc := codeBlockRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			out = append(out, paragraphs(rest)...)
			break
		}
		out = append(out, paragraphs(rest[:loc[0]])...)

		lang := rest[loc[2]:loc[3]]
		code := strings.TrimRight(rest[loc[4]:loc[5]], "\n")
		label := ""
		if lang != "" {
			label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
		}
		out = append(out, fmt.Sprintf("<div class=\"code-block\">%s<pre><code class=\"language-%s\">%s</code></pre></div>",
			label, html.EscapeString(lang), e.highlightCode(code, lang)))
		rest = rest[loc[1]:]
	}
	return strings.Join(out, "\n")
}

// highlightCode renders code as spans with inline colors. Code in an
// unknown language is only escaped.
func (e *HTMLExporter) highlightCode(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return html.EscapeString(code)
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if e.options.Theme == "light" {
		styleName = "github"
	}
	style := chromastyles.Get(styleName)
	if style == nil {
		style = chromastyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return html.EscapeString(code)
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.PreventSurroundingPre(true))

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return html.EscapeString(code)
	}
	return buf.String()
}

func paragraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRe.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return out
}

// =============================================================================
// PAGE
// =============================================================================

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <meta name="generator" content="agentchat">
    <style>` + pageCSS + `    </style>
</head>
<body class="{{.Theme}}-theme">
    <div class="container">
{{- if .Metadata}}
        <header class="header">
            <h1>{{.Title}}</h1>
            <div class="metadata">
                <span class="meta-item"><strong>Conversation:</strong> <code>{{.ID}}</code></span>
                <span class="meta-item"><strong>Created:</strong> <time datetime="{{.CreatedISO}}">{{.CreatedAt}}</time></span>
                <span class="meta-item"><strong>Messages:</strong> {{.Count}}</span>
            </div>
        </header>
{{- end}}
        <main class="conversation">
{{- range .Messages}}
            <div class="message {{.Role}}-message">
                <div class="message-header">
                    <span class="role-label">{{.Label}}</span>
{{- if .Timestamp}}
                    <span class="timestamp">{{.Timestamp}}</span>
{{- end}}
                </div>
                <div class="message-content">
{{.Body}}
                </div>
            </div>
{{- else}}
            <p class="empty">No messages.</p>
{{- end}}
        </main>
        <footer class="footer">
            <p>Exported from <strong>agentchat</strong> on {{.Exported}}</p>
        </footer>
    </div>
</body>
</html>
`))

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #2d2a45;
            --assistant-bg: #1f2335;
            --code-bg: #16161e;
            --accent-user: #bb9af7;
            --accent-agent: #7dcfff;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f3effc;
            --assistant-bg: #ffffff;
            --code-bg: #f6f8fa;
            --accent-user: #6f42c1;
            --accent-agent: #0366d6;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 28px 32px; border-bottom: 2px solid var(--border-color); }
        .header h1 { font-size: 26px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 24px 32px; display: flex; flex-direction: column; gap: 16px; }
        .message { padding: 14px 18px; border-radius: 10px; border: 1px solid var(--border-color); }
        .user-message { background: var(--user-bg); }
        .assistant-message { background: var(--assistant-bg); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 6px; font-size: 13px; }
        .user-message .role-label { color: var(--accent-user); font-weight: 700; }
        .assistant-message .role-label { color: var(--accent-agent); font-weight: 700; }
        .timestamp { color: var(--text-muted); }
        .message-content p + p { margin-top: 10px; }
        .code-block { margin: 10px 0; background: var(--code-bg); border-radius: 6px; overflow-x: auto; }
        .code-lang { font-size: 12px; padding: 4px 10px; color: var(--text-muted); border-bottom: 1px solid var(--border-color); }
        pre { padding: 10px; font-family: "SF Mono", Monaco, "Fira Code", monospace; font-size: 14px; }
        .inline-code { background: var(--code-bg); padding: 1px 5px; border-radius: 4px; }
        .empty { color: var(--text-muted); font-style: italic; }
        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-muted); border-top: 1px solid var(--border-color); }
`
