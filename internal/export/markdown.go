// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/storage"
	"github.com/jeranaias/agentchat/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title        string    `yaml:"title"`
	Conversation string    `yaml:"conversation"`
	Date         time.Time `yaml:"date"`
	Updated      time.Time `yaml:"updated"`
	Messages     int       `yaml:"messages"`
	Exported     time.Time `yaml:"exported"`
	Generator    string    `yaml:"generator"`
}

// MarkdownExporter writes a conversation as Markdown, with YAML
// frontmatter when metadata is enabled.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	var buf bytes.Buffer
	if e.options.IncludeMetadata {
		if err := e.writeFrontmatter(&buf, conv); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(&buf, "# %s\n\n", escapeMarkdown(util.SingleLine(conv.Summary)))

	if e.options.IncludeMetadata {
		fmt.Fprintf(&buf, "- **Conversation**: `%s`\n", conv.ID)
		fmt.Fprintf(&buf, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&buf, "- **Last Updated**: %s\n", formatTimestamp(conv.UpdatedAt))
		fmt.Fprintf(&buf, "- **Messages**: %d\n\n---\n\n", len(conv.Messages))
	}

	if len(conv.Messages) == 0 {
		buf.WriteString("_No messages._\n")
		return buf.Bytes(), nil
	}
	for _, msg := range conv.Messages {
		e.writeMessage(&buf, msg)
	}
	return buf.Bytes(), nil
}

// writeFrontmatter marshals the header with yaml so titles taken from user
// text cannot add keys.
func (e *MarkdownExporter) writeFrontmatter(buf *bytes.Buffer, conv *storage.StoredConversation) error {
	data, err := yaml.Marshal(frontmatter{
		Title:        conv.Summary,
		Conversation: conv.ID,
		Date:         conv.CreatedAt.UTC(),
		Updated:      conv.UpdatedAt.UTC(),
		Messages:     len(conv.Messages),
		Exported:     e.options.now().UTC(),
		Generator:    "agentchat",
	})
	if err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n\n")
	return nil
}

func (e *MarkdownExporter) writeMessage(buf *bytes.Buffer, msg model.Message) {
	buf.WriteString("**" + msg.Role.DisplayName() + "**")
	if e.options.IncludeTimestamps {
		buf.WriteString(" _(" + formatShortTimestamp(msg.Timestamp) + ")_")
	}
	buf.WriteString("\n\n")
	if msg.Content == "" {
		buf.WriteString("_(no reply)_")
	} else {
		buf.WriteString(msg.Content)
	}
	buf.WriteString("\n\n---\n\n")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
)

// escapeMarkdown escapes characters that would start Markdown syntax in a
// heading.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
