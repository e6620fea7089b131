package web

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// promptPreviewRunes bounds the prompt text shown in a job row.
const promptPreviewRunes = 160

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
	textSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
	textSanitizer = bluemonday.StrictPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// RenderPrompt renders a user prompt for the job list. Prompts are free text
// typed by the user, so markup is rendered and then sanitized, and long
// prompts are cut to a preview with an ellipsis before rendering.
func RenderPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) > promptPreviewRunes {
		prompt = string([]rune(prompt)[:promptPreviewRunes]) + "…"
	}
	return RenderMarkdown(prompt)
}

// PlainText strips all markup from s and returns HTML-safe text. Used where
// markup is never wanted, such as provider error messages echoed into the page.
func PlainText(s string) string {
	return strings.TrimSpace(textSanitizer.Sanitize(s))
}
