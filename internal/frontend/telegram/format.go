package telegram

import (
	"html"
	"regexp"
	"strings"

	"github.com/goonbox/plexcord/internal/core"
)

// Telegram length limits.
const (
	maxCaptionLen = 1024
	maxMessageLen = 4096
)

// boldRe matches the "**label:**" markers used in embed descriptions.
var boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

// RenderHTML renders an embed as Telegram HTML, cut to at most limit runes of visible text.
func RenderHTML(e *core.Embed, limit int) string {
	var b strings.Builder

	title := html.EscapeString(e.Title)
	if e.URL != "" {
		title = `<a href="` + html.EscapeString(e.URL) + `">` + title + `</a>`
	}
	b.WriteString("<b>" + title + "</b>")

	if e.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(markdownToHTML(truncate(e.Description, limit-len([]rune(e.Title))-len([]rune(e.Footer))-4)))
	}
	if e.Footer != "" {
		b.WriteString("\n\n<i>" + html.EscapeString(e.Footer) + "</i>")
	}
	return b.String()
}

// markdownToHTML escapes s and turns **bold** spans into <b> tags.
func markdownToHTML(s string) string {
	return boldRe.ReplaceAllString(html.EscapeString(s), "<b>$1</b>")
}

// truncate cuts s to n runes at a line boundary when possible.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	cut := string(r[:n-1])
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
