package mdrm

import (
	"strings"

	"golang.org/x/net/html"
)

// Windows typography and other non-standard characters that show up in the
// dictionary text, normalized to plain ASCII.
var charReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
	"…", "...",
	" ", " ",
	"­", "",
)

// Clean strips HTML markup out of a dictionary cell, unescapes entities,
// normalizes Windows typography and collapses whitespace.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	if strings.ContainsAny(text, "<&") {
		text = stripHTML(text)
	}
	text = charReplacer.Replace(text)

	// Collapse runs of whitespace (including stray control characters).
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r < 0x20
	})
	return strings.Join(fields, " ")
}

// stripHTML tokenizes the fragment and keeps only text content. The
// tokenizer also unescapes entities in text tokens.
func stripHTML(fragment string) string {
	tz := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		tt := tz.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(tz.Token().Data)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Block-ish tags separate words once the markup is gone.
			b.WriteByte(' ')
		}
	}
}
