package sources

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the text content of an HTML fragment. Script and style
// bodies are dropped. Plain text passes through untouched.
func StripHTML(text string) string {
	if !strings.Contains(text, "<") {
		return strings.TrimSpace(text)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(text))

	var (
		b    strings.Builder
		skip int
	)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
