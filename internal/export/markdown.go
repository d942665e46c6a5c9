package export

import (
	"bytes"
	"fmt"
	"html"
	"log"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// MarkdownToHTML renders markdown to HTML. On a render error the raw text
// is returned escaped so the export still produces something readable.
func MarkdownToHTML(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		log.Printf("export: markdown render: %v", err)
		return "<p>" + html.EscapeString(source) + "</p>"
	}
	return buf.String()
}

// ParagraphInfo is one content block of a page.
type ParagraphInfo struct {
	ID           string
	Type         string
	Content      string
	Caption      string
	MediaURL     string
	LinkedPageID string
	LinkedTitle  string
}

// renderParagraphHTML turns a paragraph into HTML according to its type.
func renderParagraphHTML(p ParagraphInfo) string {
	switch p.Type {
	case "image":
		caption := ""
		if p.Caption != "" {
			caption = fmt.Sprintf("<figcaption>%s</figcaption>", html.EscapeString(p.Caption))
		}
		return fmt.Sprintf(`<figure><img src=%q alt=%q>%s</figure>`,
			p.MediaURL, p.Caption, caption)
	case "quote":
		return "<blockquote>" + MarkdownToHTML(p.Content) + "</blockquote>"
	case "page_link":
		title := p.LinkedTitle
		if title == "" {
			title = p.Content
		}
		return fmt.Sprintf(`<p class="page-link"><a href="#page-%s">%s</a></p>`,
			html.EscapeString(p.LinkedPageID), html.EscapeString(title))
	default:
		// text and list content is markdown
		return MarkdownToHTML(p.Content)
	}
}
