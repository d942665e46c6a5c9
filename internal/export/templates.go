package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var chapterTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/chapter.html")
	if err != nil {
		// Fallback to built-in template if file not found
		chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for chapter template rendering
type TemplateData struct {
	Title    string
	Summary  string
	SiteName string
	Pages    []TemplatePage
}

// TemplatePage holds one page's rendered content
type TemplatePage struct {
	ID          string
	Title       string
	ContentHTML template.HTML
	Author      string
	UpdatedAt   time.Time
	Comments    []TemplateComment
}

// TemplateComment holds comment data for template
type TemplateComment struct {
	Author string
	Body   string
}

// RenderChapterHTML renders the chapter template with provided data
func RenderChapterHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := chapterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .page { margin-bottom: 3rem; }
    .meta { color: #666; font-size: 0.9em; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Summary}}<p>{{.Summary}}</p>{{end}}
  {{range .Pages}}
  <section class="page" id="page-{{.ID}}">
    <h2>{{.Title}}</h2>
    <div class="meta">{{.Author}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
    <div>{{.ContentHTML | safeHTML}}</div>
    {{if .Comments}}
    <h3>Discussion</h3>
    {{range .Comments}}<div class="comment"><strong>{{.Author}}</strong>: {{.Body}}</div>{{end}}
    {{end}}
  </section>
  {{end}}
</body>
</html>`
