package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMarkdownToHTML(t *testing.T) {
	html := MarkdownToHTML("# Heading\n\nSome **bold** text.")
	if !strings.Contains(html, "<h1") {
		t.Errorf("expected heading in output, got %s", html)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("expected bold text in output, got %s", html)
	}
}

func TestMarkdownToHTMLTable(t *testing.T) {
	html := MarkdownToHTML("| a | b |\n|---|---|\n| 1 | 2 |")
	if !strings.Contains(html, "<table>") {
		t.Errorf("expected GFM table in output, got %s", html)
	}
}

func TestRenderParagraphHTML(t *testing.T) {
	tests := []struct {
		name      string
		paragraph ParagraphInfo
		want      string
	}{
		{
			name:      "text renders markdown",
			paragraph: ParagraphInfo{Type: "text", Content: "plain *emphasis*"},
			want:      "<em>emphasis</em>",
		},
		{
			name:      "image renders figure",
			paragraph: ParagraphInfo{Type: "image", MediaURL: "https://cdn/img.png", Caption: "A map"},
			want:      "<figcaption>A map</figcaption>",
		},
		{
			name:      "quote wraps blockquote",
			paragraph: ParagraphInfo{Type: "quote", Content: "wise words"},
			want:      "<blockquote>",
		},
		{
			name:      "page link uses anchor",
			paragraph: ParagraphInfo{Type: "page_link", LinkedPageID: "pg_1", LinkedTitle: "Next"},
			want:      `href="#page-pg_1"`,
		},
		{
			name:      "list renders markdown",
			paragraph: ParagraphInfo{Type: "list", Content: "- one\n- two"},
			want:      "<li>one</li>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderParagraphHTML(tt.paragraph)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output, got %s", tt.want, got)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chapter One", "Chapter-One"},
		{"Глава первая", "chapter"},
		{"a/b\\c:d", "abcd"},
		{"", "chapter"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if strings.Contains(got, "+") {
		t.Error("data URL encoding must not use + for spaces")
	}
	if !strings.Contains(got, "%20") {
		t.Errorf("expected %%20 for space, got %s", got)
	}
	if strings.Contains(got, "<") {
		t.Errorf("expected < to be encoded, got %s", got)
	}
}

func TestRenderChapterHTML(t *testing.T) {
	data := TemplateData{
		Title:    "The First Chapter",
		Summary:  "How it began",
		SiteName: "Folio",
		Pages: []TemplatePage{
			{
				ID:          "pg_1",
				Title:       "Opening",
				ContentHTML: "<p>hello</p>",
				Author:      "Ed Itor",
				UpdatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Comments: []TemplateComment{
					{Author: "Reader", Body: "nice"},
				},
			},
		},
	}

	html, err := RenderChapterHTML(data)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{"The First Chapter", "How it began", "Opening", "<p>hello</p>", "Reader", `id="page-pg_1"`} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in rendered HTML", want)
		}
	}
}

type fakeExportStore struct {
	chapter    ChapterInfo
	pages      []PageInfo
	paragraphs map[string][]ParagraphInfo
	comments   map[string][]CommentInfo
	chapterErr error
}

func (f *fakeExportStore) GetChapter(ctx context.Context, chapterID, lang string) (ChapterInfo, error) {
	if f.chapterErr != nil {
		return ChapterInfo{}, f.chapterErr
	}
	return f.chapter, nil
}

func (f *fakeExportStore) ListPages(ctx context.Context, chapterID, lang string, includeHidden bool) ([]PageInfo, error) {
	return f.pages, nil
}

func (f *fakeExportStore) ListParagraphs(ctx context.Context, pageID, lang string, includeHidden bool) ([]ParagraphInfo, error) {
	return f.paragraphs[pageID], nil
}

func (f *fakeExportStore) ListPageComments(ctx context.Context, pageID string) ([]CommentInfo, error) {
	return f.comments[pageID], nil
}

func newFakeExportStore() *fakeExportStore {
	return &fakeExportStore{
		chapter: ChapterInfo{ID: "ch_1", Title: "Chapter", Summary: "Summary"},
		pages: []PageInfo{
			{ID: "pg_1", Title: "First Page", Body: "Body one", UpdatedBy: "Ed"},
			{ID: "pg_2", Title: "Second Page", Body: "Body two", UpdatedBy: "Ed"},
		},
		paragraphs: map[string][]ParagraphInfo{
			"pg_1": {{ID: "par_1", Type: "text", Content: "a paragraph"}},
		},
		comments: map[string][]CommentInfo{
			"pg_1": {
				{Author: "Reader", Body: "great"},
				{Author: "Ghost", Body: "gone", IsDeleted: true},
			},
		},
	}
}

func TestBuildHTMLWholeChapter(t *testing.T) {
	svc := NewService(newFakeExportStore(), "Folio")

	html, title, err := svc.BuildHTML(context.Background(), Request{ChapterID: "ch_1", Language: "en"})
	if err != nil {
		t.Fatalf("BuildHTML failed: %v", err)
	}
	if title != "Chapter" {
		t.Errorf("expected chapter title, got %s", title)
	}
	for _, want := range []string{"First Page", "Second Page", "a paragraph"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML", want)
		}
	}
	if strings.Contains(html, "great") {
		t.Error("comments must be excluded unless requested")
	}
}

func TestBuildHTMLSinglePage(t *testing.T) {
	svc := NewService(newFakeExportStore(), "Folio")

	html, title, err := svc.BuildHTML(context.Background(), Request{
		ChapterID:       "ch_1",
		PageID:          "pg_1",
		Language:        "en",
		IncludeComments: true,
	})
	if err != nil {
		t.Fatalf("BuildHTML failed: %v", err)
	}
	if title != "First Page" {
		t.Errorf("expected page title for single page export, got %s", title)
	}
	if strings.Contains(html, "Second Page") {
		t.Error("single page export must not include other pages")
	}
	if !strings.Contains(html, "great") {
		t.Error("expected comment in output")
	}
	if strings.Contains(html, "gone") {
		t.Error("deleted comments must be skipped")
	}
}

func TestBuildHTMLUnknownPage(t *testing.T) {
	svc := NewService(newFakeExportStore(), "Folio")

	_, _, err := svc.BuildHTML(context.Background(), Request{ChapterID: "ch_1", PageID: "missing"})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("expected ErrContentUnavailable, got %v", err)
	}
}
