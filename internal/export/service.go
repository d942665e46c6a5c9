package export

import (
	"context"
	"fmt"
	"html/template"
	"time"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetChapter(ctx context.Context, chapterID, lang string) (ChapterInfo, error)
	ListPages(ctx context.Context, chapterID, lang string, includeHidden bool) ([]PageInfo, error)
	ListParagraphs(ctx context.Context, pageID, lang string, includeHidden bool) ([]ParagraphInfo, error)
	ListPageComments(ctx context.Context, pageID string) ([]CommentInfo, error)
}

// ChapterInfo holds basic chapter metadata
type ChapterInfo struct {
	ID      string
	Title   string
	Summary string
}

// PageInfo holds page metadata and body
type PageInfo struct {
	ID        string
	Title     string
	Body      string
	UpdatedBy string
	UpdatedAt time.Time
}

// CommentInfo holds comment data for export
type CommentInfo struct {
	Author    string
	Body      string
	IsDeleted bool
}

// Service provides chapter export functionality
type Service struct {
	store    DataStore
	siteName string
}

// NewService creates a new export service
func NewService(store DataStore, siteName string) *Service {
	return &Service{store: store, siteName: siteName}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	html, title, err := s.BuildHTML(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// BuildHTML assembles the printable HTML for a chapter, or a single page of
// it when req.PageID is set. Returns the rendered HTML and the title used
// for the output filename.
func (s *Service) BuildHTML(ctx context.Context, req Request) (string, string, error) {
	chapter, err := s.store.GetChapter(ctx, req.ChapterID, req.Language)
	if err != nil {
		return "", "", fmt.Errorf("get chapter: %w", err)
	}

	pages, err := s.store.ListPages(ctx, req.ChapterID, req.Language, req.IncludeHidden)
	if err != nil {
		return "", "", fmt.Errorf("list pages: %w", err)
	}

	data := TemplateData{
		Title:    chapter.Title,
		Summary:  chapter.Summary,
		SiteName: s.siteName,
		Pages:    []TemplatePage{},
	}
	title := chapter.Title

	for _, p := range pages {
		if req.PageID != "" && p.ID != req.PageID {
			continue
		}
		if req.PageID != "" {
			title = p.Title
		}

		page := TemplatePage{
			ID:        p.ID,
			Title:     p.Title,
			Author:    p.UpdatedBy,
			UpdatedAt: p.UpdatedAt,
			Comments:  []TemplateComment{},
		}

		contentHTML := MarkdownToHTML(p.Body)
		paragraphs, err := s.store.ListParagraphs(ctx, p.ID, req.Language, req.IncludeHidden)
		if err != nil {
			return "", "", fmt.Errorf("list paragraphs: %w", err)
		}
		for _, paragraph := range paragraphs {
			contentHTML += renderParagraphHTML(paragraph)
		}
		page.ContentHTML = template.HTML(contentHTML)

		if req.IncludeComments {
			comments, err := s.store.ListPageComments(ctx, p.ID)
			if err == nil {
				for _, c := range comments {
					if c.IsDeleted {
						continue
					}
					page.Comments = append(page.Comments, TemplateComment{
						Author: c.Author,
						Body:   c.Body,
					})
				}
			}
		}

		data.Pages = append(data.Pages, page)
	}

	if req.PageID != "" && len(data.Pages) == 0 {
		return "", "", ErrContentUnavailable
	}

	html, err := RenderChapterHTML(data)
	if err != nil {
		return "", "", fmt.Errorf("render template: %w", err)
	}
	return html, title, nil
}
