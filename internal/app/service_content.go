package app

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"strings"
	"time"

	"folio/api/internal/backup"
	"folio/api/internal/export"
	"folio/api/internal/rbac"
	"folio/api/internal/search"
	"folio/api/internal/settings"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

// Content tree operations. Draft and hidden entries are visible only to
// roles that can write content; everyone else gets the published view.

func (s *Service) seesHidden(role string) bool {
	return s.Can(role, rbac.ActionWrite)
}

func (s *Service) TOC(ctx context.Context, session Session, lang string) (map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	toc, err := s.store.GetTOC(ctx, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}

	chapters := make([]map[string]any, 0, len(toc))
	for _, chapter := range toc {
		pages := make([]map[string]any, 0, len(chapter.Pages))
		for _, page := range chapter.Pages {
			pages = append(pages, map[string]any{
				"id":         page.ID,
				"title":      page.Title,
				"orderIndex": page.OrderIndex,
				"isDraft":    page.IsDraft,
				"isHidden":   page.IsHidden,
			})
		}
		chapters = append(chapters, map[string]any{
			"id":         chapter.ID,
			"title":      chapter.Title,
			"summary":    chapter.Summary,
			"orderIndex": chapter.OrderIndex,
			"isDraft":    chapter.IsDraft,
			"isHidden":   chapter.IsHidden,
			"pages":      pages,
		})
	}
	return map[string]any{"chapters": chapters, "language": lang}, nil
}

func (s *Service) ListChapters(ctx context.Context, session Session, lang string) ([]map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	chapters, err := s.store.ListChapters(ctx, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapters))
	for _, chapter := range chapters {
		items = append(items, chapterJSON(chapter))
	}
	return items, nil
}

func (s *Service) GetChapter(ctx context.Context, session Session, chapterID, lang string) (map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	chapter, err := s.store.GetChapterLocalized(ctx, chapterID, lang)
	if err != nil {
		return nil, err
	}
	if (chapter.IsDraft || chapter.IsHidden) && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}

	pages, err := s.store.ListPagesByChapter(ctx, chapterID, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}
	pageItems := make([]map[string]any, 0, len(pages))
	for _, page := range pages {
		pageItems = append(pageItems, pageJSON(page))
	}

	payload := chapterJSON(chapter)
	payload["pages"] = pageItems
	return payload, nil
}

func (s *Service) ListChapterPages(ctx context.Context, session Session, chapterID, lang string) ([]map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if (chapter.IsDraft || chapter.IsHidden) && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}
	pages, err := s.store.ListPagesByChapter(ctx, chapterID, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(pages))
	for _, page := range pages {
		items = append(items, pageJSON(page))
	}
	return items, nil
}

func (s *Service) ListPageParagraphs(ctx context.Context, session Session, pageID, lang string) ([]map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if (page.IsDraft || page.IsHidden) && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}
	paragraphs, err := s.store.ListParagraphsByPage(ctx, pageID, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		items = append(items, paragraphJSON(paragraph))
	}
	return items, nil
}

func (s *Service) GetParagraphView(ctx context.Context, session Session, paragraphID string) (map[string]any, error) {
	paragraph, err := s.store.GetParagraph(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	if paragraph.IsHidden && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}
	return paragraphJSON(paragraph), nil
}

func (s *Service) CreateChapter(ctx context.Context, session Session, title, summary string, isDraft, isHidden bool) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	chapter := store.Chapter{
		ID:       util.NewID("ch"),
		Title:    title,
		Summary:  strings.TrimSpace(summary),
		IsDraft:  isDraft,
		IsHidden: isHidden,
	}
	if err := s.store.InsertChapter(ctx, chapter); err != nil {
		return nil, err
	}
	created, err := s.store.GetChapter(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	return chapterJSON(created), nil
}

func (s *Service) UpdateChapter(ctx context.Context, session Session, chapterID, title, summary string, isDraft, isHidden bool) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.store.UpdateChapter(ctx, store.Chapter{
		ID:       chapterID,
		Title:    title,
		Summary:  strings.TrimSpace(summary),
		IsDraft:  isDraft,
		IsHidden: isHidden,
	}); err != nil {
		return nil, err
	}
	updated, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	return chapterJSON(updated), nil
}

// DeleteChapter cascades to pages, paragraphs, and the discussion layer via
// foreign keys; the search index is cleaned up best-effort.
func (s *Service) DeleteChapter(ctx context.Context, chapterID string) error {
	pages, err := s.store.ListPagesByChapter(ctx, chapterID, "", true)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChapter(ctx, chapterID); err != nil {
		return err
	}
	for _, page := range pages {
		s.search.DeletePage(page.ID)
	}
	return nil
}

func (s *Service) ReorderChapters(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "orderedIds is required", nil)
	}
	return s.store.ReorderChapters(ctx, orderedIDs)
}

// ReorderChapterPages reorders the pages inside a chapter.
func (s *Service) ReorderChapterPages(ctx context.Context, chapterID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "orderedIds is required", nil)
	}
	if _, err := s.store.GetChapter(ctx, chapterID); err != nil {
		return err
	}
	return s.store.ReorderPages(ctx, orderedIDs)
}

// ReorderPageParagraphs reorders the paragraphs inside a page.
func (s *Service) ReorderPageParagraphs(ctx context.Context, pageID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "orderedIds is required", nil)
	}
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return err
	}
	return s.store.ReorderParagraphs(ctx, orderedIDs)
}

func (s *Service) GetPageView(ctx context.Context, session Session, pageID, lang string) (map[string]any, error) {
	lang = s.contentLanguage(ctx, session, lang)
	page, err := s.store.GetPageLocalized(ctx, pageID, lang)
	if err != nil {
		return nil, err
	}
	if (page.IsDraft || page.IsHidden) && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}

	paragraphs, err := s.store.ListParagraphsByPage(ctx, pageID, lang, s.seesHidden(session.Role))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		items = append(items, paragraphJSON(paragraph))
	}

	payload := pageJSON(page)
	payload["paragraphs"] = items
	payload["language"] = lang
	return payload, nil
}

func (s *Service) CreatePage(ctx context.Context, session Session, chapterID, title, body string, isDraft, isHidden bool) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if _, err := s.store.GetChapter(ctx, chapterID); err != nil {
		return nil, err
	}
	page := store.Page{
		ID:        util.NewID("pg"),
		ChapterID: chapterID,
		Title:     title,
		Body:      body,
		IsDraft:   isDraft,
		IsHidden:  isHidden,
		UpdatedBy: session.ProfileName,
	}
	if err := s.store.InsertPage(ctx, page); err != nil {
		return nil, err
	}
	created, err := s.store.GetPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	s.indexPage(created)
	return pageJSON(created), nil
}

// UpdatePage archives the previous revision as a version row inside the
// same transaction as the update.
func (s *Service) UpdatePage(ctx context.Context, session Session, pageID, title, body string, isDraft, isHidden bool) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.store.UpdatePage(ctx, store.Page{
		ID:        pageID,
		Title:     title,
		Body:      body,
		IsDraft:   isDraft,
		IsHidden:  isHidden,
		UpdatedBy: session.ProfileName,
	}); err != nil {
		return nil, err
	}
	updated, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.indexPage(updated)
	return pageJSON(updated), nil
}

func (s *Service) DeletePage(ctx context.Context, pageID string) error {
	if err := s.store.DeletePage(ctx, pageID); err != nil {
		return err
	}
	s.search.DeletePage(pageID)
	return nil
}

func (s *Service) CreateParagraph(ctx context.Context, session Session, pageID string, input ParagraphInput) (map[string]any, error) {
	if err := validateParagraphInput(input); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	paragraph := store.Paragraph{
		ID:           util.NewID("pr"),
		PageID:       pageID,
		Type:         store.ParagraphType(input.Type),
		Content:      input.Content,
		Caption:      input.Caption,
		MediaURL:     input.MediaURL,
		LinkedPageID: input.LinkedPageID,
		IsHidden:     input.IsHidden,
		UpdatedBy:    session.ProfileName,
	}
	if err := s.store.InsertParagraph(ctx, paragraph); err != nil {
		return nil, err
	}
	created, err := s.store.GetParagraph(ctx, paragraph.ID)
	if err != nil {
		return nil, err
	}
	return paragraphJSON(created), nil
}

// UpdateParagraph archives the current content as a version row first.
func (s *Service) UpdateParagraph(ctx context.Context, session Session, paragraphID string, input ParagraphInput) (map[string]any, error) {
	if err := validateParagraphInput(input); err != nil {
		return nil, err
	}
	current, err := s.store.GetParagraph(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateParagraph(ctx, store.Paragraph{
		ID:           paragraphID,
		PageID:       current.PageID,
		Type:         store.ParagraphType(input.Type),
		Content:      input.Content,
		Caption:      input.Caption,
		MediaURL:     input.MediaURL,
		LinkedPageID: input.LinkedPageID,
		IsHidden:     input.IsHidden,
		UpdatedBy:    session.ProfileName,
	}); err != nil {
		return nil, err
	}
	updated, err := s.store.GetParagraph(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	return paragraphJSON(updated), nil
}

func (s *Service) DeleteParagraph(ctx context.Context, paragraphID string) error {
	return s.store.DeleteParagraph(ctx, paragraphID)
}

// ParagraphInput is the write payload for paragraph create and update.
type ParagraphInput struct {
	Type         string  `json:"type"`
	Content      string  `json:"content"`
	Caption      string  `json:"caption"`
	MediaURL     string  `json:"mediaUrl"`
	LinkedPageID *string `json:"linkedPageId"`
	IsHidden     bool    `json:"isHidden"`
}

var paragraphTypes = map[string]struct{}{
	string(store.ParagraphText):     {},
	string(store.ParagraphImage):    {},
	string(store.ParagraphList):     {},
	string(store.ParagraphQuote):    {},
	string(store.ParagraphPageLink): {},
}

func validateParagraphInput(input ParagraphInput) error {
	if _, ok := paragraphTypes[input.Type]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be one of text, image, list, quote, page_link", nil)
	}
	switch store.ParagraphType(input.Type) {
	case store.ParagraphImage:
		if strings.TrimSpace(input.MediaURL) == "" {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mediaUrl is required for image paragraphs", nil)
		}
	case store.ParagraphPageLink:
		if input.LinkedPageID == nil || strings.TrimSpace(*input.LinkedPageID) == "" {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "linkedPageId is required for page_link paragraphs", nil)
		}
	default:
		if strings.TrimSpace(input.Content) == "" {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
		}
	}
	return nil
}

// Translations. One row per (entity, language); empty localized fields fall
// back to the base entity at read time.

func (s *Service) UpsertChapterTranslation(ctx context.Context, chapterID, lang, title, summary string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	if _, err := s.store.GetChapter(ctx, chapterID); err != nil {
		return err
	}
	return s.store.UpsertChapterTranslation(ctx, chapterID, lang, title, summary)
}

func (s *Service) DeleteChapterTranslation(ctx context.Context, chapterID, lang string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	return s.store.DeleteChapterTranslation(ctx, chapterID, lang)
}

func (s *Service) UpsertPageTranslation(ctx context.Context, pageID, lang, title, body string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return err
	}
	return s.store.UpsertPageTranslation(ctx, pageID, lang, title, body)
}

func (s *Service) DeletePageTranslation(ctx context.Context, pageID, lang string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	return s.store.DeletePageTranslation(ctx, pageID, lang)
}

func (s *Service) UpsertParagraphTranslation(ctx context.Context, paragraphID, lang, content, caption string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	if _, err := s.store.GetParagraph(ctx, paragraphID); err != nil {
		return err
	}
	return s.store.UpsertParagraphTranslation(ctx, paragraphID, lang, content, caption)
}

func (s *Service) DeleteParagraphTranslation(ctx context.Context, paragraphID, lang string) error {
	if err := validateTranslationLang(lang); err != nil {
		return err
	}
	return s.store.DeleteParagraphTranslation(ctx, paragraphID, lang)
}

func validateTranslationLang(lang string) error {
	if _, ok := supportedLanguages[lang]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "language must be one of ru, en, kk", nil)
	}
	return nil
}

// Versions.

func (s *Service) PageVersions(ctx context.Context, pageID string) ([]map[string]any, error) {
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	versions, err := s.store.ListPageVersions(ctx, pageID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{
			"version":   v.Version,
			"title":     v.Title,
			"body":      v.Body,
			"editedBy":  v.EditedBy,
			"createdAt": v.CreatedAt.Unix(),
		})
	}
	return items, nil
}

func (s *Service) ParagraphVersions(ctx context.Context, paragraphID string) ([]map[string]any, error) {
	if _, err := s.store.GetParagraph(ctx, paragraphID); err != nil {
		return nil, err
	}
	versions, err := s.store.ListParagraphVersions(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{
			"version":   v.Version,
			"content":   v.Content,
			"caption":   v.Caption,
			"editedBy":  v.EditedBy,
			"createdAt": v.CreatedAt.Unix(),
		})
	}
	return items, nil
}

// RestorePageVersion archives the current state first, then applies the
// snapshot, so the restore itself shows up in the history.
func (s *Service) RestorePageVersion(ctx context.Context, session Session, pageID string, version int) (map[string]any, error) {
	if err := s.store.RestorePageVersion(ctx, pageID, version, session.ProfileName); err != nil {
		return nil, err
	}
	restored, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.indexPage(restored)
	return pageJSON(restored), nil
}

func (s *Service) RestoreParagraphVersion(ctx context.Context, session Session, paragraphID string, version int) (map[string]any, error) {
	if err := s.store.RestoreParagraphVersion(ctx, paragraphID, version, session.ProfileName); err != nil {
		return nil, err
	}
	restored, err := s.store.GetParagraph(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	return paragraphJSON(restored), nil
}

// Export.

func (s *Service) ExportChapter(ctx context.Context, session Session, chapterID, pageID, format, lang string, includeComments bool) (*export.Result, error) {
	lang = s.contentLanguage(ctx, session, lang)
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if (chapter.IsDraft || chapter.IsHidden) && !s.seesHidden(session.Role) {
		return nil, sql.ErrNoRows
	}

	siteName := s.settings.GetString(ctx, settings.KeySiteTitle, "Folio")
	exporter := export.NewService(&exportData{store: s.store}, siteName)
	return exporter.Export(ctx, export.Request{
		ChapterID:       chapterID,
		PageID:          pageID,
		Format:          export.Format(format),
		Language:        lang,
		IncludeComments: includeComments,
		IncludeHidden:   s.seesHidden(session.Role),
	})
}

// exportData adapts the data store to the export package.
type exportData struct {
	store dataStore
}

func (d *exportData) GetChapter(ctx context.Context, chapterID, lang string) (export.ChapterInfo, error) {
	chapter, err := d.store.GetChapterLocalized(ctx, chapterID, lang)
	if err != nil {
		return export.ChapterInfo{}, err
	}
	return export.ChapterInfo{ID: chapter.ID, Title: chapter.Title, Summary: chapter.Summary}, nil
}

func (d *exportData) ListPages(ctx context.Context, chapterID, lang string, includeHidden bool) ([]export.PageInfo, error) {
	pages, err := d.store.ListPagesByChapter(ctx, chapterID, lang, includeHidden)
	if err != nil {
		return nil, err
	}
	items := make([]export.PageInfo, 0, len(pages))
	for _, page := range pages {
		items = append(items, export.PageInfo{
			ID:        page.ID,
			Title:     page.Title,
			Body:      page.Body,
			UpdatedBy: page.UpdatedBy,
			UpdatedAt: page.UpdatedAt,
		})
	}
	return items, nil
}

func (d *exportData) ListParagraphs(ctx context.Context, pageID, lang string, includeHidden bool) ([]export.ParagraphInfo, error) {
	paragraphs, err := d.store.ListParagraphsByPage(ctx, pageID, lang, includeHidden)
	if err != nil {
		return nil, err
	}
	items := make([]export.ParagraphInfo, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		info := export.ParagraphInfo{
			ID:       paragraph.ID,
			Type:     string(paragraph.Type),
			Content:  paragraph.Content,
			Caption:  paragraph.Caption,
			MediaURL: paragraph.MediaURL,
		}
		if paragraph.LinkedPageID != nil {
			info.LinkedPageID = *paragraph.LinkedPageID
			if linked, err := d.store.GetPageLocalized(ctx, *paragraph.LinkedPageID, lang); err == nil {
				info.LinkedTitle = linked.Title
			}
		}
		items = append(items, info)
	}
	return items, nil
}

func (d *exportData) ListPageComments(ctx context.Context, pageID string) ([]export.CommentInfo, error) {
	comments, err := d.store.ListPageComments(ctx, pageID)
	if err != nil {
		return nil, err
	}
	items := make([]export.CommentInfo, 0, len(comments))
	for _, c := range comments {
		items = append(items, export.CommentInfo{
			Author:    c.AuthorName,
			Body:      c.Body,
			IsDeleted: c.IsDeleted,
		})
	}
	return items, nil
}

// Media.

// UploadMedia stores an uploaded image and returns its key plus a
// presigned GET URL.
func (s *Service) UploadMedia(ctx context.Context, file io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	key, err := s.media.Upload(ctx, file, size, contentType)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "UPLOAD_FAILED", err.Error(), nil)
	}
	url, err := s.media.PresignedURL(ctx, key, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "url": url}, nil
}

// DeleteMedia removes an uploaded object, used when an image paragraph is
// replaced or discarded.
func (s *Service) DeleteMedia(ctx context.Context, key string) error {
	if s.media == nil {
		return domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	if strings.TrimSpace(key) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "key is required", nil)
	}
	return s.media.Delete(ctx, key)
}

// Backup.

// BackupNow snapshots the full content tree, drafts included, into the
// local git repository.
func (s *Service) BackupNow(ctx context.Context, session Session, message string) (backup.CommitInfo, error) {
	chapters, err := s.store.ListChapters(ctx, "", true)
	if err != nil {
		return backup.CommitInfo{}, err
	}

	tree := make([]backup.SnapshotChapter, 0, len(chapters))
	for _, chapter := range chapters {
		snapshot := backup.SnapshotChapter{
			ID:      chapter.ID,
			Title:   chapter.Title,
			Summary: chapter.Summary,
		}
		pages, err := s.store.ListPagesByChapter(ctx, chapter.ID, "", true)
		if err != nil {
			return backup.CommitInfo{}, err
		}
		for _, page := range pages {
			pageSnapshot := backup.SnapshotPage{
				ID:    page.ID,
				Title: page.Title,
				Body:  page.Body,
			}
			paragraphs, err := s.store.ListParagraphsByPage(ctx, page.ID, "", true)
			if err != nil {
				return backup.CommitInfo{}, err
			}
			for _, paragraph := range paragraphs {
				pageSnapshot.Paragraphs = append(pageSnapshot.Paragraphs, backup.SnapshotParagraph{
					Type:     string(paragraph.Type),
					Content:  paragraph.Content,
					Caption:  paragraph.Caption,
					MediaURL: paragraph.MediaURL,
				})
			}
			snapshot.Pages = append(snapshot.Pages, pageSnapshot)
		}
		tree = append(tree, snapshot)
	}

	return s.backup.Snapshot(tree, session.ProfileName, message)
}

func (s *Service) BackupHistory(limit int) ([]backup.CommitInfo, error) {
	return s.backup.History(limit)
}

func (s *Service) indexPage(page store.Page) {
	s.search.IndexPage(search.PageRecord{
		ID:        page.ID,
		Title:     page.Title,
		Body:      page.Body,
		ChapterID: page.ChapterID,
		IsDraft:   page.IsDraft,
		IsHidden:  page.IsHidden,
	})
}

func chapterJSON(chapter store.Chapter) map[string]any {
	return map[string]any{
		"id":         chapter.ID,
		"title":      chapter.Title,
		"summary":    chapter.Summary,
		"orderIndex": chapter.OrderIndex,
		"isDraft":    chapter.IsDraft,
		"isHidden":   chapter.IsHidden,
		"createdAt":  chapter.CreatedAt.Unix(),
		"updatedAt":  chapter.UpdatedAt.Unix(),
	}
}

func pageJSON(page store.Page) map[string]any {
	return map[string]any{
		"id":         page.ID,
		"chapterId":  page.ChapterID,
		"title":      page.Title,
		"body":       page.Body,
		"orderIndex": page.OrderIndex,
		"isDraft":    page.IsDraft,
		"isHidden":   page.IsHidden,
		"updatedBy":  page.UpdatedBy,
		"createdAt":  page.CreatedAt.Unix(),
		"updatedAt":  page.UpdatedAt.Unix(),
	}
}

func paragraphJSON(paragraph store.Paragraph) map[string]any {
	var linkedPageID any
	if paragraph.LinkedPageID != nil {
		linkedPageID = *paragraph.LinkedPageID
	}
	return map[string]any{
		"id":           paragraph.ID,
		"pageId":       paragraph.PageID,
		"type":         string(paragraph.Type),
		"content":      paragraph.Content,
		"caption":      paragraph.Caption,
		"mediaUrl":     paragraph.MediaURL,
		"linkedPageId": linkedPageID,
		"orderIndex":   paragraph.OrderIndex,
		"isHidden":     paragraph.IsHidden,
		"updatedBy":    paragraph.UpdatedBy,
		"createdAt":    paragraph.CreatedAt.Unix(),
		"updatedAt":    paragraph.UpdatedAt.Unix(),
	}
}
