package store

import (
	"context"
	"database/sql"
	"fmt"

	"folio/api/internal/util"
)

// Localized reads resolve translated text with COALESCE(NULLIF(...), base)
// so an empty or missing translation falls back to the source language.

func (s *PostgresStore) ListChapters(ctx context.Context, lang string, includeHidden bool) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id,
			COALESCE(NULLIF(t.title, ''), c.title),
			COALESCE(NULLIF(t.summary, ''), c.summary),
			c.order_index, c.is_draft, c.is_hidden, c.created_at, c.updated_at
		FROM chapters c
		LEFT JOIN chapter_translations t ON t.chapter_id = c.id AND t.language = $1
		WHERE $2 OR (NOT c.is_hidden AND NOT c.is_draft)
		ORDER BY c.order_index ASC, c.created_at ASC
	`, lang, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]Chapter, 0)
	for rows.Next() {
		var item Chapter
		if err := rows.Scan(&item.ID, &item.Title, &item.Summary, &item.OrderIndex, &item.IsDraft, &item.IsHidden, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChapter(ctx context.Context, chapterID string) (Chapter, error) {
	var c Chapter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, order_index, is_draft, is_hidden, created_at, updated_at
		FROM chapters WHERE id=$1
	`, chapterID).Scan(&c.ID, &c.Title, &c.Summary, &c.OrderIndex, &c.IsDraft, &c.IsHidden, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *PostgresStore) GetChapterLocalized(ctx context.Context, chapterID, lang string) (Chapter, error) {
	var c Chapter
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id,
			COALESCE(NULLIF(t.title, ''), c.title),
			COALESCE(NULLIF(t.summary, ''), c.summary),
			c.order_index, c.is_draft, c.is_hidden, c.created_at, c.updated_at
		FROM chapters c
		LEFT JOIN chapter_translations t ON t.chapter_id = c.id AND t.language = $2
		WHERE c.id=$1
	`, chapterID, lang).Scan(&c.ID, &c.Title, &c.Summary, &c.OrderIndex, &c.IsDraft, &c.IsHidden, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *PostgresStore) InsertChapter(ctx context.Context, chapter Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, title, summary, order_index, is_draft, is_hidden)
		VALUES ($1, $2, $3, COALESCE((SELECT MAX(order_index)+1 FROM chapters), 0), $4, $5)
	`, chapter.ID, chapter.Title, chapter.Summary, chapter.IsDraft, chapter.IsHidden)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateChapter(ctx context.Context, chapter Chapter) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chapters SET title=$2, summary=$3, is_draft=$4, is_hidden=$5, updated_at=NOW()
		WHERE id=$1
	`, chapter.ID, chapter.Title, chapter.Summary, chapter.IsDraft, chapter.IsHidden)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteChapter(ctx context.Context, chapterID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, chapterID)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return requireAffected(result)
}

// ReorderChapters rewrites order_index to match the position of each id in
// the given slice. Ids not present keep their old index.
func (s *PostgresStore) ReorderChapters(ctx context.Context, orderedIDs []string) error {
	return s.reorder(ctx, `UPDATE chapters SET order_index=$1, updated_at=NOW() WHERE id=$2`, orderedIDs)
}

func (s *PostgresStore) reorder(ctx context.Context, query string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, query, i, id); err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

// GetTOC returns all chapters with their pages, localized, in display order.
func (s *PostgresStore) GetTOC(ctx context.Context, lang string, includeHidden bool) ([]TOCChapter, error) {
	chapters, err := s.ListChapters(ctx, lang, includeHidden)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.chapter_id,
			COALESCE(NULLIF(t.title, ''), p.title),
			p.order_index, p.is_draft, p.is_hidden
		FROM pages p
		LEFT JOIN page_translations t ON t.page_id = p.id AND t.language = $1
		WHERE $2 OR (NOT p.is_hidden AND NOT p.is_draft)
		ORDER BY p.order_index ASC, p.created_at ASC
	`, lang, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list toc pages: %w", err)
	}
	defer rows.Close()

	byChapter := make(map[string][]TOCPage)
	for rows.Next() {
		var (
			page      TOCPage
			chapterID string
		)
		if err := rows.Scan(&page.ID, &chapterID, &page.Title, &page.OrderIndex, &page.IsDraft, &page.IsHidden); err != nil {
			return nil, fmt.Errorf("scan toc page: %w", err)
		}
		byChapter[chapterID] = append(byChapter[chapterID], page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate toc pages: %w", err)
	}

	toc := make([]TOCChapter, 0, len(chapters))
	for _, c := range chapters {
		pages := byChapter[c.ID]
		if pages == nil {
			pages = make([]TOCPage, 0)
		}
		toc = append(toc, TOCChapter{
			ID:         c.ID,
			Title:      c.Title,
			Summary:    c.Summary,
			OrderIndex: c.OrderIndex,
			IsDraft:    c.IsDraft,
			IsHidden:   c.IsHidden,
			Pages:      pages,
		})
	}
	return toc, nil
}

func (s *PostgresStore) ListPagesByChapter(ctx context.Context, chapterID, lang string, includeHidden bool) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.chapter_id,
			COALESCE(NULLIF(t.title, ''), p.title),
			COALESCE(NULLIF(t.body, ''), p.body),
			p.order_index, p.is_draft, p.is_hidden, p.updated_by_name, p.created_at, p.updated_at
		FROM pages p
		LEFT JOIN page_translations t ON t.page_id = p.id AND t.language = $2
		WHERE p.chapter_id = $1 AND ($3 OR (NOT p.is_hidden AND NOT p.is_draft))
		ORDER BY p.order_index ASC, p.created_at ASC
	`, chapterID, lang, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]Page, 0)
	for rows.Next() {
		var item Page
		if err := rows.Scan(&item.ID, &item.ChapterID, &item.Title, &item.Body, &item.OrderIndex, &item.IsDraft, &item.IsHidden, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chapter_id, title, body, order_index, is_draft, is_hidden, updated_by_name, created_at, updated_at
		FROM pages WHERE id=$1
	`, pageID).Scan(&p.ID, &p.ChapterID, &p.Title, &p.Body, &p.OrderIndex, &p.IsDraft, &p.IsHidden, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) GetPageLocalized(ctx context.Context, pageID, lang string) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.chapter_id,
			COALESCE(NULLIF(t.title, ''), p.title),
			COALESCE(NULLIF(t.body, ''), p.body),
			p.order_index, p.is_draft, p.is_hidden, p.updated_by_name, p.created_at, p.updated_at
		FROM pages p
		LEFT JOIN page_translations t ON t.page_id = p.id AND t.language = $2
		WHERE p.id=$1
	`, pageID, lang).Scan(&p.ID, &p.ChapterID, &p.Title, &p.Body, &p.OrderIndex, &p.IsDraft, &p.IsHidden, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) InsertPage(ctx context.Context, page Page) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, chapter_id, title, body, order_index, is_draft, is_hidden, updated_by_name)
		VALUES ($1, $2, $3, $4, COALESCE((SELECT MAX(order_index)+1 FROM pages WHERE chapter_id=$2), 0), $5, $6, $7)
	`, page.ID, page.ChapterID, page.Title, page.Body, page.IsDraft, page.IsHidden, page.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// UpdatePage archives the current revision into page_versions before
// applying the new content. Versions count up from 1 per page.
func (s *PostgresStore) UpdatePage(ctx context.Context, page Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update page tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldTitle, oldBody string
	err = tx.QueryRowContext(ctx, `
		SELECT title, body FROM pages WHERE id=$1 FOR UPDATE
	`, page.ID).Scan(&oldTitle, &oldBody)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO page_versions (page_id, version, title, body, edited_by_name)
		VALUES ($1, COALESCE((SELECT MAX(version)+1 FROM page_versions WHERE page_id=$1), 1), $2, $3, $4)
	`, page.ID, oldTitle, oldBody, page.UpdatedBy)
	if err != nil {
		return fmt.Errorf("archive page version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pages SET title=$2, body=$3, is_draft=$4, is_hidden=$5, updated_by_name=$6, updated_at=NOW()
		WHERE id=$1
	`, page.ID, page.Title, page.Body, page.IsDraft, page.IsHidden, page.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update page tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, pageID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id=$1`, pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ReorderPages(ctx context.Context, orderedIDs []string) error {
	return s.reorder(ctx, `UPDATE pages SET order_index=$1, updated_at=NOW() WHERE id=$2`, orderedIDs)
}

func (s *PostgresStore) ListParagraphsByPage(ctx context.Context, pageID, lang string, includeHidden bool) ([]Paragraph, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.page_id, g.type,
			COALESCE(NULLIF(t.content, ''), g.content),
			COALESCE(NULLIF(t.caption, ''), g.caption),
			g.media_url, g.linked_page_id, g.order_index, g.is_hidden, g.updated_by_name, g.created_at, g.updated_at
		FROM paragraphs g
		LEFT JOIN paragraph_translations t ON t.paragraph_id = g.id AND t.language = $2
		WHERE g.page_id = $1 AND ($3 OR NOT g.is_hidden)
		ORDER BY g.order_index ASC, g.created_at ASC
	`, pageID, lang, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list paragraphs: %w", err)
	}
	defer rows.Close()

	items := make([]Paragraph, 0)
	for rows.Next() {
		var item Paragraph
		if err := rows.Scan(&item.ID, &item.PageID, &item.Type, &item.Content, &item.Caption, &item.MediaURL, &item.LinkedPageID, &item.OrderIndex, &item.IsHidden, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paragraphs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetParagraph(ctx context.Context, paragraphID string) (Paragraph, error) {
	var p Paragraph
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, type, content, caption, media_url, linked_page_id, order_index, is_hidden, updated_by_name, created_at, updated_at
		FROM paragraphs WHERE id=$1
	`, paragraphID).Scan(&p.ID, &p.PageID, &p.Type, &p.Content, &p.Caption, &p.MediaURL, &p.LinkedPageID, &p.OrderIndex, &p.IsHidden, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) InsertParagraph(ctx context.Context, paragraph Paragraph) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paragraphs (id, page_id, type, content, caption, media_url, linked_page_id, order_index, is_hidden, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE((SELECT MAX(order_index)+1 FROM paragraphs WHERE page_id=$2), 0), $8, $9)
	`, paragraph.ID, paragraph.PageID, paragraph.Type, paragraph.Content, paragraph.Caption, paragraph.MediaURL, paragraph.LinkedPageID, paragraph.IsHidden, paragraph.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert paragraph: %w", err)
	}
	return nil
}

// UpdateParagraph archives the current content as a new version, then
// overwrites the live row.
func (s *PostgresStore) UpdateParagraph(ctx context.Context, paragraph Paragraph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update paragraph tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := archiveParagraphTx(ctx, tx, paragraph.ID, paragraph.UpdatedBy); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE paragraphs
		SET type=$2, content=$3, caption=$4, media_url=$5, linked_page_id=$6, is_hidden=$7, updated_by_name=$8, updated_at=NOW()
		WHERE id=$1
	`, paragraph.ID, paragraph.Type, paragraph.Content, paragraph.Caption, paragraph.MediaURL, paragraph.LinkedPageID, paragraph.IsHidden, paragraph.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update paragraph: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update paragraph tx: %w", err)
	}
	return nil
}

// archiveParagraphTx snapshots the paragraph's current content into
// paragraph_versions under the next version number. The SELECT takes a row
// lock so concurrent edits serialize.
func archiveParagraphTx(ctx context.Context, tx *sql.Tx, paragraphID, editorName string) error {
	var content, caption string
	err := tx.QueryRowContext(ctx, `
		SELECT content, caption FROM paragraphs WHERE id=$1 FOR UPDATE
	`, paragraphID).Scan(&content, &caption)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paragraph_versions (paragraph_id, version, content, caption, edited_by_name)
		VALUES ($1, COALESCE((SELECT MAX(version)+1 FROM paragraph_versions WHERE paragraph_id=$1), 1), $2, $3, $4)
	`, paragraphID, content, caption, editorName)
	if err != nil {
		return fmt.Errorf("archive paragraph version: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteParagraph(ctx context.Context, paragraphID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM paragraphs WHERE id=$1`, paragraphID)
	if err != nil {
		return fmt.Errorf("delete paragraph: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ReorderParagraphs(ctx context.Context, orderedIDs []string) error {
	return s.reorder(ctx, `UPDATE paragraphs SET order_index=$1, updated_at=NOW() WHERE id=$2`, orderedIDs)
}

func (s *PostgresStore) UpsertChapterTranslation(ctx context.Context, chapterID, lang, title, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_translations (id, chapter_id, language, title, summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chapter_id, language) DO UPDATE SET title=EXCLUDED.title, summary=EXCLUDED.summary
	`, util.NewID("ctr"), chapterID, lang, title, summary)
	if err != nil {
		return fmt.Errorf("upsert chapter translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChapterTranslation(ctx context.Context, chapterID, lang string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chapter_translations WHERE chapter_id=$1 AND language=$2`, chapterID, lang)
	if err != nil {
		return fmt.Errorf("delete chapter translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertPageTranslation(ctx context.Context, pageID, lang, title, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_translations (id, page_id, language, title, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (page_id, language) DO UPDATE SET title=EXCLUDED.title, body=EXCLUDED.body
	`, util.NewID("ptr"), pageID, lang, title, body)
	if err != nil {
		return fmt.Errorf("upsert page translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePageTranslation(ctx context.Context, pageID, lang string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM page_translations WHERE page_id=$1 AND language=$2`, pageID, lang)
	if err != nil {
		return fmt.Errorf("delete page translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertParagraphTranslation(ctx context.Context, paragraphID, lang, content, caption string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paragraph_translations (id, paragraph_id, language, content, caption)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (paragraph_id, language) DO UPDATE SET content=EXCLUDED.content, caption=EXCLUDED.caption
	`, util.NewID("gtr"), paragraphID, lang, content, caption)
	if err != nil {
		return fmt.Errorf("upsert paragraph translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteParagraphTranslation(ctx context.Context, paragraphID, lang string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM paragraph_translations WHERE paragraph_id=$1 AND language=$2`, paragraphID, lang)
	if err != nil {
		return fmt.Errorf("delete paragraph translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPageVersions(ctx context.Context, pageID string) ([]PageVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, version, title, body, edited_by_name, created_at
		FROM page_versions
		WHERE page_id=$1
		ORDER BY version DESC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page versions: %w", err)
	}
	defer rows.Close()

	items := make([]PageVersion, 0)
	for rows.Next() {
		var item PageVersion
		if err := rows.Scan(&item.ID, &item.PageID, &item.Version, &item.Title, &item.Body, &item.EditedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan page version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPageVersion(ctx context.Context, pageID string, version int) (PageVersion, error) {
	var v PageVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, version, title, body, edited_by_name, created_at
		FROM page_versions WHERE page_id=$1 AND version=$2
	`, pageID, version).Scan(&v.ID, &v.PageID, &v.Version, &v.Title, &v.Body, &v.EditedBy, &v.CreatedAt)
	return v, err
}

func (s *PostgresStore) ListParagraphVersions(ctx context.Context, paragraphID string) ([]ParagraphVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paragraph_id, version, content, caption, edited_by_name, created_at
		FROM paragraph_versions
		WHERE paragraph_id=$1
		ORDER BY version DESC
	`, paragraphID)
	if err != nil {
		return nil, fmt.Errorf("list paragraph versions: %w", err)
	}
	defer rows.Close()

	items := make([]ParagraphVersion, 0)
	for rows.Next() {
		var item ParagraphVersion
		if err := rows.Scan(&item.ID, &item.ParagraphID, &item.Version, &item.Content, &item.Caption, &item.EditedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paragraph version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paragraph versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetParagraphVersion(ctx context.Context, paragraphID string, version int) (ParagraphVersion, error) {
	var v ParagraphVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, paragraph_id, version, content, caption, edited_by_name, created_at
		FROM paragraph_versions WHERE paragraph_id=$1 AND version=$2
	`, paragraphID, version).Scan(&v.ID, &v.ParagraphID, &v.Version, &v.Content, &v.Caption, &v.EditedBy, &v.CreatedAt)
	return v, err
}

// CurrentParagraphVersion reports the highest archived version number for a
// paragraph, 0 when it has never been edited.
func (s *PostgresStore) CurrentParagraphVersion(ctx context.Context, paragraphID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM paragraph_versions WHERE paragraph_id=$1
	`, paragraphID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("current paragraph version: %w", err)
	}
	return version, nil
}

// RestorePageVersion archives the current content, then replaces it with
// the chosen snapshot. The restore itself becomes the newest version.
func (s *PostgresStore) RestorePageVersion(ctx context.Context, pageID string, version int, editorName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore page tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var title, body string
	err = tx.QueryRowContext(ctx, `
		SELECT title, body FROM page_versions WHERE page_id=$1 AND version=$2
	`, pageID, version).Scan(&title, &body)
	if err != nil {
		return err
	}

	var curTitle, curBody string
	err = tx.QueryRowContext(ctx, `
		SELECT title, body FROM pages WHERE id=$1 FOR UPDATE
	`, pageID).Scan(&curTitle, &curBody)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO page_versions (page_id, version, title, body, edited_by_name)
		VALUES ($1, COALESCE((SELECT MAX(version)+1 FROM page_versions WHERE page_id=$1), 1), $2, $3, $4)
	`, pageID, curTitle, curBody, editorName)
	if err != nil {
		return fmt.Errorf("archive page before restore: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pages SET title=$2, body=$3, updated_by_name=$4, updated_at=NOW() WHERE id=$1
	`, pageID, title, body, editorName)
	if err != nil {
		return fmt.Errorf("restore page: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore page tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) RestoreParagraphVersion(ctx context.Context, paragraphID string, version int, editorName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore paragraph tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var content, caption string
	err = tx.QueryRowContext(ctx, `
		SELECT content, caption FROM paragraph_versions WHERE paragraph_id=$1 AND version=$2
	`, paragraphID, version).Scan(&content, &caption)
	if err != nil {
		return err
	}

	if err := archiveParagraphTx(ctx, tx, paragraphID, editorName); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE paragraphs SET content=$2, caption=$3, updated_by_name=$4, updated_at=NOW() WHERE id=$1
	`, paragraphID, content, caption, editorName)
	if err != nil {
		return fmt.Errorf("restore paragraph: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore paragraph tx: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
