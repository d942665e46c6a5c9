package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The expression indexes backing these queries live in the migrations.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across pages, comments, and
// paragraph_suggestions using plainto_tsquery and ts_rank, with
// ts_headline for snippets. The 'simple' configuration keeps mixed
// ru/en/kk content searchable without per-language stemming.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Pages sub-query
	if q.FilterType == "" || q.FilterType == ResultPage {
		pageWhere := fmt.Sprintf("to_tsvector('simple', p.title || ' ' || p.body) @@ %s", tsQuery)
		if q.FilterChapterID != "" {
			pageWhere += fmt.Sprintf(" AND p.chapter_id = $%d", argN)
			args = append(args, q.FilterChapterID)
			argN++
		}
		if !q.IncludeHidden {
			pageWhere += " AND NOT p.is_draft AND NOT p.is_hidden"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'page'::text AS type, p.id, p.title,
				ts_headline('simple', p.body, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS page_id, p.chapter_id,
				ts_rank(to_tsvector('simple', p.title || ' ' || p.body), %s) AS rank
			FROM pages p
			WHERE %s`, tsQuery, tsQuery, pageWhere))
	}

	// Comments sub-query
	if q.FilterType == "" || q.FilterType == ResultComment {
		commentWhere := fmt.Sprintf("to_tsvector('simple', c.body) @@ %s AND NOT c.is_deleted", tsQuery)
		if q.FilterChapterID != "" {
			commentWhere += fmt.Sprintf(" AND p.chapter_id = $%d", argN)
			args = append(args, q.FilterChapterID)
			argN++
		}
		if !q.IncludeHidden {
			commentWhere += " AND NOT p.is_draft AND NOT p.is_hidden"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, pr.display_name AS title,
				ts_headline('simple', c.body, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS page_id, p.chapter_id,
				ts_rank(to_tsvector('simple', c.body), %s) AS rank
			FROM comments c
			JOIN profiles pr ON pr.id = c.author_id
			LEFT JOIN paragraphs g ON g.id = c.paragraph_id
			LEFT JOIN paragraph_suggestions sg ON sg.id = c.suggestion_id
			LEFT JOIN paragraphs g2 ON g2.id = sg.paragraph_id
			JOIN pages p ON p.id = COALESCE(c.page_id, g.page_id, g2.page_id)
			WHERE %s`, tsQuery, tsQuery, commentWhere))
	}

	// Suggestions sub-query
	if q.FilterType == "" || q.FilterType == ResultSuggestion {
		sgWhere := fmt.Sprintf("to_tsvector('simple', s.proposed_content || ' ' || s.rationale) @@ %s AND NOT s.is_deleted", tsQuery)
		if q.FilterChapterID != "" {
			sgWhere += fmt.Sprintf(" AND p.chapter_id = $%d", argN)
			args = append(args, q.FilterChapterID)
			argN++
		}
		if !q.IncludeHidden {
			sgWhere += " AND NOT p.is_draft AND NOT p.is_hidden"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'suggestion'::text AS type, s.id, s.rationale AS title,
				ts_headline('simple', s.proposed_content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS page_id, p.chapter_id,
				ts_rank(to_tsvector('simple', s.proposed_content || ' ' || s.rationale), %s) AS rank
			FROM paragraph_suggestions s
			JOIN paragraphs g ON g.id = s.paragraph_id
			JOIN pages p ON p.id = g.page_id
			WHERE %s`, tsQuery, tsQuery, sgWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, page_id, chapter_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PageID, &r.ChapterID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PageRecord, []CommentRecord, []SuggestionRecord, error) {
	pageRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, body, chapter_id, is_draft, is_hidden
		FROM pages
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load pages: %w", err)
	}
	defer pageRows.Close()

	pages := make([]PageRecord, 0)
	for pageRows.Next() {
		var r PageRecord
		if err := pageRows.Scan(&r.ID, &r.Title, &r.Body, &r.ChapterID, &r.IsDraft, &r.IsHidden); err != nil {
			return nil, nil, nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, r)
	}
	if err := pageRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate pages: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.body, p.id, p.chapter_id, pr.display_name
		FROM comments c
		JOIN profiles pr ON pr.id = c.author_id
		LEFT JOIN paragraphs g ON g.id = c.paragraph_id
		LEFT JOIN paragraph_suggestions sg ON sg.id = c.suggestion_id
		LEFT JOIN paragraphs g2 ON g2.id = sg.paragraph_id
		JOIN pages p ON p.id = COALESCE(c.page_id, g.page_id, g2.page_id)
		WHERE NOT c.is_deleted
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var r CommentRecord
		if err := commentRows.Scan(&r.ID, &r.Body, &r.PageID, &r.ChapterID, &r.AuthorName); err != nil {
			return nil, nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, r)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	sgRows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.proposed_content, s.rationale, p.id, p.chapter_id, s.status, pr.display_name
		FROM paragraph_suggestions s
		JOIN profiles pr ON pr.id = s.author_id
		JOIN paragraphs g ON g.id = s.paragraph_id
		JOIN pages p ON p.id = g.page_id
		WHERE NOT s.is_deleted
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load suggestions: %w", err)
	}
	defer sgRows.Close()

	suggestions := make([]SuggestionRecord, 0)
	for sgRows.Next() {
		var r SuggestionRecord
		if err := sgRows.Scan(&r.ID, &r.ProposedContent, &r.Rationale, &r.PageID, &r.ChapterID, &r.Status, &r.AuthorName); err != nil {
			return nil, nil, nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, r)
	}
	if err := sgRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate suggestions: %w", err)
	}

	return pages, comments, suggestions, nil
}
