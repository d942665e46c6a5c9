package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertComment writes the comment, stamps the author's last_comment_at,
// and fans out notifications to the page's followers in one transaction.
// fanoutPageID is the page the comment ultimately belongs to, already
// resolved for paragraph and suggestion targets.
func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment, fanoutPageID, actorName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert comment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (id, page_id, paragraph_id, suggestion_id, parent_id, author_id, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, comment.ID, comment.PageID, comment.ParagraphID, comment.SuggestionID, comment.ParentID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE profiles SET last_comment_at=NOW() WHERE id=$1
	`, comment.AuthorID)
	if err != nil {
		return fmt.Errorf("stamp last comment: %w", err)
	}

	if fanoutPageID != "" {
		commentID := comment.ID
		if err := notifyFollowersTx(ctx, tx, fanoutPageID, comment.AuthorID, "comment", &commentID, nil, actorName, comment.Body); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert comment tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.page_id, c.paragraph_id, c.suggestion_id, c.parent_id, c.author_id, p.display_name, c.body, c.is_deleted, c.created_at, c.updated_at
		FROM comments c
		JOIN profiles p ON p.id = c.author_id
		WHERE c.id=$1
	`, commentID).Scan(&c.ID, &c.PageID, &c.ParagraphID, &c.SuggestionID, &c.ParentID, &c.AuthorID, &c.AuthorName, &c.Body, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *PostgresStore) ListPageComments(ctx context.Context, pageID string) ([]CommentNode, error) {
	return s.listComments(ctx, `c.page_id = $1`, pageID)
}

func (s *PostgresStore) ListParagraphComments(ctx context.Context, paragraphID string) ([]CommentNode, error) {
	return s.listComments(ctx, `c.paragraph_id = $1`, paragraphID)
}

func (s *PostgresStore) ListSuggestionComments(ctx context.Context, suggestionID string) ([]CommentNode, error) {
	return s.listComments(ctx, `c.suggestion_id = $1`, suggestionID)
}

// listComments returns a flat, chronologically ordered list with vote
// totals aggregated at read time. Tree reconstruction happens in the
// service layer in a single pass over this order.
func (s *PostgresStore) listComments(ctx context.Context, where string, arg any) ([]CommentNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.page_id, c.paragraph_id, c.suggestion_id, c.parent_id, c.author_id, p.display_name, c.body, c.is_deleted, c.created_at, c.updated_at,
			COALESCE((SELECT SUM(v.vote) FROM comment_votes v WHERE v.comment_id = c.id), 0)
		FROM comments c
		JOIN profiles p ON p.id = c.author_id
		WHERE `+where+`
		ORDER BY c.created_at ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]CommentNode, 0)
	for rows.Next() {
		var item CommentNode
		if err := rows.Scan(
			&item.ID,
			&item.PageID,
			&item.ParagraphID,
			&item.SuggestionID,
			&item.ParentID,
			&item.AuthorID,
			&item.AuthorName,
			&item.Body,
			&item.IsDeleted,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.VoteTotal,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// SoftDeleteComment keeps the row so replies stay attached; readers see a
// tombstone instead of the body.
func (s *PostgresStore) SoftDeleteComment(ctx context.Context, commentID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT is_deleted
	`, commentID)
	if err != nil {
		return fmt.Errorf("soft delete comment: %w", err)
	}
	return requireAffected(result)
}

// ToggleCommentVote removes the vote when the same value is cast again,
// otherwise writes the new value over any previous one.
func (s *PostgresStore) ToggleCommentVote(ctx context.Context, commentID, profileID string, vote int) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comment_votes WHERE comment_id=$1 AND profile_id=$2 AND vote=$3
	`, commentID, profileID, vote)
	if err != nil {
		return fmt.Errorf("toggle comment vote: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("toggle comment vote rows: %w", err)
	} else if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO comment_votes (comment_id, profile_id, vote)
		VALUES ($1, $2, $3)
		ON CONFLICT (comment_id, profile_id) DO UPDATE SET vote=EXCLUDED.vote, updated_at=NOW()
	`, commentID, profileID, vote)
	if err != nil {
		return fmt.Errorf("upsert comment vote: %w", err)
	}
	return nil
}

const suggestionColumns = `s.id, s.paragraph_id, s.author_id, p.display_name, s.proposed_content, s.rationale,
	s.status, s.is_deleted, s.base_version, s.created_ip, s.created_user_agent,
	s.approved_by_name, s.approved_at, s.rejected_by_name, s.rejected_at,
	COALESCE((SELECT SUM(v.vote) FROM suggestion_votes v WHERE v.suggestion_id = s.id), 0),
	s.created_at, s.updated_at`

func scanSuggestion(row interface{ Scan(...any) error }) (Suggestion, error) {
	var sg Suggestion
	err := row.Scan(
		&sg.ID,
		&sg.ParagraphID,
		&sg.AuthorID,
		&sg.AuthorName,
		&sg.ProposedContent,
		&sg.Rationale,
		&sg.Status,
		&sg.IsDeleted,
		&sg.BaseVersion,
		&sg.CreatedIP,
		&sg.CreatedUserAgent,
		&sg.ApprovedBy,
		&sg.ApprovedAt,
		&sg.RejectedBy,
		&sg.RejectedAt,
		&sg.VoteTotal,
		&sg.CreatedAt,
		&sg.UpdatedAt,
	)
	return sg, err
}

// InsertSuggestion records the proposal and notifies the page's followers.
// BaseVersion is the paragraph's version count at submission time, used
// later to detect that the paragraph moved on before approval.
func (s *PostgresStore) InsertSuggestion(ctx context.Context, sg Suggestion, fanoutPageID, actorName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert suggestion tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paragraph_suggestions (id, paragraph_id, author_id, proposed_content, rationale, base_version, created_ip, created_user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sg.ID, sg.ParagraphID, sg.AuthorID, sg.ProposedContent, sg.Rationale, sg.BaseVersion, sg.CreatedIP, sg.CreatedUserAgent)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}

	if fanoutPageID != "" {
		suggestionID := sg.ID
		if err := notifyFollowersTx(ctx, tx, fanoutPageID, sg.AuthorID, "suggestion", nil, &suggestionID, actorName, sg.ProposedContent); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert suggestion tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, suggestionID string) (Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+suggestionColumns+`
		FROM paragraph_suggestions s
		JOIN profiles p ON p.id = s.author_id
		WHERE s.id=$1
	`, suggestionID)
	return scanSuggestion(row)
}

func (s *PostgresStore) ListParagraphSuggestions(ctx context.Context, paragraphID string, includeDeleted bool) ([]Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+suggestionColumns+`
		FROM paragraph_suggestions s
		JOIN profiles p ON p.id = s.author_id
		WHERE s.paragraph_id=$1 AND ($2 OR NOT s.is_deleted)
		ORDER BY s.created_at ASC
	`, paragraphID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return collectSuggestions(rows)
}

// ListPendingSuggestions is the moderation queue, oldest first.
func (s *PostgresStore) ListPendingSuggestions(ctx context.Context) ([]Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+suggestionColumns+`
		FROM paragraph_suggestions s
		JOIN profiles p ON p.id = s.author_id
		WHERE s.status='pending' AND NOT s.is_deleted
		ORDER BY s.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending suggestions: %w", err)
	}
	return collectSuggestions(rows)
}

func collectSuggestions(rows *sql.Rows) ([]Suggestion, error) {
	defer rows.Close()

	items := make([]Suggestion, 0)
	for rows.Next() {
		item, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return items, nil
}

// UpdateSuggestionContent lets the author amend a proposal while it is
// still pending. Decided or deleted suggestions are immutable.
func (s *PostgresStore) UpdateSuggestionContent(ctx context.Context, suggestionID, authorID, proposedContent, rationale string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE paragraph_suggestions
		SET proposed_content=$3, rationale=$4, updated_at=NOW()
		WHERE id=$1 AND author_id=$2 AND status='pending' AND NOT is_deleted
	`, suggestionID, authorID, proposedContent, rationale)
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suggestion rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `
		SELECT status FROM paragraph_suggestions WHERE id=$1 AND author_id=$2 AND NOT is_deleted
	`, suggestionID, authorID).Scan(&status)
	if err != nil {
		return err
	}
	return ErrNotPending
}

// ApproveSuggestion applies the proposal to the live paragraph and marks
// the suggestion approved in one transaction. The current content is
// archived first so the edit stays reversible. With enforceBase set, the
// approval fails with ErrVersionConflict when the paragraph has been
// edited since the suggestion was created.
func (s *PostgresStore) ApproveSuggestion(ctx context.Context, suggestionID, approverID, approverName string, enforceBase bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		paragraphID, authorID, proposedContent, status string
		isDeleted                                      bool
		baseVersion                                    int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT paragraph_id, author_id, proposed_content, status, is_deleted, base_version
		FROM paragraph_suggestions WHERE id=$1 FOR UPDATE
	`, suggestionID).Scan(&paragraphID, &authorID, &proposedContent, &status, &isDeleted, &baseVersion)
	if err != nil {
		return err
	}
	if status != SuggestionPending || isDeleted {
		return ErrNotPending
	}

	if enforceBase {
		var current int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0) FROM paragraph_versions WHERE paragraph_id=$1
		`, paragraphID).Scan(&current)
		if err != nil {
			return fmt.Errorf("check base version: %w", err)
		}
		if current != baseVersion {
			return ErrVersionConflict
		}
	}

	if err := archiveParagraphTx(ctx, tx, paragraphID, approverName); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE paragraphs SET content=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
	`, paragraphID, proposedContent, approverName)
	if err != nil {
		return fmt.Errorf("apply suggestion: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE paragraph_suggestions
		SET status='approved', approved_by_name=$2, approved_at=NOW(), updated_at=NOW()
		WHERE id=$1
	`, suggestionID, approverName)
	if err != nil {
		return fmt.Errorf("mark suggestion approved: %w", err)
	}

	if authorID != approverID {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (profile_id, kind, suggestion_id, actor_name, message)
			VALUES ($1, 'suggestion_approved', $2, $3, $4)
		`, authorID, suggestionID, approverName, proposedContent)
		if err != nil {
			return fmt.Errorf("notify suggestion author: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// RejectSuggestion marks a pending proposal rejected and notifies its
// author. The live paragraph is untouched.
func (s *PostgresStore) RejectSuggestion(ctx context.Context, suggestionID, approverID, approverName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var authorID string
	err = tx.QueryRowContext(ctx, `
		UPDATE paragraph_suggestions
		SET status='rejected', rejected_by_name=$2, rejected_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='pending' AND NOT is_deleted
		RETURNING author_id
	`, suggestionID, approverName).Scan(&authorID)
	if err == sql.ErrNoRows {
		var status string
		if lookupErr := tx.QueryRowContext(ctx, `
			SELECT status FROM paragraph_suggestions WHERE id=$1 AND NOT is_deleted
		`, suggestionID).Scan(&status); lookupErr != nil {
			return lookupErr
		}
		return ErrNotPending
	}
	if err != nil {
		return fmt.Errorf("mark suggestion rejected: %w", err)
	}

	if authorID != approverID {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (profile_id, kind, suggestion_id, actor_name)
			VALUES ($1, 'suggestion_rejected', $2, $3)
		`, authorID, suggestionID, approverName)
		if err != nil {
			return fmt.Errorf("notify suggestion author: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reject tx: %w", err)
	}
	return nil
}

// SoftDeleteSuggestion hides the suggestion from listings without touching
// its moderation status.
func (s *PostgresStore) SoftDeleteSuggestion(ctx context.Context, suggestionID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE paragraph_suggestions SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT is_deleted
	`, suggestionID)
	if err != nil {
		return fmt.Errorf("soft delete suggestion: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ToggleSuggestionVote(ctx context.Context, suggestionID, profileID string, vote int) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM suggestion_votes WHERE suggestion_id=$1 AND profile_id=$2 AND vote=$3
	`, suggestionID, profileID, vote)
	if err != nil {
		return fmt.Errorf("toggle suggestion vote: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("toggle suggestion vote rows: %w", err)
	} else if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestion_votes (suggestion_id, profile_id, vote)
		VALUES ($1, $2, $3)
		ON CONFLICT (suggestion_id, profile_id) DO UPDATE SET vote=EXCLUDED.vote, updated_at=NOW()
	`, suggestionID, profileID, vote)
	if err != nil {
		return fmt.Errorf("upsert suggestion vote: %w", err)
	}
	return nil
}
