package app

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"folio/api/internal/rbac"
	"folio/api/internal/search"
	"folio/api/internal/settings"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

const (
	maxCommentLength          = 4000
	maxSuggestionLength       = 20000
	defaultCommentCooldownSec = 30
)

// CommentTarget names the entity a comment is attached to.
type CommentTarget string

const (
	TargetPage       CommentTarget = "page"
	TargetParagraph  CommentTarget = "paragraph"
	TargetSuggestion CommentTarget = "suggestion"
)

// CreateComment attaches a comment to a page, paragraph, or suggestion.
// Fan-out rows for page followers are written inside the same transaction
// as the comment itself; follower emails go out afterwards.
func (s *Service) CreateComment(ctx context.Context, session Session, target CommentTarget, targetID string, parentID *string, body string) (map[string]any, error) {
	if !s.settings.GetBool(ctx, settings.KeyCommentsEnabled, true) {
		return nil, domainError(http.StatusForbidden, "COMMENTS_DISABLED", "Comments are disabled", nil)
	}

	profile, err := s.requireContributor(ctx, session)
	if err != nil {
		return nil, err
	}

	cooldown := time.Duration(s.settings.GetInt(ctx, settings.KeyCommentCooldownSeconds, defaultCommentCooldownSec)) * time.Second
	if profile.LastCommentAt != nil && cooldown > 0 {
		remaining := time.Until(profile.LastCommentAt.Add(cooldown))
		if remaining > 0 {
			return nil, domainError(http.StatusTooManyRequests, "COMMENT_COOLDOWN", "Please wait before commenting again", map[string]any{
				"retryAfterSeconds": int(remaining.Seconds()) + 1,
			})
		}
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if len(body) > maxCommentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is too long", nil)
	}

	pageID, chapterID, err := s.resolveCommentPage(ctx, target, targetID)
	if err != nil {
		return nil, err
	}

	comment := store.Comment{
		ID:       util.NewID("cm"),
		AuthorID: session.ProfileID,
		Body:     body,
	}
	switch target {
	case TargetPage:
		comment.PageID = &targetID
	case TargetParagraph:
		comment.ParagraphID = &targetID
	case TargetSuggestion:
		comment.SuggestionID = &targetID
	}

	if parentID != nil && *parentID != "" {
		parent, err := s.store.GetComment(ctx, *parentID)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent comment not found", nil)
		}
		if !sameCommentTarget(parent, comment) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent comment belongs to a different target", nil)
		}
		comment.ParentID = parentID
	}

	if err := s.store.InsertComment(ctx, comment, pageID, session.ProfileName); err != nil {
		return nil, err
	}

	s.search.IndexComment(search.CommentRecord{
		ID:         comment.ID,
		Body:       comment.Body,
		PageID:     pageID,
		ChapterID:  chapterID,
		AuthorName: session.ProfileName,
	})
	s.notifyFollowersByEmail(pageID, session.ProfileID, session.ProfileName, "left a comment")

	created, err := s.store.GetComment(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	return commentJSON(created), nil
}

func (s *Service) ListComments(ctx context.Context, target CommentTarget, targetID string) ([]map[string]any, error) {
	var (
		flat []store.CommentNode
		err  error
	)
	switch target {
	case TargetPage:
		if _, err := s.store.GetPage(ctx, targetID); err != nil {
			return nil, err
		}
		flat, err = s.store.ListPageComments(ctx, targetID)
	case TargetParagraph:
		if _, err := s.store.GetParagraph(ctx, targetID); err != nil {
			return nil, err
		}
		flat, err = s.store.ListParagraphComments(ctx, targetID)
	case TargetSuggestion:
		if _, err := s.store.GetSuggestion(ctx, targetID); err != nil {
			return nil, err
		}
		flat, err = s.store.ListSuggestionComments(ctx, targetID)
	default:
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}

	tree := buildCommentTree(flat)
	items := make([]map[string]any, 0, len(tree))
	for _, node := range tree {
		items = append(items, commentNodeJSON(node))
	}
	return items, nil
}

// DeleteComment soft-deletes; the row stays so replies keep their anchor.
// Allowed for the author and for moderators.
func (s *Service) DeleteComment(ctx context.Context, session Session, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != session.ProfileID && !s.Can(session.Role, rbac.ActionModerate) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if err := s.store.SoftDeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.search.DeleteComment(commentID)
	return nil
}

// VoteComment toggles the caller's vote: voting the same way again removes
// it, voting the other way overwrites it.
func (s *Service) VoteComment(ctx context.Context, session Session, commentID, direction string) error {
	vote, err := parseVote(direction)
	if err != nil {
		return err
	}
	if _, err := s.requireContributor(ctx, session); err != nil {
		return err
	}
	if _, err := s.store.GetComment(ctx, commentID); err != nil {
		return err
	}
	return s.store.ToggleCommentVote(ctx, commentID, session.ProfileID, vote)
}

// Suggestions.

// CreateSuggestion records a proposed replacement for a paragraph along
// with the paragraph's current version as the conflict token.
func (s *Service) CreateSuggestion(ctx context.Context, session Session, paragraphID, proposedContent, rationale, ip, userAgent string) (map[string]any, error) {
	if !s.settings.GetBool(ctx, settings.KeySuggestionsEnabled, true) {
		return nil, domainError(http.StatusForbidden, "SUGGESTIONS_DISABLED", "Suggestions are disabled", nil)
	}
	if _, err := s.requireContributor(ctx, session); err != nil {
		return nil, err
	}

	proposedContent = strings.TrimSpace(proposedContent)
	if proposedContent == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "proposedContent is required", nil)
	}
	if len(proposedContent) > maxSuggestionLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "proposedContent is too long", nil)
	}

	paragraph, err := s.store.GetParagraph(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	baseVersion, err := s.store.CurrentParagraphVersion(ctx, paragraphID)
	if err != nil {
		return nil, err
	}

	sg := store.Suggestion{
		ID:               util.NewID("sg"),
		ParagraphID:      paragraphID,
		AuthorID:         session.ProfileID,
		ProposedContent:  proposedContent,
		Rationale:        strings.TrimSpace(rationale),
		Status:           store.SuggestionPending,
		BaseVersion:      baseVersion,
		CreatedIP:        ip,
		CreatedUserAgent: userAgent,
	}
	if err := s.store.InsertSuggestion(ctx, sg, paragraph.PageID, session.ProfileName); err != nil {
		return nil, err
	}

	s.indexSuggestionByID(ctx, sg.ID)
	s.notifyFollowersByEmail(paragraph.PageID, session.ProfileID, session.ProfileName, "suggested an edit")

	created, err := s.store.GetSuggestion(ctx, sg.ID)
	if err != nil {
		return nil, err
	}
	return suggestionJSON(created), nil
}

func (s *Service) GetSuggestion(ctx context.Context, suggestionID string) (map[string]any, error) {
	sg, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	return suggestionJSON(sg), nil
}

// ListParagraphSuggestions shows deleted entries to moderators only.
func (s *Service) ListParagraphSuggestions(ctx context.Context, session Session, paragraphID string) ([]map[string]any, error) {
	if _, err := s.store.GetParagraph(ctx, paragraphID); err != nil {
		return nil, err
	}
	includeDeleted := s.Can(session.Role, rbac.ActionModerate)
	suggestions, err := s.store.ListParagraphSuggestions(ctx, paragraphID, includeDeleted)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(suggestions))
	for _, sg := range suggestions {
		items = append(items, suggestionJSON(sg))
	}
	return items, nil
}

func (s *Service) ListPendingSuggestions(ctx context.Context) ([]map[string]any, error) {
	suggestions, err := s.store.ListPendingSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(suggestions))
	for _, sg := range suggestions {
		items = append(items, suggestionJSON(sg))
	}
	return items, nil
}

// UpdateSuggestion lets the author amend a still-pending suggestion.
func (s *Service) UpdateSuggestion(ctx context.Context, session Session, suggestionID, proposedContent, rationale string) (map[string]any, error) {
	sg, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if sg.AuthorID != session.ProfileID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can edit a suggestion", nil)
	}

	proposedContent = strings.TrimSpace(proposedContent)
	if proposedContent == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "proposedContent is required", nil)
	}

	if err := s.store.UpdateSuggestionContent(ctx, suggestionID, session.ProfileID, proposedContent, strings.TrimSpace(rationale)); err != nil {
		return nil, err
	}

	s.indexSuggestionByID(ctx, suggestionID)
	return s.GetSuggestion(ctx, suggestionID)
}

// ApproveSuggestion applies the proposed content to the paragraph. The
// previous content is archived as a version row in the same transaction.
// With enforceBase the approval fails when the paragraph moved past the
// suggestion's base version.
func (s *Service) ApproveSuggestion(ctx context.Context, session Session, suggestionID string, enforceBase bool) (map[string]any, error) {
	if err := s.store.ApproveSuggestion(ctx, suggestionID, session.ProfileID, session.ProfileName, enforceBase); err != nil {
		return nil, err
	}
	s.indexSuggestionByID(ctx, suggestionID)
	return s.GetSuggestion(ctx, suggestionID)
}

func (s *Service) RejectSuggestion(ctx context.Context, session Session, suggestionID string) (map[string]any, error) {
	if err := s.store.RejectSuggestion(ctx, suggestionID, session.ProfileID, session.ProfileName); err != nil {
		return nil, err
	}
	s.indexSuggestionByID(ctx, suggestionID)
	return s.GetSuggestion(ctx, suggestionID)
}

// DeleteSuggestion soft-deletes. Authors may remove their own pending
// suggestions; moderators may remove any.
func (s *Service) DeleteSuggestion(ctx context.Context, session Session, suggestionID string) error {
	sg, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	if !s.Can(session.Role, rbac.ActionModerate) {
		if sg.AuthorID != session.ProfileID {
			return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
		if sg.Status != store.SuggestionPending {
			return domainError(http.StatusConflict, "NOT_PENDING", "Only pending suggestions can be deleted by their author", nil)
		}
	}
	if err := s.store.SoftDeleteSuggestion(ctx, suggestionID); err != nil {
		return err
	}
	s.search.DeleteSuggestion(suggestionID)
	return nil
}

func (s *Service) VoteSuggestion(ctx context.Context, session Session, suggestionID, direction string) error {
	vote, err := parseVote(direction)
	if err != nil {
		return err
	}
	if _, err := s.requireContributor(ctx, session); err != nil {
		return err
	}
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		return err
	}
	return s.store.ToggleSuggestionVote(ctx, suggestionID, session.ProfileID, vote)
}

// Follows and notifications.

func (s *Service) FollowPage(ctx context.Context, session Session, pageID string) error {
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return err
	}
	return s.store.FollowPage(ctx, pageID, session.ProfileID)
}

func (s *Service) UnfollowPage(ctx context.Context, session Session, pageID string) error {
	return s.store.UnfollowPage(ctx, pageID, session.ProfileID)
}

func (s *Service) Notifications(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	notifications, err := s.store.ListNotifications(ctx, session.ProfileID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationJSON(n))
	}
	return items, nil
}

func (s *Service) UnreadNotificationCount(ctx context.Context, session Session) (int, error) {
	return s.store.UnreadNotificationCount(ctx, session.ProfileID)
}

// MarkNotificationsRead marks the given ids, or everything when ids is empty.
func (s *Service) MarkNotificationsRead(ctx context.Context, session Session, ids []int64) error {
	return s.store.MarkNotificationsRead(ctx, session.ProfileID, ids)
}

// Search.

func (s *Service) Search(ctx context.Context, session Session, text, filterType, chapterID string, limit, offset int) (search.Response, error) {
	if strings.TrimSpace(text) == "" {
		return search.Response{Results: []search.Result{}}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{
		Text:            strings.TrimSpace(text),
		FilterType:      search.ResultType(filterType),
		FilterChapterID: chapterID,
		Limit:           limit,
		Offset:          offset,
		IncludeHidden:   s.seesHidden(session.Role),
	}), nil
}

// Helpers.

// resolveCommentPage finds the page a comment ultimately belongs to, for
// follower fan-out and search indexing.
func (s *Service) resolveCommentPage(ctx context.Context, target CommentTarget, targetID string) (pageID, chapterID string, err error) {
	switch target {
	case TargetPage:
		page, err := s.store.GetPage(ctx, targetID)
		if err != nil {
			return "", "", err
		}
		return page.ID, page.ChapterID, nil
	case TargetParagraph:
		paragraph, err := s.store.GetParagraph(ctx, targetID)
		if err != nil {
			return "", "", err
		}
		page, err := s.store.GetPage(ctx, paragraph.PageID)
		if err != nil {
			return "", "", err
		}
		return page.ID, page.ChapterID, nil
	case TargetSuggestion:
		sg, err := s.store.GetSuggestion(ctx, targetID)
		if err != nil {
			return "", "", err
		}
		paragraph, err := s.store.GetParagraph(ctx, sg.ParagraphID)
		if err != nil {
			return "", "", err
		}
		page, err := s.store.GetPage(ctx, paragraph.PageID)
		if err != nil {
			return "", "", err
		}
		return page.ID, page.ChapterID, nil
	default:
		return "", "", sql.ErrNoRows
	}
}

func (s *Service) indexSuggestionByID(ctx context.Context, suggestionID string) {
	sg, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return
	}
	paragraph, err := s.store.GetParagraph(ctx, sg.ParagraphID)
	if err != nil {
		return
	}
	page, err := s.store.GetPage(ctx, paragraph.PageID)
	if err != nil {
		return
	}
	s.search.IndexSuggestion(search.SuggestionRecord{
		ID:              sg.ID,
		ProposedContent: sg.ProposedContent,
		Rationale:       sg.Rationale,
		PageID:          page.ID,
		ChapterID:       page.ChapterID,
		Status:          sg.Status,
		AuthorName:      sg.AuthorName,
	})
}

// buildCommentTree groups replies under their parents. The flat list is
// ordered by creation time, so children always follow their parent and the
// grouping preserves chronological order at every level.
func buildCommentTree(flat []store.CommentNode) []store.CommentNode {
	children := make(map[string][]store.CommentNode)
	roots := make([]store.CommentNode, 0)
	for _, node := range flat {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		children[*node.ParentID] = append(children[*node.ParentID], node)
	}

	var attach func(node store.CommentNode) store.CommentNode
	attach = func(node store.CommentNode) store.CommentNode {
		node.Replies = make([]store.CommentNode, 0, len(children[node.ID]))
		for _, child := range children[node.ID] {
			node.Replies = append(node.Replies, attach(child))
		}
		return node
	}

	tree := make([]store.CommentNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, attach(root))
	}
	return tree
}

func sameCommentTarget(parent store.Comment, child store.Comment) bool {
	switch {
	case child.PageID != nil:
		return parent.PageID != nil && *parent.PageID == *child.PageID
	case child.ParagraphID != nil:
		return parent.ParagraphID != nil && *parent.ParagraphID == *child.ParagraphID
	case child.SuggestionID != nil:
		return parent.SuggestionID != nil && *parent.SuggestionID == *child.SuggestionID
	default:
		return false
	}
}

func parseVote(direction string) (int, error) {
	switch direction {
	case "up":
		return 1, nil
	case "down":
		return -1, nil
	default:
		return 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "direction must be up or down", nil)
	}
}

func commentJSON(comment store.Comment) map[string]any {
	body := comment.Body
	if comment.IsDeleted {
		body = ""
	}
	return map[string]any{
		"id":           comment.ID,
		"pageId":       comment.PageID,
		"paragraphId":  comment.ParagraphID,
		"suggestionId": comment.SuggestionID,
		"parentId":     comment.ParentID,
		"authorId":     comment.AuthorID,
		"authorName":   comment.AuthorName,
		"body":         body,
		"isDeleted":    comment.IsDeleted,
		"createdAt":    comment.CreatedAt.Unix(),
	}
}

func commentNodeJSON(node store.CommentNode) map[string]any {
	payload := commentJSON(node.Comment)
	payload["voteTotal"] = node.VoteTotal
	replies := make([]map[string]any, 0, len(node.Replies))
	for _, reply := range node.Replies {
		replies = append(replies, commentNodeJSON(reply))
	}
	payload["replies"] = replies
	return payload
}

func suggestionJSON(sg store.Suggestion) map[string]any {
	var approvedAt, rejectedAt any
	if sg.ApprovedAt != nil {
		approvedAt = sg.ApprovedAt.Unix()
	}
	if sg.RejectedAt != nil {
		rejectedAt = sg.RejectedAt.Unix()
	}
	return map[string]any{
		"id":              sg.ID,
		"paragraphId":     sg.ParagraphID,
		"authorId":        sg.AuthorID,
		"authorName":      sg.AuthorName,
		"proposedContent": sg.ProposedContent,
		"rationale":       sg.Rationale,
		"status":          sg.Status,
		"isDeleted":       sg.IsDeleted,
		"baseVersion":     sg.BaseVersion,
		"approvedBy":      sg.ApprovedBy,
		"approvedAt":      approvedAt,
		"rejectedBy":      sg.RejectedBy,
		"rejectedAt":      rejectedAt,
		"voteTotal":       sg.VoteTotal,
		"createdAt":       sg.CreatedAt.Unix(),
		"updatedAt":       sg.UpdatedAt.Unix(),
	}
}

func notificationJSON(n store.Notification) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"kind":         n.Kind,
		"pageId":       n.PageID,
		"commentId":    n.CommentID,
		"suggestionId": n.SuggestionID,
		"actorName":    n.ActorName,
		"message":      n.Message,
		"isRead":       n.IsRead,
		"createdAt":    n.CreatedAt.Unix(),
	}
}
