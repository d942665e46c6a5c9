package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/authpw"
	"folio/api/internal/config"
	"folio/api/internal/email"
	"folio/api/internal/search"
	"folio/api/internal/settings"
	"folio/api/internal/store"
)

type fakeStore struct {
	getProfileByEmailFn       func(context.Context, string) (store.Profile, error)
	getProfileByIDFn          func(context.Context, string) (store.Profile, error)
	setProfileRoleFn          func(context.Context, string, string) error
	freezeProfileFn           func(context.Context, string, *time.Time) error
	listSettingsFn            func(context.Context) (map[string]string, error)
	upsertSettingFn           func(context.Context, string, string) error
	getChapterFn              func(context.Context, string) (store.Chapter, error)
	insertChapterFn           func(context.Context, store.Chapter) error
	getPageFn                 func(context.Context, string) (store.Page, error)
	getParagraphFn            func(context.Context, string) (store.Paragraph, error)
	currentParagraphVersionFn func(context.Context, string) (int, error)
	insertCommentFn           func(context.Context, store.Comment, string, string) error
	getCommentFn              func(context.Context, string) (store.Comment, error)
	listPageCommentsFn        func(context.Context, string) ([]store.CommentNode, error)
	toggleCommentVoteFn       func(context.Context, string, string, int) error
	insertSuggestionFn        func(context.Context, store.Suggestion, string, string) error
	getSuggestionFn           func(context.Context, string) (store.Suggestion, error)
	updateSuggestionContentFn func(context.Context, string, string, string, string) error
	softDeleteSuggestionFn    func(context.Context, string) error
	saveRefreshSessionFn      func(context.Context, string, string, time.Time) error
	lookupRefreshSessionFn    func(context.Context, string) (store.Profile, error)
	revokeRefreshSessionFn    func(context.Context, string) error
}

func (f *fakeStore) CreateProfile(context.Context, store.Profile) error { return nil }
func (f *fakeStore) GetProfileByEmail(ctx context.Context, emailAddr string) (store.Profile, error) {
	if f.getProfileByEmailFn != nil {
		return f.getProfileByEmailFn(ctx, emailAddr)
	}
	return store.Profile{}, sql.ErrNoRows
}
func (f *fakeStore) GetProfileByID(ctx context.Context, profileID string) (store.Profile, error) {
	if f.getProfileByIDFn != nil {
		return f.getProfileByIDFn(ctx, profileID)
	}
	return store.Profile{ID: profileID, DisplayName: "Test User", Role: "viewer", Language: "ru"}, nil
}
func (f *fakeStore) UpdateProfile(context.Context, string, string, string) error { return nil }
func (f *fakeStore) UpdateProfilePassword(context.Context, string, string) error { return nil }
func (f *fakeStore) UpdateProfileVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) VerifyProfileEmail(context.Context, string) error { return nil }
func (f *fakeStore) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}
func (f *fakeStore) MarkPasswordResetUsed(context.Context, string) error  { return nil }
func (f *fakeStore) ListProfiles(context.Context) ([]store.Profile, error) { return nil, nil }
func (f *fakeStore) SetProfileBlocked(context.Context, string, bool) error { return nil }
func (f *fakeStore) FreezeProfile(ctx context.Context, profileID string, until *time.Time) error {
	if f.freezeProfileFn != nil {
		return f.freezeProfileFn(ctx, profileID, until)
	}
	return nil
}
func (f *fakeStore) SetProfileRole(ctx context.Context, profileID, role string) error {
	if f.setProfileRoleFn != nil {
		return f.setProfileRoleFn(ctx, profileID, role)
	}
	return nil
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) {
	return false, nil
}
func (f *fakeStore) ListSettings(ctx context.Context) (map[string]string, error) {
	if f.listSettingsFn != nil {
		return f.listSettingsFn(ctx)
	}
	return map[string]string{}, nil
}
func (f *fakeStore) UpsertSetting(ctx context.Context, key, value string) error {
	if f.upsertSettingFn != nil {
		return f.upsertSettingFn(ctx, key, value)
	}
	return nil
}
func (f *fakeStore) InsertEmailLog(context.Context, store.EmailLogEntry) error { return nil }
func (f *fakeStore) ListEmailLog(context.Context, int) ([]store.EmailLogEntry, error) {
	return nil, nil
}
func (f *fakeStore) FollowPage(context.Context, string, string) error   { return nil }
func (f *fakeStore) UnfollowPage(context.Context, string, string) error { return nil }
func (f *fakeStore) ListPageFollowerEmails(context.Context, string, string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) ListNotifications(context.Context, string, int) ([]store.Notification, error) {
	return nil, nil
}
func (f *fakeStore) UnreadNotificationCount(context.Context, string) (int, error) { return 0, nil }
func (f *fakeStore) MarkNotificationsRead(context.Context, string, []int64) error { return nil }
func (f *fakeStore) ListChapters(context.Context, string, bool) ([]store.Chapter, error) {
	return nil, nil
}
func (f *fakeStore) GetChapter(ctx context.Context, chapterID string) (store.Chapter, error) {
	if f.getChapterFn != nil {
		return f.getChapterFn(ctx, chapterID)
	}
	return store.Chapter{ID: chapterID, Title: "Chapter"}, nil
}
func (f *fakeStore) GetChapterLocalized(ctx context.Context, chapterID, _ string) (store.Chapter, error) {
	return f.GetChapter(ctx, chapterID)
}
func (f *fakeStore) InsertChapter(ctx context.Context, chapter store.Chapter) error {
	if f.insertChapterFn != nil {
		return f.insertChapterFn(ctx, chapter)
	}
	return nil
}
func (f *fakeStore) UpdateChapter(context.Context, store.Chapter) error  { return nil }
func (f *fakeStore) DeleteChapter(context.Context, string) error         { return nil }
func (f *fakeStore) ReorderChapters(context.Context, []string) error     { return nil }
func (f *fakeStore) GetTOC(context.Context, string, bool) ([]store.TOCChapter, error) {
	return nil, nil
}
func (f *fakeStore) ListPagesByChapter(context.Context, string, string, bool) ([]store.Page, error) {
	return nil, nil
}
func (f *fakeStore) GetPage(ctx context.Context, pageID string) (store.Page, error) {
	if f.getPageFn != nil {
		return f.getPageFn(ctx, pageID)
	}
	return store.Page{ID: pageID, ChapterID: "ch_1", Title: "Page"}, nil
}
func (f *fakeStore) GetPageLocalized(ctx context.Context, pageID, _ string) (store.Page, error) {
	return f.GetPage(ctx, pageID)
}
func (f *fakeStore) InsertPage(context.Context, store.Page) error    { return nil }
func (f *fakeStore) UpdatePage(context.Context, store.Page) error    { return nil }
func (f *fakeStore) DeletePage(context.Context, string) error        { return nil }
func (f *fakeStore) ReorderPages(context.Context, []string) error    { return nil }
func (f *fakeStore) ListParagraphsByPage(context.Context, string, string, bool) ([]store.Paragraph, error) {
	return nil, nil
}
func (f *fakeStore) GetParagraph(ctx context.Context, paragraphID string) (store.Paragraph, error) {
	if f.getParagraphFn != nil {
		return f.getParagraphFn(ctx, paragraphID)
	}
	return store.Paragraph{ID: paragraphID, PageID: "pg_1", Type: store.ParagraphText, Content: "text"}, nil
}
func (f *fakeStore) InsertParagraph(context.Context, store.Paragraph) error { return nil }
func (f *fakeStore) UpdateParagraph(context.Context, store.Paragraph) error { return nil }
func (f *fakeStore) DeleteParagraph(context.Context, string) error          { return nil }
func (f *fakeStore) ReorderParagraphs(context.Context, []string) error      { return nil }
func (f *fakeStore) UpsertChapterTranslation(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeStore) DeleteChapterTranslation(context.Context, string, string) error { return nil }
func (f *fakeStore) UpsertPageTranslation(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeStore) DeletePageTranslation(context.Context, string, string) error { return nil }
func (f *fakeStore) UpsertParagraphTranslation(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeStore) DeleteParagraphTranslation(context.Context, string, string) error { return nil }
func (f *fakeStore) ListPageVersions(context.Context, string) ([]store.PageVersion, error) {
	return nil, nil
}
func (f *fakeStore) GetPageVersion(context.Context, string, int) (store.PageVersion, error) {
	return store.PageVersion{}, sql.ErrNoRows
}
func (f *fakeStore) ListParagraphVersions(context.Context, string) ([]store.ParagraphVersion, error) {
	return nil, nil
}
func (f *fakeStore) GetParagraphVersion(context.Context, string, int) (store.ParagraphVersion, error) {
	return store.ParagraphVersion{}, sql.ErrNoRows
}
func (f *fakeStore) CurrentParagraphVersion(ctx context.Context, paragraphID string) (int, error) {
	if f.currentParagraphVersionFn != nil {
		return f.currentParagraphVersionFn(ctx, paragraphID)
	}
	return 1, nil
}
func (f *fakeStore) RestorePageVersion(context.Context, string, int, string) error { return nil }
func (f *fakeStore) RestoreParagraphVersion(context.Context, string, int, string) error {
	return nil
}
func (f *fakeStore) InsertComment(ctx context.Context, comment store.Comment, fanoutPageID, actorName string) error {
	if f.insertCommentFn != nil {
		return f.insertCommentFn(ctx, comment, fanoutPageID, actorName)
	}
	return nil
}
func (f *fakeStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, commentID)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) ListPageComments(ctx context.Context, pageID string) ([]store.CommentNode, error) {
	if f.listPageCommentsFn != nil {
		return f.listPageCommentsFn(ctx, pageID)
	}
	return nil, nil
}
func (f *fakeStore) ListParagraphComments(context.Context, string) ([]store.CommentNode, error) {
	return nil, nil
}
func (f *fakeStore) ListSuggestionComments(context.Context, string) ([]store.CommentNode, error) {
	return nil, nil
}
func (f *fakeStore) SoftDeleteComment(context.Context, string) error { return nil }
func (f *fakeStore) ToggleCommentVote(ctx context.Context, commentID, profileID string, vote int) error {
	if f.toggleCommentVoteFn != nil {
		return f.toggleCommentVoteFn(ctx, commentID, profileID, vote)
	}
	return nil
}
func (f *fakeStore) InsertSuggestion(ctx context.Context, sg store.Suggestion, fanoutPageID, actorName string) error {
	if f.insertSuggestionFn != nil {
		return f.insertSuggestionFn(ctx, sg, fanoutPageID, actorName)
	}
	return nil
}
func (f *fakeStore) GetSuggestion(ctx context.Context, suggestionID string) (store.Suggestion, error) {
	if f.getSuggestionFn != nil {
		return f.getSuggestionFn(ctx, suggestionID)
	}
	return store.Suggestion{}, sql.ErrNoRows
}
func (f *fakeStore) ListParagraphSuggestions(context.Context, string, bool) ([]store.Suggestion, error) {
	return nil, nil
}
func (f *fakeStore) ListPendingSuggestions(context.Context) ([]store.Suggestion, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSuggestionContent(ctx context.Context, suggestionID, authorID, proposedContent, rationale string) error {
	if f.updateSuggestionContentFn != nil {
		return f.updateSuggestionContentFn(ctx, suggestionID, authorID, proposedContent, rationale)
	}
	return nil
}
func (f *fakeStore) ApproveSuggestion(context.Context, string, string, string, bool) error {
	return nil
}
func (f *fakeStore) RejectSuggestion(context.Context, string, string, string) error { return nil }
func (f *fakeStore) SoftDeleteSuggestion(ctx context.Context, suggestionID string) error {
	if f.softDeleteSuggestionFn != nil {
		return f.softDeleteSuggestionFn(ctx, suggestionID)
	}
	return nil
}
func (f *fakeStore) ToggleSuggestionVote(context.Context, string, string, int) error { return nil }
func (f *fakeStore) Ping(context.Context) error                                      { return nil }

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, profileID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, profileID, expiresAt)
	}
	return nil
}
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.Profile, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.Profile{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			TokenSecret: "test-secret",
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  time.Hour,
		},
		store:    fs,
		sessions: fs,
		authpw:   authpw.NewService(fs),
		settings: settings.NewCache(fs),
		search:   search.NewService(nil, nil),
		email:    email.NewService(email.Config{}),
	}
}

func assertDomain(t *testing.T, err error, status int, code string) *DomainError {
	t.Helper()
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError %d %s, got %v", status, code, err)
	}
	if de.Status != status || de.Code != code {
		t.Fatalf("expected %d %s, got %d %s", status, code, de.Status, de.Code)
	}
	return de
}

func TestRefreshRotatesToken(t *testing.T) {
	var revoked, saved string
	fs := &fakeStore{
		lookupRefreshSessionFn: func(_ context.Context, tokenHash string) (store.Profile, error) {
			return store.Profile{ID: "prf_1"}, nil
		},
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			revoked = tokenHash
			return nil
		},
		saveRefreshSessionFn: func(_ context.Context, tokenHash, profileID string, _ time.Time) error {
			saved = tokenHash
			if profileID != "prf_1" {
				t.Fatalf("saved refresh session for wrong profile %q", profileID)
			}
			return nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.Refresh(context.Background(), "rft_old")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if session.RefreshToken == "" || session.Token == "" {
		t.Fatalf("expected fresh tokens, got %+v", session)
	}
	if revoked == "" || saved == "" || revoked == saved {
		t.Fatalf("expected old hash revoked and a different hash saved, got revoked=%q saved=%q", revoked, saved)
	}
}

func TestRefreshRejectsBlockedProfile(t *testing.T) {
	fs := &fakeStore{
		lookupRefreshSessionFn: func(context.Context, string) (store.Profile, error) {
			return store.Profile{ID: "prf_1"}, nil
		},
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, IsBlocked: true}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.Refresh(context.Background(), "rft_old")
	assertDomain(t, err, http.StatusForbidden, "ACCOUNT_BLOCKED")
}

func TestSessionFromTokenPicksUpRoleChange(t *testing.T) {
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, DisplayName: "Alex", Role: "editor", Language: "en"}, nil
		},
	}
	svc := newTestService(fs)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "prf_1",
		Name: "Alex",
		Role: "viewer",
		Lang: "ru",
		JTI:  "jti_1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	session, err := svc.SessionFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("session from token: %v", err)
	}
	if session.Role != "editor" || session.Language != "en" {
		t.Fatalf("expected role and language from the current profile, got %+v", session)
	}
}

func TestSessionFromTokenRejectsBlockedProfile(t *testing.T) {
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, IsBlocked: true}, nil
		},
	}
	svc := newTestService(fs)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub: "prf_1",
		JTI: "jti_1",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := svc.SessionFromToken(context.Background(), token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for blocked profile, got %v", err)
	}
}

func TestCreateCommentRejectsWhenCommentsDisabled(t *testing.T) {
	fs := &fakeStore{
		listSettingsFn: func(context.Context) (map[string]string, error) {
			return map[string]string{settings.KeyCommentsEnabled: "false"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, TargetPage, "pg_1", nil, "hello")
	assertDomain(t, err, http.StatusForbidden, "COMMENTS_DISABLED")
}

func TestCreateCommentEnforcesCooldown(t *testing.T) {
	lastComment := time.Now().Add(-5 * time.Second)
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, Role: "viewer", LastCommentAt: &lastComment}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, TargetPage, "pg_1", nil, "hello")
	de := assertDomain(t, err, http.StatusTooManyRequests, "COMMENT_COOLDOWN")
	details, ok := de.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", de.Details)
	}
	retry, ok := details["retryAfterSeconds"].(int)
	if !ok || retry < 1 || retry > 30 {
		t.Fatalf("expected retryAfterSeconds in (0, 30], got %v", details["retryAfterSeconds"])
	}
}

func TestCreateCommentRejectsFrozenProfile(t *testing.T) {
	frozen := time.Now().Add(2 * time.Hour)
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, Role: "viewer", FrozenUntil: &frozen}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, TargetPage, "pg_1", nil, "hello")
	assertDomain(t, err, http.StatusForbidden, "ACCOUNT_FROZEN")
}

func TestCreateCommentFansOutToOwningPage(t *testing.T) {
	var inserted store.Comment
	var fanout string
	fs := &fakeStore{
		insertCommentFn: func(_ context.Context, comment store.Comment, fanoutPageID, _ string) error {
			inserted = comment
			fanout = fanoutPageID
			return nil
		},
	}
	fs.getCommentFn = func(context.Context, string) (store.Comment, error) {
		return inserted, nil
	}
	svc := newTestService(fs)

	payload, err := svc.CreateComment(context.Background(), Session{ProfileID: "prf_1", ProfileName: "Alex", Role: "viewer"}, TargetParagraph, "pr_1", nil, "looks wrong")
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if fanout != "pg_1" {
		t.Fatalf("expected fan-out to the paragraph's page, got %q", fanout)
	}
	if inserted.ParagraphID == nil || *inserted.ParagraphID != "pr_1" {
		t.Fatalf("expected comment anchored to paragraph, got %+v", inserted)
	}
	if payload["body"] != "looks wrong" {
		t.Fatalf("unexpected payload body %v", payload["body"])
	}
}

func TestCreateCommentRejectsParentFromDifferentTarget(t *testing.T) {
	otherPage := "pg_other"
	fs := &fakeStore{
		getCommentFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID, PageID: &otherPage}, nil
		},
	}
	svc := newTestService(fs)

	parent := "cm_parent"
	_, err := svc.CreateComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, TargetPage, "pg_1", &parent, "reply")
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestBuildCommentTreeNestsReplies(t *testing.T) {
	root := "cm_1"
	child := "cm_2"
	flat := []store.CommentNode{
		{Comment: store.Comment{ID: root}},
		{Comment: store.Comment{ID: child, ParentID: &root}},
		{Comment: store.Comment{ID: "cm_3", ParentID: &child}},
		{Comment: store.Comment{ID: "cm_4"}},
	}

	tree := buildCommentTree(flat)
	if len(tree) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree))
	}
	if len(tree[0].Replies) != 1 || tree[0].Replies[0].ID != child {
		t.Fatalf("expected cm_2 under cm_1, got %+v", tree[0].Replies)
	}
	if len(tree[0].Replies[0].Replies) != 1 || tree[0].Replies[0].Replies[0].ID != "cm_3" {
		t.Fatalf("expected cm_3 under cm_2, got %+v", tree[0].Replies[0].Replies)
	}
	if len(tree[1].Replies) != 0 {
		t.Fatalf("expected cm_4 to have no replies, got %+v", tree[1].Replies)
	}
}

func TestVoteCommentRejectsUnknownDirection(t *testing.T) {
	svc := newTestService(&fakeStore{})
	err := svc.VoteComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, "cm_1", "sideways")
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestVoteCommentTogglesThroughStore(t *testing.T) {
	var gotVote int
	fs := &fakeStore{
		getCommentFn: func(_ context.Context, commentID string) (store.Comment, error) {
			return store.Comment{ID: commentID}, nil
		},
		toggleCommentVoteFn: func(_ context.Context, _, _ string, vote int) error {
			gotVote = vote
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.VoteComment(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, "cm_1", "down"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if gotVote != -1 {
		t.Fatalf("expected vote -1, got %d", gotVote)
	}
}

func TestCreateSuggestionRecordsBaseVersion(t *testing.T) {
	var inserted store.Suggestion
	fs := &fakeStore{
		currentParagraphVersionFn: func(context.Context, string) (int, error) {
			return 7, nil
		},
		insertSuggestionFn: func(_ context.Context, sg store.Suggestion, _, _ string) error {
			inserted = sg
			return nil
		},
	}
	fs.getSuggestionFn = func(context.Context, string) (store.Suggestion, error) {
		return inserted, nil
	}
	svc := newTestService(fs)

	payload, err := svc.CreateSuggestion(context.Background(), Session{ProfileID: "prf_1", ProfileName: "Alex", Role: "viewer"}, "pr_1", "better wording", "typo", "198.51.100.7", "test-agent")
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	if inserted.BaseVersion != 7 {
		t.Fatalf("expected base version 7, got %d", inserted.BaseVersion)
	}
	if inserted.Status != store.SuggestionPending {
		t.Fatalf("expected pending status, got %q", inserted.Status)
	}
	if inserted.CreatedIP != "198.51.100.7" || inserted.CreatedUserAgent != "test-agent" {
		t.Fatalf("expected request metadata recorded, got %+v", inserted)
	}
	if payload["baseVersion"] != 7 {
		t.Fatalf("unexpected payload baseVersion %v", payload["baseVersion"])
	}
}

func TestCreateSuggestionRejectsWhenDisabled(t *testing.T) {
	fs := &fakeStore{
		listSettingsFn: func(context.Context) (map[string]string, error) {
			return map[string]string{settings.KeySuggestionsEnabled: "false"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateSuggestion(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, "pr_1", "text", "", "", "")
	assertDomain(t, err, http.StatusForbidden, "SUGGESTIONS_DISABLED")
}

func TestUpdateSuggestionRequiresAuthor(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, suggestionID string) (store.Suggestion, error) {
			return store.Suggestion{ID: suggestionID, AuthorID: "prf_other", Status: store.SuggestionPending}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateSuggestion(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, "sg_1", "new text", "")
	assertDomain(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestDeleteSuggestionAuthorOnlyWhilePending(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, suggestionID string) (store.Suggestion, error) {
			return store.Suggestion{ID: suggestionID, AuthorID: "prf_1", Status: store.SuggestionApproved}, nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteSuggestion(context.Background(), Session{ProfileID: "prf_1", Role: "viewer"}, "sg_1")
	assertDomain(t, err, http.StatusConflict, "NOT_PENDING")
}

func TestDeleteSuggestionAllowsModerator(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, suggestionID string) (store.Suggestion, error) {
			return store.Suggestion{ID: suggestionID, AuthorID: "prf_other", Status: store.SuggestionApproved}, nil
		},
		softDeleteSuggestionFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.DeleteSuggestion(context.Background(), Session{ProfileID: "prf_admin", Role: "admin"}, "sg_1"); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected suggestion to be soft-deleted")
	}
}

func TestContentLanguagePrecedence(t *testing.T) {
	fs := &fakeStore{
		listSettingsFn: func(context.Context) (map[string]string, error) {
			return map[string]string{settings.KeyDefaultLanguage: "kk"}, nil
		},
	}
	svc := newTestService(fs)
	ctx := context.Background()

	if got := svc.contentLanguage(ctx, Session{Language: "en"}, "ru"); got != "ru" {
		t.Fatalf("explicit request should win, got %q", got)
	}
	if got := svc.contentLanguage(ctx, Session{Language: "en"}, ""); got != "en" {
		t.Fatalf("profile language should be next, got %q", got)
	}
	if got := svc.contentLanguage(ctx, Session{}, "de"); got != "kk" {
		t.Fatalf("unsupported request should fall through to the site default, got %q", got)
	}
}

func TestUpdateProfileValidates(t *testing.T) {
	svc := newTestService(&fakeStore{})
	session := Session{ProfileID: "prf_1"}

	_, err := svc.UpdateProfile(context.Background(), session, "  ", "ru")
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	_, err = svc.UpdateProfile(context.Background(), session, "Alex", "fr")
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestUpdateSettingsRejectsUnknownKey(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.UpdateSettings(context.Background(), map[string]string{"mystery_knob": "1"})
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestUpdateSettingsValidatesBeforePersisting(t *testing.T) {
	persisted := 0
	fs := &fakeStore{
		upsertSettingFn: func(context.Context, string, string) error {
			persisted++
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateSettings(context.Background(), map[string]string{
		settings.KeyCommentsEnabled: "true",
		settings.KeyDefaultLanguage: "fr",
	})
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	if persisted != 0 {
		t.Fatalf("expected no writes when any value is invalid, got %d", persisted)
	}

	values, err := svc.UpdateSettings(context.Background(), map[string]string{
		settings.KeyDefaultLanguage:        "en",
		settings.KeyCommentCooldownSeconds: "45",
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if persisted != 2 {
		t.Fatalf("expected 2 writes, got %d", persisted)
	}
	if values[settings.KeyDefaultLanguage] != "en" || values[settings.KeyCommentCooldownSeconds] != "45" {
		t.Fatalf("expected updated values back, got %v", values)
	}
}

func TestSetUserRoleRejectsSelfDemotion(t *testing.T) {
	svc := newTestService(&fakeStore{})
	session := Session{ProfileID: "prf_admin", Role: "admin"}

	err := svc.SetUserRole(context.Background(), session, "prf_admin", "editor")
	assertDomain(t, err, http.StatusConflict, "SELF_DEMOTION")

	err = svc.SetUserRole(context.Background(), session, "prf_other", "superuser")
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestFreezeUserRejectsNegativeHours(t *testing.T) {
	svc := newTestService(&fakeStore{})
	err := svc.FreezeUser(context.Background(), "prf_1", -1)
	assertDomain(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestFreezeUserZeroLiftsFreeze(t *testing.T) {
	var got *time.Time = &time.Time{}
	fs := &fakeStore{
		freezeProfileFn: func(_ context.Context, _ string, until *time.Time) error {
			got = until
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.FreezeUser(context.Background(), "prf_1", 0); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil freeze timestamp, got %v", got)
	}
}
