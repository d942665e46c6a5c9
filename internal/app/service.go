package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/authpw"
	"folio/api/internal/backup"
	"folio/api/internal/config"
	"folio/api/internal/email"
	"folio/api/internal/media"
	"folio/api/internal/rbac"
	"folio/api/internal/search"
	"folio/api/internal/session"
	"folio/api/internal/settings"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

// Session is an authenticated caller. Role and Language are re-read from
// the profile on every token check so moderation changes apply immediately.
type Session struct {
	Token        string
	RefreshToken string
	ProfileID    string
	ProfileName  string
	Role         string
	Language     string
	JTI          string
	ExpiresAt    time.Time
}

var supportedLanguages = map[string]struct{}{
	"ru": {},
	"en": {},
	"kk": {},
}

type dataStore interface {
	// profiles
	CreateProfile(ctx context.Context, profile store.Profile) error
	GetProfileByEmail(ctx context.Context, email string) (store.Profile, error)
	GetProfileByID(ctx context.Context, profileID string) (store.Profile, error)
	UpdateProfile(ctx context.Context, profileID, displayName, language string) error
	UpdateProfilePassword(ctx context.Context, profileID, passwordHash string) error
	UpdateProfileVerificationToken(ctx context.Context, profileID, token string, expiresAt time.Time) error
	VerifyProfileEmail(ctx context.Context, token string) error
	CreatePasswordReset(ctx context.Context, profileID, token string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, token string) (string, error)
	MarkPasswordResetUsed(ctx context.Context, token string) error
	ListProfiles(ctx context.Context) ([]store.Profile, error)
	SetProfileBlocked(ctx context.Context, profileID string, blocked bool) error
	FreezeProfile(ctx context.Context, profileID string, until *time.Time) error
	SetProfileRole(ctx context.Context, profileID, role string) error

	// access tokens
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	// settings and email log
	ListSettings(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, key, value string) error
	InsertEmailLog(ctx context.Context, entry store.EmailLogEntry) error
	ListEmailLog(ctx context.Context, limit int) ([]store.EmailLogEntry, error)

	// follows and notifications
	FollowPage(ctx context.Context, pageID, profileID string) error
	UnfollowPage(ctx context.Context, pageID, profileID string) error
	ListPageFollowerEmails(ctx context.Context, pageID, excludeProfileID string) ([]string, error)
	ListNotifications(ctx context.Context, profileID string, limit int) ([]store.Notification, error)
	UnreadNotificationCount(ctx context.Context, profileID string) (int, error)
	MarkNotificationsRead(ctx context.Context, profileID string, ids []int64) error

	// content tree
	ListChapters(ctx context.Context, lang string, includeHidden bool) ([]store.Chapter, error)
	GetChapter(ctx context.Context, chapterID string) (store.Chapter, error)
	GetChapterLocalized(ctx context.Context, chapterID, lang string) (store.Chapter, error)
	InsertChapter(ctx context.Context, chapter store.Chapter) error
	UpdateChapter(ctx context.Context, chapter store.Chapter) error
	DeleteChapter(ctx context.Context, chapterID string) error
	ReorderChapters(ctx context.Context, orderedIDs []string) error
	GetTOC(ctx context.Context, lang string, includeHidden bool) ([]store.TOCChapter, error)
	ListPagesByChapter(ctx context.Context, chapterID, lang string, includeHidden bool) ([]store.Page, error)
	GetPage(ctx context.Context, pageID string) (store.Page, error)
	GetPageLocalized(ctx context.Context, pageID, lang string) (store.Page, error)
	InsertPage(ctx context.Context, page store.Page) error
	UpdatePage(ctx context.Context, page store.Page) error
	DeletePage(ctx context.Context, pageID string) error
	ReorderPages(ctx context.Context, orderedIDs []string) error
	ListParagraphsByPage(ctx context.Context, pageID, lang string, includeHidden bool) ([]store.Paragraph, error)
	GetParagraph(ctx context.Context, paragraphID string) (store.Paragraph, error)
	InsertParagraph(ctx context.Context, paragraph store.Paragraph) error
	UpdateParagraph(ctx context.Context, paragraph store.Paragraph) error
	DeleteParagraph(ctx context.Context, paragraphID string) error
	ReorderParagraphs(ctx context.Context, orderedIDs []string) error

	// translations
	UpsertChapterTranslation(ctx context.Context, chapterID, lang, title, summary string) error
	DeleteChapterTranslation(ctx context.Context, chapterID, lang string) error
	UpsertPageTranslation(ctx context.Context, pageID, lang, title, body string) error
	DeletePageTranslation(ctx context.Context, pageID, lang string) error
	UpsertParagraphTranslation(ctx context.Context, paragraphID, lang, content, caption string) error
	DeleteParagraphTranslation(ctx context.Context, paragraphID, lang string) error

	// versions
	ListPageVersions(ctx context.Context, pageID string) ([]store.PageVersion, error)
	GetPageVersion(ctx context.Context, pageID string, version int) (store.PageVersion, error)
	ListParagraphVersions(ctx context.Context, paragraphID string) ([]store.ParagraphVersion, error)
	GetParagraphVersion(ctx context.Context, paragraphID string, version int) (store.ParagraphVersion, error)
	CurrentParagraphVersion(ctx context.Context, paragraphID string) (int, error)
	RestorePageVersion(ctx context.Context, pageID string, version int, editorName string) error
	RestoreParagraphVersion(ctx context.Context, paragraphID string, version int, editorName string) error

	// discussion
	InsertComment(ctx context.Context, comment store.Comment, fanoutPageID, actorName string) error
	GetComment(ctx context.Context, commentID string) (store.Comment, error)
	ListPageComments(ctx context.Context, pageID string) ([]store.CommentNode, error)
	ListParagraphComments(ctx context.Context, paragraphID string) ([]store.CommentNode, error)
	ListSuggestionComments(ctx context.Context, suggestionID string) ([]store.CommentNode, error)
	SoftDeleteComment(ctx context.Context, commentID string) error
	ToggleCommentVote(ctx context.Context, commentID, profileID string, vote int) error
	InsertSuggestion(ctx context.Context, sg store.Suggestion, fanoutPageID, actorName string) error
	GetSuggestion(ctx context.Context, suggestionID string) (store.Suggestion, error)
	ListParagraphSuggestions(ctx context.Context, paragraphID string, includeDeleted bool) ([]store.Suggestion, error)
	ListPendingSuggestions(ctx context.Context) ([]store.Suggestion, error)
	UpdateSuggestionContent(ctx context.Context, suggestionID, authorID, proposedContent, rationale string) error
	ApproveSuggestion(ctx context.Context, suggestionID, approverID, approverName string, enforceBase bool) error
	RejectSuggestion(ctx context.Context, suggestionID, approverID, approverName string) error
	SoftDeleteSuggestion(ctx context.Context, suggestionID string) error
	ToggleSuggestionVote(ctx context.Context, suggestionID, profileID string, vote int) error

	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. PostgresStore is the default backend;
// session.RedisStore replaces it when Redis is configured.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, profileID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Profile, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	settings *settings.Cache
	search   *search.Service
	backup   *backup.Service
	media    *media.Service
	email    *email.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, backupService *backup.Service, mediaService *media.Service) *Service {
	return newService(cfg, dataStore, dataStore, searchService, backupService, mediaService)
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchService *search.Service, backupService *backup.Service, mediaService *media.Service) *Service {
	return newService(cfg, dataStore, sessions, searchService, backupService, mediaService)
}

func newService(cfg config.Config, ds dataStore, sessions sessionStore, searchService *search.Service, backupService *backup.Service, mediaService *media.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    ds,
		sessions: sessions,
		authpw:   authpw.NewService(ds),
		settings: settings.NewCache(ds),
		search:   searchService,
		backup:   backupService,
		media:    mediaService,
		email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) RegistrationEnabled(ctx context.Context) bool {
	return s.settings.GetBool(ctx, settings.KeyRegistrationEnabled, true)
}

// CreateSession issues access and refresh tokens for a verified profile.
func (s *Service) CreateSession(ctx context.Context, profileID string) (Session, error) {
	profile, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, profile)
}

// Refresh rotates the refresh token. The profile is re-read from the
// database so a revoked role or a fresh block takes effect here too.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	profile, err := s.store.GetProfileByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	if profile.IsBlocked {
		return Session{}, domainError(http.StatusForbidden, "ACCOUNT_BLOCKED", "Account is blocked", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) issueSession(ctx context.Context, profile store.Profile) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  profile.ID,
		Name: profile.DisplayName,
		Role: profile.Role,
		Lang: profile.Language,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), profile.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		ProfileID:    profile.ID,
		ProfileName:  profile.DisplayName,
		Role:         profile.Role,
		Language:     profile.Language,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	profile, err := s.store.GetProfileByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if profile.IsBlocked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:       token,
		ProfileID:   profile.ID,
		ProfileName: profile.DisplayName,
		Role:        profile.Role,
		Language:    profile.Language,
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, session Session) (map[string]any, error) {
	profile, err := s.store.GetProfileByID(ctx, session.ProfileID)
	if err != nil {
		return nil, err
	}
	return profileJSON(profile), nil
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, displayName, language string) (map[string]any, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}
	if _, ok := supportedLanguages[language]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "language must be one of ru, en, kk", nil)
	}
	if err := s.store.UpdateProfile(ctx, session.ProfileID, displayName, language); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, session)
}

// contentLanguage picks the language for localized reads: explicit query
// param, then the profile preference, then the site default.
func (s *Service) contentLanguage(ctx context.Context, session Session, requested string) string {
	if _, ok := supportedLanguages[requested]; ok {
		return requested
	}
	if _, ok := supportedLanguages[session.Language]; ok {
		return session.Language
	}
	return s.settings.GetString(ctx, settings.KeyDefaultLanguage, "ru")
}

// requireContributor re-reads the caller's profile and rejects blocked and
// frozen accounts. Returns the fresh profile for follow-up checks.
func (s *Service) requireContributor(ctx context.Context, session Session) (store.Profile, error) {
	profile, err := s.store.GetProfileByID(ctx, session.ProfileID)
	if err != nil {
		return store.Profile{}, err
	}
	if profile.IsBlocked {
		return store.Profile{}, domainError(http.StatusForbidden, "ACCOUNT_BLOCKED", "Account is blocked", nil)
	}
	if profile.FrozenUntil != nil && profile.FrozenUntil.After(time.Now()) {
		return store.Profile{}, domainError(http.StatusForbidden, "ACCOUNT_FROZEN", "Account is frozen", map[string]any{
			"frozenUntil": profile.FrozenUntil.Unix(),
		})
	}
	return profile, nil
}

// SendVerificationEmail delivers the signup verification link and records
// the attempt in the email log.
func (s *Service) SendVerificationEmail(recipient, userName, token string) {
	url := s.cfg.PublicBaseURL + "/verify-email?token=" + token
	s.sendLogged(recipient, "Verify your Folio account", "verification", func() error {
		return s.email.SendVerificationEmail(recipient, userName, url)
	})
}

func (s *Service) SendPasswordResetEmail(recipient, userName, token string) {
	url := s.cfg.PublicBaseURL + "/reset-password?token=" + token
	s.sendLogged(recipient, "Reset your Folio password", "password_reset", func() error {
		return s.email.SendPasswordResetEmail(recipient, userName, url)
	})
}

// notifyFollowersByEmail mails everyone following the page except the actor.
// Runs in the background; in-app notification rows were already written
// inside the triggering transaction.
func (s *Service) notifyFollowersByEmail(pageID, actorID, actorName, summary string) {
	if !s.email.IsConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		page, err := s.store.GetPage(ctx, pageID)
		if err != nil {
			log.Printf("email fanout: load page %s: %v", pageID, err)
			return
		}
		recipients, err := s.store.ListPageFollowerEmails(ctx, pageID, actorID)
		if err != nil {
			log.Printf("email fanout: list followers for %s: %v", pageID, err)
			return
		}
		pageURL := s.cfg.PublicBaseURL + "/pages/" + pageID
		subject := "New activity on \"" + page.Title + "\""
		for _, recipient := range recipients {
			s.sendLogged(recipient, subject, "page_activity", func() error {
				return s.email.SendPageActivityEmail(recipient, page.Title, actorName, summary, pageURL)
			})
		}
	}()
}

func (s *Service) sendLogged(recipient, subject, kind string, send func() error) {
	entry := store.EmailLogEntry{
		Recipient: recipient,
		Subject:   subject,
		Kind:      kind,
		Status:    "sent",
	}
	if err := send(); err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		log.Printf("email: send %s to %s: %v", kind, recipient, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.InsertEmailLog(ctx, entry); err != nil {
		log.Printf("email: log entry: %v", err)
	}
}

func profileJSON(profile store.Profile) map[string]any {
	var frozenUntil any
	if profile.FrozenUntil != nil {
		frozenUntil = profile.FrozenUntil.Unix()
	}
	return map[string]any{
		"id":              profile.ID,
		"email":           profile.Email,
		"displayName":     profile.DisplayName,
		"role":            profile.Role,
		"language":        profile.Language,
		"isBlocked":       profile.IsBlocked,
		"frozenUntil":     frozenUntil,
		"isEmailVerified": profile.IsEmailVerified,
		"createdAt":       profile.CreatedAt.Unix(),
	}
}
