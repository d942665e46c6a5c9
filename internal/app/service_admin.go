package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"folio/api/internal/settings"
)

// Administration: user moderation, site settings, email log, reindexing.

func (s *Service) ListUsers(ctx context.Context) ([]map[string]any, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(profiles))
	for _, profile := range profiles {
		items = append(items, profileJSON(profile))
	}
	return items, nil
}

func (s *Service) SetUserBlocked(ctx context.Context, profileID string, blocked bool) error {
	return s.store.SetProfileBlocked(ctx, profileID, blocked)
}

// FreezeUser suspends commenting and suggesting for the given number of
// hours; zero lifts an existing freeze.
func (s *Service) FreezeUser(ctx context.Context, profileID string, hours int) error {
	if hours < 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "hours must not be negative", nil)
	}
	var until *time.Time
	if hours > 0 {
		t := time.Now().Add(time.Duration(hours) * time.Hour)
		until = &t
	}
	return s.store.FreezeProfile(ctx, profileID, until)
}

func (s *Service) SetUserRole(ctx context.Context, session Session, profileID, role string) error {
	switch role {
	case "viewer", "editor", "admin":
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be one of viewer, editor, admin", nil)
	}
	if profileID == session.ProfileID && role != "admin" {
		return domainError(http.StatusConflict, "SELF_DEMOTION", "Admins cannot demote themselves", nil)
	}
	return s.store.SetProfileRole(ctx, profileID, role)
}

func (s *Service) GetSettings(ctx context.Context) (map[string]string, error) {
	return s.settings.All(ctx)
}

var settingValidators = map[string]func(string) bool{
	settings.KeyRegistrationEnabled: isBoolSetting,
	settings.KeyCommentsEnabled:     isBoolSetting,
	settings.KeySuggestionsEnabled:  isBoolSetting,
	settings.KeySiteTitle:           func(string) bool { return true },
	settings.KeyDefaultLanguage: func(value string) bool {
		_, ok := supportedLanguages[value]
		return ok
	},
	settings.KeyCommentCooldownSeconds: func(value string) bool {
		n, err := strconv.Atoi(value)
		return err == nil && n >= 0
	},
}

// UpdateSettings validates and persists the given keys; unknown keys are
// rejected so typos do not silently create dead settings.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) (map[string]string, error) {
	for key, value := range values {
		validate, ok := settingValidators[key]
		if !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown setting "+key, nil)
		}
		if !validate(value) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid value for "+key, nil)
		}
	}
	for key, value := range values {
		if err := s.settings.Set(ctx, key, value); err != nil {
			return nil, err
		}
	}
	return s.settings.All(ctx)
}

func (s *Service) EmailLog(ctx context.Context, limit int) ([]map[string]any, error) {
	entries, err := s.store.ListEmailLog(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":        entry.ID,
			"recipient": entry.Recipient,
			"subject":   entry.Subject,
			"kind":      entry.Kind,
			"status":    entry.Status,
			"error":     entry.Error,
			"createdAt": entry.CreatedAt.Unix(),
		})
	}
	return items, nil
}

// ReindexSearch rebuilds the Meilisearch indexes from PostgreSQL.
func (s *Service) ReindexSearch(ctx context.Context) {
	s.search.ReindexAllFromPG(ctx)
}

func isBoolSetting(value string) bool {
	_, err := strconv.ParseBool(value)
	return err == nil
}
