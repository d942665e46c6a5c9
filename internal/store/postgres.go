package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by multi-statement mutations so the service
// layer can map them to 409s without string matching.
var (
	ErrNotPending      = errors.New("suggestion is not pending")
	ErrVersionConflict = errors.New("paragraph changed since suggestion was created")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const profileColumns = `id, email, display_name, password_hash, role, language, is_blocked, frozen_until,
	is_email_verified, verification_token, verification_expires_at, last_comment_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.PasswordHash,
		&p.Role,
		&p.Language,
		&p.IsBlocked,
		&p.FrozenUntil,
		&p.IsEmailVerified,
		&p.VerificationToken,
		&p.VerificationExpiresAt,
		&p.LastCommentAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (s *PostgresStore) CreateProfile(ctx context.Context, profile Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, display_name, password_hash, role, language, verification_token)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7)
	`, profile.ID, profile.Email, profile.DisplayName, profile.PasswordHash, profile.Role, profile.Language, profile.VerificationToken)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email=LOWER($1)`, email)
	return scanProfile(row)
}

func (s *PostgresStore) GetProfileByID(ctx context.Context, profileID string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, profileID)
	return scanProfile(row)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, profileID, displayName, language string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET display_name=$2, language=$3, updated_at=NOW()
		WHERE id=$1
	`, profileID, displayName, language)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProfilePassword(ctx context.Context, profileID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET password_hash=$2, updated_at=NOW()
		WHERE id=$1
	`, profileID, passwordHash)
	if err != nil {
		return fmt.Errorf("update profile password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProfileVerificationToken(ctx context.Context, profileID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, profileID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyProfileEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1
		  AND verification_token <> ''
		  AND (verification_expires_at IS NULL OR verification_expires_at > NOW())
	`, token)
	if err != nil {
		return fmt.Errorf("verify profile email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify profile email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, profileID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, profile_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, profileID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var profileID string
	err := s.db.QueryRowContext(ctx, `
		SELECT profile_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&profileID)
	if err != nil {
		return "", err
	}
	return profileID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	items := make([]Profile, 0)
	for rows.Next() {
		item, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetProfileBlocked(ctx context.Context, profileID string, blocked bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET is_blocked=$2, updated_at=NOW() WHERE id=$1
	`, profileID, blocked)
	if err != nil {
		return fmt.Errorf("set profile blocked: %w", err)
	}
	return nil
}

func (s *PostgresStore) FreezeProfile(ctx context.Context, profileID string, until *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET frozen_until=$2, updated_at=NOW() WHERE id=$1
	`, profileID, until)
	if err != nil {
		return fmt.Errorf("freeze profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetProfileRole(ctx context.Context, profileID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET role=$2, updated_at=NOW() WHERE id=$1
	`, profileID, role)
	if err != nil {
		return fmt.Errorf("set profile role: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, profileID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, profile_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET profile_id=EXCLUDED.profile_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, profileID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixedProfileColumns("p")+`
		FROM refresh_sessions rs
		JOIN profiles p ON p.id = rs.profile_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash)
	return scanProfile(row)
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return values, nil
}

func (s *PostgresStore) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertEmailLog(ctx context.Context, entry EmailLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_log (recipient, subject, kind, status, error)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.Recipient, entry.Subject, entry.Kind, entry.Status, entry.Error)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEmailLog(ctx context.Context, limit int) ([]EmailLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient, subject, kind, status, error, created_at
		FROM email_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list email log: %w", err)
	}
	defer rows.Close()

	items := make([]EmailLogEntry, 0)
	for rows.Next() {
		var item EmailLogEntry
		if err := rows.Scan(&item.ID, &item.Recipient, &item.Subject, &item.Kind, &item.Status, &item.Error, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate email log: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) FollowPage(ctx context.Context, pageID, profileID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_follows (page_id, profile_id)
		VALUES ($1, $2)
		ON CONFLICT (page_id, profile_id) DO NOTHING
	`, pageID, profileID)
	if err != nil {
		return fmt.Errorf("follow page: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnfollowPage(ctx context.Context, pageID, profileID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM page_follows WHERE page_id=$1 AND profile_id=$2
	`, pageID, profileID)
	if err != nil {
		return fmt.Errorf("unfollow page: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPageFollowerEmails(ctx context.Context, pageID, excludeProfileID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.email
		FROM page_follows pf
		JOIN profiles p ON p.id = pf.profile_id
		WHERE pf.page_id=$1 AND pf.profile_id <> $2 AND p.is_email_verified
	`, pageID, excludeProfileID)
	if err != nil {
		return nil, fmt.Errorf("list page follower emails: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan follower email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follower emails: %w", err)
	}
	return emails, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, profileID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, kind, page_id, comment_id, suggestion_id, actor_name, message, is_read, created_at
		FROM notifications
		WHERE profile_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(
			&item.ID,
			&item.ProfileID,
			&item.Kind,
			&item.PageID,
			&item.CommentID,
			&item.SuggestionID,
			&item.ActorName,
			&item.Message,
			&item.IsRead,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, profileID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE profile_id=$1 AND NOT is_read
	`, profileID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationsRead marks the given ids read; with no ids it marks all
// of the profile's notifications read.
func (s *PostgresStore) MarkNotificationsRead(ctx context.Context, profileID string, ids []int64) error {
	var err error
	if len(ids) == 0 {
		_, err = s.db.ExecContext(ctx, `
			UPDATE notifications SET is_read=TRUE WHERE profile_id=$1 AND NOT is_read
		`, profileID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE notifications SET is_read=TRUE WHERE profile_id=$1 AND id = ANY($2)
		`, profileID, ids)
	}
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// notifyFollowersTx inserts one notification row per follower of pageID,
// excluding the actor. Runs inside the caller's transaction so fan-out is
// atomic with the triggering mutation.
func notifyFollowersTx(ctx context.Context, tx *sql.Tx, pageID, excludeProfileID, kind string, commentID, suggestionID *string, actorName, message string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (profile_id, kind, page_id, comment_id, suggestion_id, actor_name, message)
		SELECT pf.profile_id, $2, $1, $4, $5, $6, $7
		FROM page_follows pf
		WHERE pf.page_id=$1 AND pf.profile_id <> $3
	`, pageID, kind, excludeProfileID, commentID, suggestionID, actorName, message)
	if err != nil {
		return fmt.Errorf("notify followers: %w", err)
	}
	return nil
}

func prefixedProfileColumns(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.display_name, ` + alias + `.password_hash, ` +
		alias + `.role, ` + alias + `.language, ` + alias + `.is_blocked, ` + alias + `.frozen_until, ` +
		alias + `.is_email_verified, ` + alias + `.verification_token, ` + alias + `.verification_expires_at, ` +
		alias + `.last_comment_at, ` + alias + `.created_at, ` + alias + `.updated_at`
}
