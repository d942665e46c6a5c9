package app

import (
	"net/http"

	"folio/api/internal/rbac"
)

// Admin routes. Everything under /api/admin requires the admin role.

func (s *HTTPServer) routeAdmin(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.service.Can(session.Role, rbac.ActionAdmin) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	parts := splitPath(r.URL.Path)
	rest := parts[2:]
	if len(rest) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch rest[0] {
	case "users":
		s.routeAdminUsers(w, r, session, rest[1:])
		return

	case "settings":
		if len(rest) != 1 {
			break
		}
		switch r.Method {
		case http.MethodGet:
			values, err := s.service.GetSettings(r.Context())
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"settings": values})
		case http.MethodPut:
			var body map[string]string
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			values, err := s.service.UpdateSettings(r.Context(), body)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"settings": values})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "backup":
		if len(rest) == 1 && r.Method == http.MethodPost {
			var body struct {
				Message string `json:"message"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			info, err := s.service.BackupNow(r.Context(), session, body.Message)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"commit":    info.Hash,
				"message":   info.Message,
				"author":    info.Author,
				"createdAt": info.CreatedAt.Unix(),
			})
			return
		}
		if len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet {
			commits, err := s.service.BackupHistory(queryInt(r.URL.Query().Get("limit"), 20))
			if err != nil {
				writeMapped(w, err)
				return
			}
			items := make([]map[string]any, 0, len(commits))
			for _, c := range commits {
				items = append(items, map[string]any{
					"commit":    c.Hash,
					"message":   c.Message,
					"author":    c.Author,
					"createdAt": c.CreatedAt.Unix(),
				})
			}
			writeJSON(w, http.StatusOK, map[string]any{"backups": items})
			return
		}

	case "email-log":
		if len(rest) == 1 && r.Method == http.MethodGet {
			entries, err := s.service.EmailLog(r.Context(), queryInt(r.URL.Query().Get("limit"), 100))
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
			return
		}

	case "reindex":
		if len(rest) == 1 && r.Method == http.MethodPost {
			s.service.ReindexSearch(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeAdminUsers(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		items, err := s.service.ListUsers(r.Context())
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": items})
		return
	}

	if len(rest) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	profileID := rest[0]

	switch rest[1] {
	case "block":
		if err := s.service.SetUserBlocked(r.Context(), profileID, true); err != nil {
			writeMapped(w, err)
			return
		}
	case "unblock":
		if err := s.service.SetUserBlocked(r.Context(), profileID, false); err != nil {
			writeMapped(w, err)
			return
		}
	case "freeze":
		var body struct {
			Hours int `json:"hours"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.FreezeUser(r.Context(), profileID, body.Hours); err != nil {
			writeMapped(w, err)
			return
		}
	case "role":
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetUserRole(r.Context(), session, profileID, body.Role); err != nil {
			writeMapped(w, err)
			return
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
