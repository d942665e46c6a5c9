package app

import (
	"net/http"

	"folio/api/internal/rbac"
)

// Discussion routes: comments, suggestions, votes.

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, session Session, target CommentTarget, targetID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListComments(r.Context(), target, targetID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": items})
	case http.MethodPost:
		var body struct {
			Body     string  `json:"body"`
			ParentID *string `json:"parentId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateComment(r.Context(), session, target, targetID, body.ParentID, body.Body)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleParagraphSuggestions(w http.ResponseWriter, r *http.Request, session Session, paragraphID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListParagraphSuggestions(r.Context(), session, paragraphID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": items})
	case http.MethodPost:
		var body struct {
			ProposedContent string `json:"proposedContent"`
			Rationale       string `json:"rationale"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateSuggestion(r.Context(), session, paragraphID, body.ProposedContent, body.Rationale, clientIP(r), r.UserAgent())
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) routeComment(w http.ResponseWriter, r *http.Request, session Session, commentID string, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodDelete {
		if err := s.service.DeleteComment(r.Context(), session, commentID); err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(rest) == 1 && rest[0] == "vote" && r.Method == http.MethodPost {
		var body struct {
			Direction string `json:"direction"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.VoteComment(r.Context(), session, commentID, body.Direction); err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeSuggestion(w http.ResponseWriter, r *http.Request, session Session, suggestionID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetSuggestion(r.Context(), suggestionID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				ProposedContent string `json:"proposedContent"`
				Rationale       string `json:"rationale"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateSuggestion(r.Context(), session, suggestionID, body.ProposedContent, body.Rationale)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteSuggestion(r.Context(), session, suggestionID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 1 {
		switch rest[0] {
		case "vote":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Direction string `json:"direction"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.VoteSuggestion(r.Context(), session, suggestionID, body.Direction); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return

		case "approve":
			if r.Method != http.MethodPost {
				break
			}
			if !s.service.Can(session.Role, rbac.ActionModerate) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				EnforceBase bool `json:"enforceBase"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.ApproveSuggestion(r.Context(), session, suggestionID, body.EnforceBase)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return

		case "reject":
			if r.Method != http.MethodPost {
				break
			}
			if !s.service.Can(session.Role, rbac.ActionModerate) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			payload, err := s.service.RejectSuggestion(r.Context(), session, suggestionID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return

		case "comments":
			s.handleComments(w, r, session, TargetSuggestion, suggestionID)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
