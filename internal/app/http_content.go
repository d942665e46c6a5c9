package app

import (
	"net/http"
	"strconv"

	"folio/api/internal/rbac"
)

// Content tree routes: chapters, pages, paragraphs, translations, versions,
// export. Reads need ActionRead, writes ActionWrite.

func (s *HTTPServer) handleChaptersCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListChapters(r.Context(), session, r.URL.Query().Get("lang"))
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chapters": items})
	case http.MethodPost:
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Title    string `json:"title"`
			Summary  string `json:"summary"`
			IsDraft  bool   `json:"isDraft"`
			IsHidden bool   `json:"isHidden"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateChapter(r.Context(), session, body.Title, body.Summary, body.IsDraft, body.IsHidden)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) routeChapter(w http.ResponseWriter, r *http.Request, session Session, chapterID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetChapter(r.Context(), session, chapterID, r.URL.Query().Get("lang"))
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Title    string `json:"title"`
				Summary  string `json:"summary"`
				IsDraft  bool   `json:"isDraft"`
				IsHidden bool   `json:"isHidden"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateChapter(r.Context(), session, chapterID, body.Title, body.Summary, body.IsDraft, body.IsHidden)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			if err := s.service.DeleteChapter(r.Context(), chapterID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "reorder":
		// reorders the pages inside this chapter
		if r.Method != http.MethodPost || len(rest) != 1 {
			break
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			OrderedIDs []string `json:"orderedIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReorderChapterPages(r.Context(), chapterID, body.OrderedIDs); err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case "pages":
		if len(rest) != 1 {
			break
		}
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChapterPages(r.Context(), session, chapterID, r.URL.Query().Get("lang"))
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"pages": items})
		case http.MethodPost:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Title    string `json:"title"`
				Body     string `json:"body"`
				IsDraft  bool   `json:"isDraft"`
				IsHidden bool   `json:"isHidden"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreatePage(r.Context(), session, chapterID, body.Title, body.Body, body.IsDraft, body.IsHidden)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "translations":
		if len(rest) != 2 {
			break
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		lang := rest[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Title   string `json:"title"`
				Summary string `json:"summary"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpsertChapterTranslation(r.Context(), chapterID, lang, body.Title, body.Summary); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case http.MethodDelete:
			if err := s.service.DeleteChapterTranslation(r.Context(), chapterID, lang); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "export":
		if r.Method != http.MethodGet || len(rest) != 1 {
			break
		}
		q := r.URL.Query()
		format := q.Get("format")
		if format == "" {
			format = "pdf"
		}
		includeComments := q.Get("comments") == "true"
		result, err := s.service.ExportChapter(r.Context(), session, chapterID, q.Get("page"), format, q.Get("lang"), includeComments)
		if err != nil {
			writeMapped(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routePage(w http.ResponseWriter, r *http.Request, session Session, pageID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetPageView(r.Context(), session, pageID, r.URL.Query().Get("lang"))
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Title    string `json:"title"`
				Body     string `json:"body"`
				IsDraft  bool   `json:"isDraft"`
				IsHidden bool   `json:"isHidden"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdatePage(r.Context(), session, pageID, body.Title, body.Body, body.IsDraft, body.IsHidden)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			if err := s.service.DeletePage(r.Context(), pageID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "reorder":
		// reorders the paragraphs inside this page
		if r.Method != http.MethodPost || len(rest) != 1 {
			break
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			OrderedIDs []string `json:"orderedIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReorderPageParagraphs(r.Context(), pageID, body.OrderedIDs); err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case "paragraphs":
		if len(rest) != 1 {
			break
		}
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListPageParagraphs(r.Context(), session, pageID, r.URL.Query().Get("lang"))
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"paragraphs": items})
		case http.MethodPost:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body ParagraphInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateParagraph(r.Context(), session, pageID, body)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "translations":
		if len(rest) != 2 {
			break
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		lang := rest[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpsertPageTranslation(r.Context(), pageID, lang, body.Title, body.Body); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case http.MethodDelete:
			if err := s.service.DeletePageTranslation(r.Context(), pageID, lang); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "versions":
		s.routeVersions(w, r, session, rest, func() (any, error) {
			items, err := s.service.PageVersions(r.Context(), pageID)
			return items, err
		}, func(version int) (any, error) {
			return s.service.RestorePageVersion(r.Context(), session, pageID, version)
		})
		return

	case "comments":
		if len(rest) != 1 {
			break
		}
		s.handleComments(w, r, session, TargetPage, pageID)
		return

	case "follow":
		if len(rest) != 1 {
			break
		}
		switch r.Method {
		case http.MethodPost:
			if err := s.service.FollowPage(r.Context(), session, pageID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case http.MethodDelete:
			if err := s.service.UnfollowPage(r.Context(), session, pageID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeParagraph(w http.ResponseWriter, r *http.Request, session Session, paragraphID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetParagraphView(r.Context(), session, paragraphID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body ParagraphInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateParagraph(r.Context(), session, paragraphID, body)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			if err := s.service.DeleteParagraph(r.Context(), paragraphID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "translations":
		if len(rest) != 2 {
			break
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		lang := rest[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Content string `json:"content"`
				Caption string `json:"caption"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpsertParagraphTranslation(r.Context(), paragraphID, lang, body.Content, body.Caption); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case http.MethodDelete:
			if err := s.service.DeleteParagraphTranslation(r.Context(), paragraphID, lang); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case "versions":
		s.routeVersions(w, r, session, rest, func() (any, error) {
			items, err := s.service.ParagraphVersions(r.Context(), paragraphID)
			return items, err
		}, func(version int) (any, error) {
			return s.service.RestoreParagraphVersion(r.Context(), session, paragraphID, version)
		})
		return

	case "suggestions":
		if len(rest) != 1 {
			break
		}
		s.handleParagraphSuggestions(w, r, session, paragraphID)
		return

	case "comments":
		if len(rest) != 1 {
			break
		}
		s.handleComments(w, r, session, TargetParagraph, paragraphID)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// routeVersions handles GET .../versions and POST .../versions/{n}/restore.
func (s *HTTPServer) routeVersions(w http.ResponseWriter, r *http.Request, session Session, rest []string, list func() (any, error), restore func(version int) (any, error)) {
	if len(rest) == 1 && r.Method == http.MethodGet {
		items, err := list()
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": items})
		return
	}

	if len(rest) == 3 && rest[2] == "restore" && r.Method == http.MethodPost {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		version, err := strconv.Atoi(rest[1])
		if err != nil || version < 1 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "version must be a positive integer", nil)
			return
		}
		payload, err := restore(version)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
