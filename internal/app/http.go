package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"estate/api/internal/auth"
	"estate/api/internal/authpw"
	"estate/api/internal/listing"
	"estate/api/internal/media"
	"estate/api/internal/rbac"
	"estate/api/internal/search"
	"estate/api/internal/store"
)

const maxUploadBytes = media.MaxFiles*media.MaxFileSize + 1<<20

type HTTPServer struct {
	service     *Service
	corsOrigins []string
	uploadBase  string
	uploads     http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	server := &HTTPServer{service: service, corsOrigins: parseOrigins(corsOrigin)}
	if dir := service.cfg.UploadDir; dir != "" {
		server.uploadBase = "/" + strings.Trim(service.cfg.UploadBasePath, "/") + "/"
		server.uploads = http.StripPrefix(server.uploadBase, http.FileServer(http.Dir(dir)))
	}
	return server
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if s.uploads != nil && strings.HasPrefix(r.URL.Path, s.uploadBase) &&
		(r.Method == http.MethodGet || r.Method == http.MethodHead) {
		// let the file server pick the content type
		w.Header().Del("Content-Type")
		w.Header().Del("Cache-Control")
		s.uploads.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "auth":
		s.handleAuth(w, r, parts[2:])
	case "properties":
		s.handleProperties(w, r, parts[2:])
	case "search":
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		s.handleSearch(w, r)
	case "chats":
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if err := requireRole(session, rbac.ActionMessage); err != nil {
			writeMappedError(w, err)
			return
		}
		s.handleChats(w, r, session, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready, degraded := true, false
	checks := map[string]any{}
	for _, check := range s.service.Readiness(ctx) {
		if check.Err == nil {
			checks[check.Name] = map[string]any{"status": "ok"}
			continue
		}
		checks[check.Name] = map[string]any{"status": "error", "error": check.Err.Error()}
		if check.Optional {
			degraded = true
		} else {
			ready = false
		}
	}

	status, statusCode := "ready", http.StatusOK
	switch {
	case !ready:
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}
	writeJSON(w, statusCode, map[string]any{"ok": ready, "status": status, "checks": checks})
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case r.Method == http.MethodPost && parts[0] == "register":
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
			Phone    string `json:"phone"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, user, err := s.service.Register(r.Context(), authpw.SignUpRequest{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     body.Role,
			Phone:    body.Phone,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionPayload(session, user))

	case r.Method == http.MethodPost && parts[0] == "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, user, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session, user))

	case r.Method == http.MethodPost && parts[0] == "refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"expiresAt":    session.ExpiresAt.Unix(),
		})

	case r.Method == http.MethodPost && parts[0] == "logout":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.Logout(r.Context(), body.RefreshToken); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})

	case r.Method == http.MethodGet && parts[0] == "me":
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		user, err := s.service.Me(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func sessionPayload(session Session, user store.User) map[string]any {
	return map[string]any{
		"success":      true,
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.ExpiresAt.Unix(),
		"user":         newUserView(user),
	}
}

func (s *HTTPServer) handleProperties(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		filter, err := listing.ParseFilter(r.URL.Query())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items, err := s.service.ListProperties(r.Context(), filter)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(items), "properties": items})

	case len(parts) == 0 && r.Method == http.MethodPost:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		patch, files, err := readPropertyWrite(w, r)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		item, err := s.service.CreateProperty(r.Context(), session, patch, files)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "property": item})

	case len(parts) == 2 && parts[0] == "my" && parts[1] == "listings" && r.Method == http.MethodGet:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		items, err := s.service.MyProperties(r.Context(), session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(items), "properties": items})

	case len(parts) == 1 && r.Method == http.MethodGet:
		item, err := s.service.GetProperty(r.Context(), parts[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "property": item})

	case len(parts) == 1 && r.Method == http.MethodPut:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		patch, files, err := readPropertyWrite(w, r)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		item, err := s.service.UpdateProperty(r.Context(), session, parts[0], patch, files)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "property": item})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if err := s.service.DeleteProperty(r.Context(), session, parts[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Property deleted"})

	case len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodPost:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if err := requireRole(session, rbac.ActionSave); err != nil {
			writeMappedError(w, err)
			return
		}
		saved, err := s.service.ToggleSave(r.Context(), session.UserID, parts[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "savedProperties": saved})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// readPropertyWrite accepts multipart, urlencoded and JSON listing writes.
// Only multipart requests can carry images.
func readPropertyWrite(w http.ResponseWriter, r *http.Request) (store.PropertyPatch, []*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return store.PropertyPatch{}, nil, media.ErrFileTooLarge
			}
			return store.PropertyPatch{}, nil, validation("invalid multipart body", nil)
		}
		patch, err := parsePropertyForm(r.MultipartForm.Value)
		if err != nil {
			return store.PropertyPatch{}, nil, err
		}
		return patch, r.MultipartForm.File[media.FieldName], nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return store.PropertyPatch{}, nil, validation("invalid form body", nil)
		}
		patch, err := parsePropertyForm(r.PostForm)
		return patch, nil, err
	default:
		var body propertyJSON
		if err := decodeBody(r, &body); err != nil {
			return store.PropertyPatch{}, nil, validation(err.Error(), nil)
		}
		return body.patch(), nil, nil
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, _ := strconv.Atoi(values.Get("limit"))
	offset, _ := strconv.Atoi(values.Get("offset"))
	response, err := s.service.Search(r.Context(), search.Query{
		Text:     strings.TrimSpace(values.Get("q")),
		DealType: strings.TrimSpace(values.Get("dealType")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(response.Results),
		"total":   response.Total,
		"query":   response.Query,
		"source":  response.Source,
		"results": response.Results,
	})
}

func (s *HTTPServer) handleChats(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		chats, err := s.service.ListChats(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(chats), "chats": chats})

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			PropertyID string `json:"propertyId"`
			OwnerID    string `json:"ownerId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		chat, isNew, err := s.service.CreateOrGetChat(r.Context(), session.UserID, body.PropertyID, body.OwnerID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{"success": true, "chat": chat, "isNew": isNew})

	case len(parts) == 1 && r.Method == http.MethodGet:
		chat, err := s.service.GetChat(r.Context(), session.UserID, parts[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "chat": chat})

	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		chat, err := s.service.SendMessage(r.Context(), session.UserID, parts[0], body.Text)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "chat": chat})

	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPut:
		if err := s.service.MarkChatRead(r.Context(), session.UserID, parts[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Messages marked as read"})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, no token", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, token failed", nil)
			return Session{}, false
		}
		log.Printf("session lookup failed request_id=%s: %v", requestIDFrom(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, token failed", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", err.Error(), nil
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrWeakPassword), errors.Is(err, authpw.ErrInvalidRole):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, listing.ErrInvalidFilter):
		return http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil
	case errors.Is(err, media.ErrTooManyFiles), errors.Is(err, media.ErrFileTooLarge), errors.Is(err, media.ErrNotImage):
		return http.StatusBadRequest, "INVALID_UPLOAD", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", err.Error(), nil
}
