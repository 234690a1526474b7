package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"visra.app/studio/internal/auth"
	"visra.app/studio/internal/core"
	"visra.app/studio/internal/datauri"
	"visra.app/studio/internal/mask"
	"visra.app/studio/internal/store"
	"visra.app/studio/internal/ui"
	"visra.app/studio/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext returns the subject of the verified token.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type APIHandler struct {
	conv   *core.Conversation
	prefs  *core.Preferences
	issuer *auth.Issuer
	hub    *Hub
	log    *logger.Logger
}

func NewAPIHandler(conv *core.Conversation, prefs *core.Preferences, issuer *auth.Issuer, hub *Hub, log *logger.Logger) *APIHandler {
	return &APIHandler{conv: conv, prefs: prefs, issuer: issuer, hub: hub, log: log.Named("api")}
}

// JWTAuthMiddleware accepts a Bearer token, or a token query parameter for
// WebSocket clients that cannot set headers.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		userID, err := h.issuer.Verify(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	UserID string `json:"user_id"`
}

// LoginHandler is mocked: any non-empty user id receives a token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	token, err := h.issuer.Issue(req.UserID)
	if err != nil {
		h.log.Error("failed to issue token", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type StateResponse struct {
	core.State
	Phase core.Phase `json:"phase"`
}

func (h *APIHandler) stateResponse() StateResponse {
	s := h.conv.Snapshot()
	return StateResponse{State: s, Phase: s.Phase()}
}

func (h *APIHandler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

type SendMessageResponse struct {
	Message   store.Message `json:"message"`
	SessionID string        `json:"sessionId"`
}

// SendMessageHandler starts a generation and answers 202 right away. With
// ?wait=true it answers 200 with the final state once the reveal is over.
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req core.SendInput
	if !decodeBody(w, r, &req) {
		return
	}

	gen, err := h.conv.Send(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, SendMessageResponse{Message: gen.Message(), SessionID: gen.SessionID()})
		return
	}
	// The reveal can outlast the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.log.Warn("failed to clear write deadline", zap.Error(err))
	}
	select {
	case <-gen.Done():
		writeJSON(w, http.StatusOK, h.stateResponse())
	case <-r.Context().Done():
	}
}

type UpdateMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) UpdateMessageHandler(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var req UpdateMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.conv.UpdateMessage(messageID, req.Content); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": h.conv.Stop()})
}

func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	h.conv.NewChat()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.conv.Sessions())
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.conv.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		h.writeError(w, core.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) SelectSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.conv.SelectSession(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) RenameSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req RenameSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.conv.RenameSession(chi.URLParam(r, "sessionID"), req.Title); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.conv.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type StageImageRequest struct {
	Image string `json:"image"`
}

func (h *APIHandler) StageImageHandler(w http.ResponseWriter, r *http.Request) {
	var req StageImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.conv.StageImage(req.Image); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ClearStagedImageHandler(w http.ResponseWriter, r *http.Request) {
	h.conv.ClearStagedImage()
	w.WriteHeader(http.StatusNoContent)
}

// PendingEditRequest carries strokes in display coordinates of an image shown
// at DisplayWidth x DisplayHeight.
type PendingEditRequest struct {
	Image         string        `json:"image"`
	DisplayWidth  float64       `json:"displayWidth"`
	DisplayHeight float64       `json:"displayHeight"`
	Strokes       []mask.Stroke `json:"strokes"`
}

func (h *APIHandler) PendingEditHandler(w http.ResponseWriter, r *http.Request) {
	var req PendingEditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !datauri.IsImage(req.Image) {
		h.writeError(w, core.ErrUnsupportedUpload)
		return
	}

	maskURI, err := mask.Compose(req.Image, req.DisplayWidth, req.DisplayHeight, req.Strokes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	edit := store.PendingEdit{Image: req.Image, Mask: maskURI}
	if err := h.conv.SetPendingEdit(edit); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

func (h *APIHandler) ClearPendingEditHandler(w http.ResponseWriter, r *http.Request) {
	h.conv.ClearPendingEdit()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prefs.View())
}

type PreferencesRequest struct {
	Theme       *store.Theme `json:"theme,omitempty"`
	SkipLanding *bool        `json:"skipLanding,omitempty"`
}

func (h *APIHandler) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Theme != nil {
		if err := h.prefs.SetTheme(*req.Theme); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.SkipLanding != nil {
		h.prefs.SetSkipLanding(*req.SkipLanding)
	}
	writeJSON(w, http.StatusOK, h.prefs.View())
}

// LogoutHandler is mocked like login: it clears the live conversation and
// keeps the landing page skipped.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.conv.NewChat()
	h.prefs.SetSkipLanding(true)
	h.log.Info("user signed out", zap.String("user_id", UserIDFromContext(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

type EscapeResponse struct {
	Action  ui.EscapeAction `json:"action"`
	Stopped bool            `json:"stopped"`
}

// EscapeHandler resolves an Escape press against the overlays the view reports
// open. Whether a generation runs is taken from the server's own state.
func (h *APIHandler) EscapeHandler(w http.ResponseWriter, r *http.Request) {
	var overlays ui.Overlays
	if r.Body != http.NoBody {
		if !decodeBody(w, r, &overlays) {
			return
		}
	}
	s := h.conv.Snapshot()
	overlays.Generating = s.Generating || s.Typing

	resp := EscapeResponse{Action: ui.ResolveEscape(overlays)}
	if resp.Action == ui.EscapeStopGeneration {
		resp.Stopped = h.conv.Stop()
	}
	writeJSON(w, http.StatusOK, resp)
}

type EnterRequest struct {
	Modifier bool `json:"modifier"`
	core.SendInput
}

type EnterResponse struct {
	Action  ui.EnterAction       `json:"action"`
	Message *SendMessageResponse `json:"sent,omitempty"`
}

// EnterHandler mirrors the input box: a bare Enter sends the input, a modified
// Enter only asks the view to insert a newline.
func (h *APIHandler) EnterHandler(w http.ResponseWriter, r *http.Request) {
	var req EnterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp := EnterResponse{Action: ui.ResolveEnter(req.Modifier)}
	if resp.Action == ui.EnterNewline {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	gen, err := h.conv.Send(r.Context(), req.SendInput)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp.Message = &SendMessageResponse{Message: gen.Message(), SessionID: gen.SessionID()}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

// decodeBody reads a JSON request body and answers 413 or 400 when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported as 500 without their text.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyMessage),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrInvalidTheme),
		errors.Is(err, core.ErrInvalidPendingEdit),
		errors.Is(err, mask.ErrNoSource),
		errors.Is(err, mask.ErrUnreadableSource),
		errors.Is(err, datauri.ErrMalformed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrMessageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrGenerationInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, core.ErrUnsupportedUpload):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, mask.ErrSourceTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	default:
		h.log.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
