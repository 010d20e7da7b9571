package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/middleware"
	"motorlist-chat/internal/observability"
	"motorlist-chat/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxRequestBodyBytes = 64 << 10

// ChatService is the part of service.ChatService the HTTP edge needs
type ChatService interface {
	ListMessages(ctx context.Context, req service.ListRequest) (*service.Page, error)
	SendMessage(ctx context.Context, req service.SendRequest) (*service.Page, error)
	ListRooms(ctx context.Context, productID string, actor domain.Actor) ([]*domain.RoomSummary, error)
}

// GuestIssuer hands out signed guest identifiers
type GuestIssuer interface {
	Issue() (string, error)
}

// ChatHandler serves the product and purchase chat endpoints
type ChatHandler struct {
	chat      ChatService
	guests    GuestIssuer
	maxLength int
}

// NewChatHandler creates a chat handler. maxLength is only used to word the
// too-long error; the service enforces the limit.
func NewChatHandler(chat ChatService, guests GuestIssuer, maxLength int) *ChatHandler {
	if maxLength <= 0 {
		maxLength = domain.PurchaseMessageMaxLength
	}
	return &ChatHandler{chat: chat, guests: guests, maxLength: maxLength}
}

// SendMessageRequest is the body of both send endpoints. RoomKey and
// ViewerName only apply to product chat.
type SendMessageRequest struct {
	Message    string `json:"message"`
	RoomKey    string `json:"room_key,omitempty"`
	ViewerName string `json:"viewer_name,omitempty"`
	MessageKey string `json:"message_key,omitempty"`
}

// MessageResponse is a message as the widget renders it
type MessageResponse struct {
	ID            string      `json:"id"`
	Message       string      `json:"message"`
	CreatedAt     string      `json:"created_at"`
	SenderRole    domain.Role `json:"sender_role"`
	UserID        int64       `json:"user_id"`
	DisplayName   string      `json:"display_name"`
	Avatar        *string     `json:"avatar"`
	IsCurrentUser bool        `json:"is_current_user"`
}

// MetaResponse carries the viewer identity and the next polling cursor
type MetaResponse struct {
	CurrentUserID   *int64      `json:"current_user_id"`
	ViewerRole      domain.Role `json:"viewer_role"`
	ServerTimestamp string      `json:"server_timestamp"`
	RoomKey         string      `json:"room_key,omitempty"`
}

// PageResponse is the body of a list response
type PageResponse struct {
	Data []MessageResponse `json:"data"`
	Meta MetaResponse      `json:"meta"`
}

// SendResponse is the body of a send response: the stored message alone
type SendResponse struct {
	Data MessageResponse `json:"data"`
	Meta MetaResponse    `json:"meta"`
}

// RoomResponse summarizes one product conversation
type RoomResponse struct {
	RoomKey       string `json:"room_key"`
	ViewerID      string `json:"viewer_id"`
	MessageCount  int64  `json:"message_count"`
	LastMessageAt string `json:"last_message_at"`
}

// ListProductMessages handles GET /products/{productID}/chat
func (h *ChatHandler) ListProductMessages(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.ChatKindProduct, chi.URLParam(r, "productID"), r.URL.Query().Get("room_key"))
}

// ListPurchaseMessages handles GET /purchases/{purchaseID}/chat
func (h *ChatHandler) ListPurchaseMessages(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.ChatKindPurchase, chi.URLParam(r, "purchaseID"), "")
}

// SendProductMessage handles POST /products/{productID}/chat
func (h *ChatHandler) SendProductMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, domain.ChatKindProduct, chi.URLParam(r, "productID"))
}

// SendPurchaseMessage handles POST /purchases/{purchaseID}/chat
func (h *ChatHandler) SendPurchaseMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, domain.ChatKindPurchase, chi.URLParam(r, "purchaseID"))
}

// ListProductRooms handles GET /products/{productID}/chat/rooms
func (h *ChatHandler) ListProductRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.chat.ListRooms(r.Context(), chi.URLParam(r, "productID"), middleware.GetActor(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, false)
		return
	}

	resp := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, RoomResponse{
			RoomKey:       room.RoomKey,
			ViewerID:      room.ViewerID,
			MessageCount:  room.MessageCount,
			LastMessageAt: domain.FormatWireTime(room.LastMessageAt),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": resp})
}

// IssueGuestID handles POST /guest-ids
func (h *ChatHandler) IssueGuestID(w http.ResponseWriter, r *http.Request) {
	id, err := h.guests.Issue()
	if err != nil {
		observability.FromContext(r.Context()).Error("failed to issue guest id", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"guest_id": id})
}

func (h *ChatHandler) list(w http.ResponseWriter, r *http.Request, kind domain.ChatKind, entityID, roomKey string) {
	req := service.ListRequest{
		Kind:     kind,
		EntityID: entityID,
		RoomKey:  roomKey,
		Actor:    middleware.GetActor(r.Context()),
	}

	if raw := r.URL.Query().Get("since_timestamp"); raw != "" {
		since, err := domain.ParseWireTime(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since", "El parámetro since_timestamp no es válido.")
			return
		}
		req.Since = &since
	}

	page, err := h.chat.ListMessages(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, false)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request, kind domain.ChatKind, entityID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var body SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "La solicitud no es válida.")
		return
	}

	req := service.SendRequest{
		Kind:       kind,
		EntityID:   entityID,
		Body:       body.Message,
		MessageKey: body.MessageKey,
		Actor:      middleware.GetActor(r.Context()),
	}
	if kind == domain.ChatKindProduct {
		req.RoomKey = body.RoomKey
		req.ViewerName = body.ViewerName
	}

	page, err := h.chat.SendMessage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, true)
		return
	}

	observability.FromContext(r.Context()).Info("chat message stored",
		slog.String("kind", string(kind)),
		slog.String("room_key", page.Meta.RoomKey),
		slog.String("message_id", page.Messages[0].ID))

	writeJSON(w, http.StatusCreated, SendResponse{
		Data: toMessageResponse(page.Messages[0]),
		Meta: toMetaResponse(page.Meta),
	})
}

func toPageResponse(page *service.Page) PageResponse {
	resp := PageResponse{
		Data: make([]MessageResponse, 0, len(page.Messages)),
		Meta: toMetaResponse(page.Meta),
	}
	for _, m := range page.Messages {
		resp.Data = append(resp.Data, toMessageResponse(m))
	}
	return resp
}

func toMetaResponse(meta service.Meta) MetaResponse {
	resp := MetaResponse{
		ViewerRole:      meta.ViewerRole,
		ServerTimestamp: domain.FormatWireTime(meta.ServerTimestamp),
		RoomKey:         meta.RoomKey,
	}
	if meta.CurrentUserID > 0 {
		id := meta.CurrentUserID
		resp.CurrentUserID = &id
	}
	return resp
}

func toMessageResponse(m *domain.Message) MessageResponse {
	msg := MessageResponse{
		ID:            m.ID,
		Message:       m.Body,
		CreatedAt:     domain.FormatWireTime(m.CreatedAt),
		SenderRole:    m.SenderRole,
		UserID:        m.UserID,
		DisplayName:   m.DisplayName,
		IsCurrentUser: m.IsCurrentUser,
	}
	if m.AvatarURL != "" {
		avatar := m.AvatarURL
		msg.Avatar = &avatar
	}
	return msg
}

const (
	msgInternal         = "Error interno del servidor."
	msgLoadFailed       = "No se pudieron cargar los mensajes. Inténtalo de nuevo."
	msgSendFailed       = "No se pudo enviar el mensaje. Inténtalo de nuevo."
	msgLoadForbidden    = "No tienes permiso para ver esta conversación."
	msgSendForbidden    = "No tienes permiso para enviar mensajes en esta conversación."
	msgNotFound         = "La conversación no existe o ya no está disponible."
	msgUnavailable      = "El chat no está disponible en este momento. Inténtalo más tarde."
	msgNotAuthenticated = "Inicia sesión para continuar con esta conversación."
)

// writeServiceError maps service and domain errors to the API envelope
func (h *ChatHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, sending bool) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", "El mensaje no puede estar vacío.")
	case errors.Is(err, domain.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "message_too_long",
			fmt.Sprintf("El mensaje no puede superar los %d caracteres.", h.maxLength))
	case errors.Is(err, domain.ErrInvalidMessageKey):
		writeError(w, http.StatusBadRequest, "invalid_message_key", "El identificador del mensaje no es válido.")
	case errors.Is(err, domain.ErrMessageKeyConflict):
		writeError(w, http.StatusConflict, "message_key_conflict", "El identificador del mensaje ya está en uso.")
	case errors.Is(err, domain.ErrInvalidRoomKey), errors.Is(err, domain.ErrRoomKeyMismatch):
		writeError(w, http.StatusBadRequest, "invalid_room_key", "La conversación solicitada no es válida.")
	case errors.Is(err, domain.ErrRoomKeyRequired):
		writeError(w, http.StatusBadRequest, "room_key_required", "Falta indicar la conversación.")
	case errors.Is(err, service.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not_authenticated", msgNotAuthenticated)
	case errors.Is(err, service.ErrForbidden):
		msg := msgLoadForbidden
		if sending {
			msg = msgSendForbidden
		}
		writeError(w, http.StatusForbidden, "forbidden", msg)
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrPurchaseNotFound):
		writeError(w, http.StatusNotFound, "not_found", msgNotFound)
	case errors.Is(err, domain.ErrStorageUnavailable):
		observability.FromContext(r.Context()).Error("message store unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", msgUnavailable)
	default:
		observability.FromContext(r.Context()).Error("chat request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		msg := msgLoadFailed
		if sending {
			msg = msgSendFailed
		}
		writeError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": message,
	})
}

// Routes registers the chat endpoints on r, which is mounted under /api/v1
func (h *ChatHandler) Routes(r chi.Router) {
	r.Get("/products/{productID}/chat", h.ListProductMessages)
	r.Post("/products/{productID}/chat", h.SendProductMessage)
	r.Get("/products/{productID}/chat/rooms", h.ListProductRooms)
	r.Get("/purchases/{purchaseID}/chat", h.ListPurchaseMessages)
	r.Post("/purchases/{purchaseID}/chat", h.SendPurchaseMessage)
	r.Post("/guest-ids", h.IssueGuestID)
}
