package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayushg31/whisp/internal/blob"
	"github.com/ayushg31/whisp/internal/domain"
	"github.com/ayushg31/whisp/internal/service"
	"github.com/ayushg31/whisp/internal/transport/http/middleware"
)

const maxUploadBytes = 32 << 20

type MessageHandler struct {
	chatService *service.ChatService
	uploader    blob.Uploader
}

func NewMessageHandler(chatService *service.ChatService, uploader blob.Uploader) *MessageHandler {
	return &MessageHandler{chatService: chatService, uploader: uploader}
}

// Sidebar returns every other user plus per-sender unseen counts.
func (h *MessageHandler) Sidebar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp, err := h.chatService.Sidebar(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR sidebar: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Conversation fetches the thread with a peer and marks it seen.
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	messages, err := h.chatService.Conversation(r.Context(), userID, peerID)
	if err != nil {
		log.Printf("ERROR conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type sendMessageInput struct {
	Text string `json:"text,omitempty"`
	// Image is a base64 (optionally data-URL) encoded upload.
	Image string `json:"image,omitempty"`
}

// Send handles text and inline-image sends to the user in the path.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	receiverID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid receiver ID")
		return
	}

	var input sendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	payload, ok := h.buildPayload(w, r, input)
	if !ok {
		return
	}

	msg, err := h.chatService.Send(r.Context(), userID, receiverID, payload)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// SendDoc handles multipart document sends.
func (h *MessageHandler) SendDoc(w http.ResponseWriter, r *http.Request) {
	h.sendUploaded(w, r, "doc", domain.DocPayload)
}

// SendVideo handles multipart video sends.
func (h *MessageHandler) SendVideo(w http.ResponseWriter, r *http.Request) {
	h.sendUploaded(w, r, "video", domain.VideoPayload)
}

func (h *MessageHandler) sendUploaded(w http.ResponseWriter, r *http.Request, field string, makePayload func(url, name string) (domain.Payload, error)) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		return
	}

	receiverID, err := uuid.Parse(r.FormValue("receiver_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid receiver ID")
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "No file uploaded")
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, blob.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_TYPE", "Unsupported file type")
		} else {
			log.Printf("ERROR upload: %v", err)
			writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Upload failed")
		}
		return
	}

	payload, err := makePayload(url, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid message payload")
		return
	}

	msg, err := h.chatService.Send(r.Context(), userID, receiverID, payload)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// MarkSeen flips a single message seen (live-arrival ack).
func (h *MessageHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.chatService.MarkMessageSeen(r.Context(), userID, messageID); err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		} else {
			log.Printf("ERROR mark seen: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkConversationSeen flips every unseen message from the path user to
// the caller (conversation-open ack).
func (h *MessageHandler) MarkConversationSeen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	if err := h.chatService.MarkConversationSeen(r.Context(), userID, peerID); err != nil {
		log.Printf("ERROR mark conversation seen: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Delete tombstones a message for everyone.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	msg, err := h.chatService.Delete(r.Context(), userID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotMessageOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only delete your own messages")
		default:
			log.Printf("ERROR delete message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// buildPayload turns a send body into a validated payload, uploading an
// inline image if one was provided.
func (h *MessageHandler) buildPayload(w http.ResponseWriter, r *http.Request, input sendMessageInput) (domain.Payload, bool) {
	if input.Text != "" && input.Image != "" {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Send either text or an image, not both")
		return domain.Payload{}, false
	}

	if input.Image != "" {
		raw := input.Image
		if idx := strings.Index(raw, ";base64,"); idx != -1 {
			raw = raw[idx+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Image must be base64 encoded")
			return domain.Payload{}, false
		}

		url, err := h.uploader.Upload(r.Context(), "image", bytes.NewReader(data))
		if err != nil {
			if errors.Is(err, blob.ErrUnsupportedType) {
				writeError(w, http.StatusBadRequest, "UNSUPPORTED_TYPE", "Unsupported file type")
			} else {
				log.Printf("ERROR upload: %v", err)
				writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Upload failed")
			}
			return domain.Payload{}, false
		}

		payload, err := domain.ImagePayload(url)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid message payload")
			return domain.Payload{}, false
		}
		return payload, true
	}

	payload, err := domain.TextPayload(input.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "EMPTY_PAYLOAD", "Message content is required")
		return domain.Payload{}, false
	}
	return payload, true
}

func (h *MessageHandler) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCannotMessageSelf):
		writeError(w, http.StatusBadRequest, "CANNOT_MESSAGE_SELF", "Cannot send a message to yourself")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Receiver not found")
	case errors.Is(err, domain.ErrEmptyPayload), errors.Is(err, domain.ErrConflictingPayload):
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid message payload")
	default:
		log.Printf("ERROR send message: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
