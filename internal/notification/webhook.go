package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/plex"
	"github.com/goonbox/plexcord/internal/telemetry"
)

// maxBodySize limits the webhook request body to 10 MB. Plex attaches the
// poster as a second multipart part.
const maxBodySize = 10 << 20

// Notifier is the part of Service the HTTP handlers depend on.
type Notifier interface {
	NotifyNewItem(ctx context.Context, w *plex.Webhook) error
	NotifyTest(ctx context.Context, useTestChannel bool) error
}

var _ Notifier = (*Service)(nil)

// WebhookHandler serves the Plex webhook and the manual test route.
type WebhookHandler struct {
	notifier  Notifier
	telemetry *telemetry.Provider
	logger    *slog.Logger
}

// NewWebhookHandler creates the HTTP handlers for Plex webhooks.
func NewWebhookHandler(notifier Notifier, tel *telemetry.Provider, logger *slog.Logger) *WebhookHandler {
	if notifier == nil {
		panic("notification.NewWebhookHandler: notifier must not be nil")
	}
	if tel == nil {
		panic("notification.NewWebhookHandler: telemetry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		notifier:  notifier,
		telemetry: tel,
		logger:    logger,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Root handles GET /.
func (h *WebhookHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello World"})
}

// Test handles GET /test. ?channel=test targets the test channel.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	useTest := r.URL.Query().Get("channel") == "test"
	if err := h.notifier.NotifyTest(r.Context(), useTest); err != nil {
		h.writeDeliveryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Message Sent"})
}

// Notify handles POST /notify-new-item.
func (h *WebhookHandler) Notify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := formPayload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "payload too large"})
			return
		}
		h.logger.Warn("malformed webhook body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "malformed form body"})
		return
	}
	if payload == "" {
		h.logger.Warn("webhook without payload field")
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "missing payload"})
		return
	}

	hook, err := plex.ParseWebhook([]byte(payload))
	if err != nil {
		h.logger.Warn("webhook payload is not valid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON in payload"})
		return
	}

	event := string(hook.Event)
	h.telemetry.RecordReceived(r.Context(), event)
	h.logger.Info("received plex webhook",
		slog.String("event", event),
		slog.String("type", string(hook.Metadata.Type)),
		slog.String("title", string(hook.Metadata.Title)),
		slog.String("server", string(hook.Server.Title)),
	)

	if event != plex.EventLibraryNew {
		h.telemetry.RecordIgnored(r.Context(), event)
		writeJSON(w, http.StatusOK, messageResponse{
			Message: "Ignoring webhook as it is not a new library item: " + event,
		})
		return
	}

	if err := h.notifier.NotifyNewItem(r.Context(), hook); err != nil {
		h.writeDeliveryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Notification sent"})
}

// formPayload reads the payload field from a multipart or urlencoded body.
func formPayload(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodySize); err != nil {
			return "", err
		}
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	} else if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("payload"), nil
}

// writeDeliveryError maps a pipeline failure onto a 5xx response.
func (h *WebhookHandler) writeDeliveryError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	detail := "delivery failed"
	switch {
	case errors.Is(err, ErrQueueFull):
		status = http.StatusServiceUnavailable
		detail = "delivery queue full"
	case errors.Is(err, core.ErrNotReady):
		status = http.StatusServiceUnavailable
		detail = "chat session not ready"
	case errors.Is(err, ErrDeliveryTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		detail = "delivery timed out"
	}
	h.logger.Error("notification failed",
		slog.String("error", err.Error()),
		slog.String("request_id", RequestID(r.Context())),
	)
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
