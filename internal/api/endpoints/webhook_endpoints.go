package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"whatsdesk-backend/internal/dto"
	ticketservice "whatsdesk-backend/internal/service/ticket"
)

type WebhookEndpoints interface {
	Events(http.ResponseWriter, *http.Request) error
}

type webhookEndpoints struct {
	tickets *ticketservice.Service
	token   string
}

func NewWebhookEndpoints(tickets *ticketservice.Service, token string) WebhookEndpoints {
	return &webhookEndpoints{
		tickets: tickets,
		token:   token,
	}
}

func (h *webhookEndpoints) Events(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleEvent,
	})
}

// handleEvent acknowledges everything it can. A 2xx on skips and duplicates
// stops the gateway from redelivering events that will never ingest
// differently; only persistence failures earn a 5xx and a retry.
func (h *webhookEndpoints) handleEvent(w http.ResponseWriter, r *http.Request) error {
	if h.token != "" && r.Header.Get("X-Webhook-Token") != h.token {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("webhook token mismatch"),
		}
	}

	var event dto.GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed event payload",
			ErrorLog:   fmt.Errorf("webhook decode: %w", err),
		}
	}

	result, err := h.tickets.Ingest(r.Context(), event)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to ingest event",
			ErrorLog:   fmt.Errorf("webhook ingest: %w", err),
		}
	}

	switch {
	case result.Skipped:
		return WriteJSON(w, http.StatusOK, map[string]string{
			"status": "skipped",
			"reason": result.SkipReason,
		})
	case result.Duplicate:
		return WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case result.Message.Orphaned:
		return WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "orphaned",
			"messageId": result.Message.MessageID,
		})
	default:
		return WriteJSON(w, http.StatusOK, map[string]string{
			"status":         "processed",
			"conversationId": result.Conversation.ConversationID,
		})
	}
}
