package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"whatsdesk-backend/internal/dto"
	ticketservice "whatsdesk-backend/internal/service/ticket"
)

type TicketEndpoints interface {
	Tickets(http.ResponseWriter, *http.Request) error
	Ticket(http.ResponseWriter, *http.Request) error
}

type TicketPaths struct {
	TicketsPath  string
	TicketPrefix string
}

type ticketEndpoints struct {
	service *ticketservice.Service
	paths   TicketPaths
}

func NewTicketEndpoints(service *ticketservice.Service, prefix string) TicketEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &ticketEndpoints{
		service: service,
		paths: TicketPaths{
			TicketsPath:  base + "/tickets",
			TicketPrefix: base + "/tickets/",
		},
	}
}

func (h *ticketEndpoints) Tickets(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListTickets,
	})
}

func (h *ticketEndpoints) Ticket(w http.ResponseWriter, r *http.Request) error {
	conversationID, rest, err := h.splitTicketPath(r.URL.Path)
	if err != nil {
		return err
	}

	if rest == "messages" {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleListMessages(w, r, conversationID)
			},
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handlePostReply(w, r, conversationID)
			},
		})
	}

	if rest == "" {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPatch: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleUpdateStatus(w, r, conversationID)
			},
		})
	}

	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found",
		ErrorLog:   fmt.Errorf("unknown ticket subpath %q", rest),
	}
}

func (h *ticketEndpoints) handleListTickets(w http.ResponseWriter, r *http.Request) error {
	limit := parseLimit(r, 50)

	conversations, err := h.service.ListTickets(r.Context(), limit)
	if err != nil {
		return h.serviceError(err)
	}

	tickets := make([]dto.TicketMetadata, 0, len(conversations))
	for _, conversation := range conversations {
		tickets = append(tickets, ticketservice.ToTicketMetadata(conversation))
	}

	return WriteJSON(w, http.StatusOK, dto.ListTicketsResponse{Tickets: tickets})
}

func (h *ticketEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request, conversationID string) error {
	limit := parseLimit(r, 100)

	loaded, err := h.service.ListMessages(r.Context(), conversationID, limit)
	if err != nil {
		return h.serviceError(err)
	}

	messages := make([]dto.MessageResponse, 0, len(loaded.Messages))
	for _, message := range loaded.Messages {
		messages = append(messages, ticketservice.ToMessageResponse(message))
	}

	return WriteJSON(w, http.StatusOK, dto.ListMessagesResponse{
		Ticket:   ticketservice.ToTicketMetadata(loaded.Conversation),
		Messages: messages,
	})
}

func (h *ticketEndpoints) handlePostReply(w http.ResponseWriter, r *http.Request, conversationID string) error {
	var req dto.PostReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed request body",
			ErrorLog:   fmt.Errorf("post reply decode: %w", err),
		}
	}

	result, err := h.service.PostReply(r.Context(), conversationID, req.Body, req.IsInternal, req.SenderName)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.PostReplyResponse{
		Ticket:  ticketservice.ToTicketMetadata(result.Conversation),
		Message: ticketservice.ToMessageResponse(result.Message),
	})
}

func (h *ticketEndpoints) handleUpdateStatus(w http.ResponseWriter, r *http.Request, conversationID string) error {
	var req dto.UpdateTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed request body",
			ErrorLog:   fmt.Errorf("update status decode: %w", err),
		}
	}

	conversation, err := h.service.SetStatus(r.Context(), conversationID, req.Status)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, ticketservice.ToTicketMetadata(conversation))
}

func (h *ticketEndpoints) splitTicketPath(path string) (string, string, error) {
	if !strings.HasPrefix(path, h.paths.TicketPrefix) {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("path %q outside ticket prefix", path),
		}
	}

	rest := strings.Trim(strings.TrimPrefix(path, h.paths.TicketPrefix), "/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Ticket not found",
			ErrorLog:   fmt.Errorf("ticket id missing in path %q", path),
		}
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

func (h *ticketEndpoints) serviceError(err error) error {
	var svcErr *ticketservice.Error
	if !errors.As(err, &svcErr) {
		return err
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case ticketservice.ErrorCodeValidation:
		status = http.StatusBadRequest
	case ticketservice.ErrorCodeNotFound:
		status = http.StatusNotFound
	case ticketservice.ErrorCodeConflict:
		status = http.StatusConflict
	case ticketservice.ErrorCodeGateway:
		status = http.StatusBadGateway
	}

	return &HTTPError{
		StatusCode: status,
		Message:    svcErr.Message,
		ErrorLog:   err,
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
