package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/service/ticket"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub            *Hub
	tickets        *ticket.Service
	redisClient    *redis.Client
	channelBinding string

	subMu      sync.Mutex
	subscribed map[string]bool
}

func NewHandler(hub *Hub, tickets *ticket.Service, redisClient *redis.Client, channelBinding string) *Handler {
	return &Handler{
		hub:            hub,
		tickets:        tickets,
		redisClient:    redisClient,
		channelBinding: channelBinding,
		subscribed:     make(map[string]bool),
	}
}

// ServeWS upgrades the request into a live agent session. The session joins
// the binding-wide notification room immediately; ticket rooms are joined on
// demand via join-ticket frames.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, agentName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := newClient(conn, uuid.NewString(), agentName)

	bindingRoom := BindingRoomID(h.channelBinding)
	h.ensureSubscription(bindingRoom)
	h.hub.Join <- joinRequest{client: cl, roomID: bindingRoom}
	incConnections()

	go cl.keepAlive()
	go cl.writePump()
	go h.readPump(cl)
}

func (h *Handler) readPump(cl *WSClient) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in session %s: %v", cl.ID, r)
		}
		cl.stop()
		h.hub.Unregister <- cl
		decConnections()
		log.Printf("session %s disconnected", cl.ID)
	}()

	cl.Conn.SetReadLimit(512 * 1024)

	for {
		_, raw, err := cl.Conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					return
				}
			}
			log.Printf("error reading from session %s: %v", cl.ID, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(cl, "validation_error", "malformed frame")
			continue
		}

		h.handleFrame(cl, frame)
	}
}

func (h *Handler) handleFrame(cl *WSClient, frame Frame) {
	ctx := context.Background()

	switch frame.Type {
	case FrameJoinTicket:
		var payload JoinTicketPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || strings.TrimSpace(payload.ConversationID) == "" {
			h.sendError(cl, "validation_error", "conversationId is required")
			return
		}

		conversation, err := h.tickets.GetTicket(ctx, payload.ConversationID)
		if err != nil {
			h.sendServiceError(cl, err)
			return
		}

		roomID := TicketRoomID(conversation.ConversationID)
		if cl.ticketRoom != "" && cl.ticketRoom != roomID {
			h.hub.Leave <- leaveRequest{client: cl, roomID: cl.ticketRoom}
		}
		h.ensureSubscription(roomID)
		h.hub.Join <- joinRequest{client: cl, roomID: roomID}
		cl.ticketRoom = roomID

		reply, err := newFrame(FrameJoinedTicket, ticket.ToTicketMetadata(conversation))
		if err != nil {
			h.sendError(cl, "internal_error", "failed to encode reply")
			return
		}
		cl.send(reply)

	case FrameRequestMessages:
		if cl.ticketRoom == "" {
			h.sendError(cl, "validation_error", "join a ticket first")
			return
		}
		var payload RequestMessagesPayload
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				h.sendError(cl, "validation_error", "malformed payload")
				return
			}
		}

		conversationID := strings.TrimPrefix(cl.ticketRoom, "ticket:")
		loaded, err := h.tickets.ListMessages(ctx, conversationID, payload.Limit)
		if err != nil {
			h.sendServiceError(cl, err)
			return
		}

		messages := make([]dto.MessageResponse, 0, len(loaded.Messages))
		for _, message := range loaded.Messages {
			messages = append(messages, ticket.ToMessageResponse(message))
		}
		reply, err := newFrame(FrameMessagesLoaded, dto.ListMessagesResponse{
			Ticket:   ticket.ToTicketMetadata(loaded.Conversation),
			Messages: messages,
		})
		if err != nil {
			h.sendError(cl, "internal_error", "failed to encode reply")
			return
		}
		cl.send(reply)

	case FrameSendMessage:
		if cl.ticketRoom == "" {
			h.sendError(cl, "validation_error", "join a ticket first")
			return
		}
		var payload SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || strings.TrimSpace(payload.Body) == "" {
			h.sendError(cl, "validation_error", "message body is required")
			return
		}

		conversationID := strings.TrimPrefix(cl.ticketRoom, "ticket:")
		// The stored message comes back to this session through the
		// room fan-out, so success needs no direct reply.
		if _, err := h.tickets.PostReply(ctx, conversationID, payload.Body, payload.IsInternal, cl.AgentName); err != nil {
			h.sendServiceError(cl, err)
			return
		}

	default:
		h.sendError(cl, "validation_error", "unknown frame type "+frame.Type)
	}
}

func (h *Handler) sendError(cl *WSClient, code, message string) {
	frame, err := newFrame(FrameError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	cl.send(frame)
}

func (h *Handler) sendServiceError(cl *WSClient, err error) {
	var svcErr *ticket.Error
	if errors.As(err, &svcErr) {
		h.sendError(cl, string(svcErr.Code), svcErr.Message)
		return
	}
	h.sendError(cl, "internal_error", "request failed")
}

// ensureSubscription starts the Redis bridge for a room exactly once per
// process. The subscription stays up for the process lifetime so late
// joiners never miss the bridge.
func (h *Handler) ensureSubscription(roomID string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.subscribed[roomID] {
		return
	}
	h.subscribed[roomID] = true
	go h.subscribeToChannel(roomID)
}

func (h *Handler) subscribeToChannel(roomID string) {
	if h.redisClient == nil {
		return
	}

	log.Printf("subscribing to channel %s", roomID)
	subscriber := h.redisClient.Subscribe(context.Background(), roomID)
	defer subscriber.Close()

	for msg := range subscriber.Channel() {
		var frame Frame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			log.Printf("dropping malformed payload on channel %s: %v", roomID, err)
			continue
		}
		h.hub.Broadcast <- RoomFrame{RoomID: roomID, Frame: &frame}
	}
	log.Printf("unsubscribed from channel %s", roomID)
}
