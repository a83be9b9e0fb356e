package websocket

import "encoding/json"

// Client to server frame types.
const (
	FrameJoinTicket      = "join-ticket"
	FrameRequestMessages = "request-messages"
	FrameSendMessage     = "send-message"
)

// Server to client frame types.
const (
	FrameJoinedTicket   = "joined-ticket"
	FrameMessagesLoaded = "messages-loaded"
	FrameNewMessage     = "new-message"
	FrameTicketOpened   = "ticket-opened"
	FrameError          = "error"
)

// Frame is the envelope for every message on a live session, both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newFrame(frameType string, payload interface{}) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: frameType, Payload: raw}, nil
}

type JoinTicketPayload struct {
	ConversationID string `json:"conversationId"`
}

type RequestMessagesPayload struct {
	Limit int `json:"limit,omitempty"`
}

type SendMessagePayload struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"isInternal,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Room struct {
	ID      string
	Clients map[string]*WSClient
}

// RoomFrame is a frame addressed to every client in one room.
type RoomFrame struct {
	RoomID string
	Frame  *Frame
}

// TicketRoomID names the room (and Redis channel) carrying one ticket's
// live traffic.
func TicketRoomID(conversationID string) string {
	return "ticket:" + conversationID
}

// BindingRoomID names the room (and Redis channel) carrying ticket-opened
// notifications for a channel binding. Every session joins it on connect.
func BindingRoomID(channelBinding string) string {
	return "tickets:" + channelBinding
}
