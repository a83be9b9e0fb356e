package dto

type TicketMetadata struct {
	ConversationID string `json:"conversationId"`
	CustomerID     string `json:"customerId"`
	ChannelBinding string `json:"channelBinding"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
	LastMessageAt  string `json:"lastMessageAt,omitempty"`
}

type MessageResponse struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId,omitempty"`
	Direction      string `json:"direction"`
	Body           string `json:"body"`
	SenderName     string `json:"senderName,omitempty"`
	InternalNote   bool   `json:"isInternal,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type ListTicketsResponse struct {
	Tickets []TicketMetadata `json:"tickets"`
}

type ListMessagesResponse struct {
	Ticket   TicketMetadata    `json:"ticket"`
	Messages []MessageResponse `json:"messages"`
}

type PostReplyRequest struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"isInternal,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

type PostReplyResponse struct {
	Ticket  TicketMetadata  `json:"ticket"`
	Message MessageResponse `json:"message"`
}

type UpdateTicketStatusRequest struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status           string         `json:"status"`
	GatewayState     string         `json:"gatewayState,omitempty"`
	GatewayAttempts  int            `json:"gatewayAttempts,omitempty"`
	SubscriberCounts map[string]int `json:"subscriberCounts,omitempty"`
}
