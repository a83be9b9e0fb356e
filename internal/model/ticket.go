package model

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusFinalized  TicketStatus = "finalized"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// Terminal reports whether the status ends a conversation. A new inbound
// message after a terminal status opens a fresh conversation instead of
// reopening the old one.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusFinalized || s == TicketStatusCancelled
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type CustomerItem struct {
	CanonicalPhone string `dynamodbav:"canonicalPhone"`
	CustomerID     string `dynamodbav:"customerId"`
	DisplayName    string `dynamodbav:"displayName"`
	Country        string `dynamodbav:"country,omitempty"`
	LocalFormat    string `dynamodbav:"localFormat,omitempty"`
	CreatedAt      string `dynamodbav:"createdAt"`
}

type ConversationItem struct {
	ConversationID string       `dynamodbav:"conversationId"`
	CustomerID     string       `dynamodbav:"customerId"`
	ChannelBinding string       `dynamodbav:"channelBinding"`
	Status         TicketStatus `dynamodbav:"status"`
	CreatedAt      string       `dynamodbav:"createdAt"`
	UpdatedAt      string       `dynamodbav:"updatedAt"`
	LastMessageAt  string       `dynamodbav:"lastMessageAt"`
}

// OpenTicketItem is the lock row enforcing the routing invariant: at most one
// non-terminal conversation per (customer, channel binding). It is created
// with a conditional put and deleted when the conversation is finalized or
// cancelled.
type OpenTicketItem struct {
	PK             string `dynamodbav:"pk"`
	ConversationID string `dynamodbav:"conversationId"`
	CustomerID     string `dynamodbav:"customerId"`
	ChannelBinding string `dynamodbav:"channelBinding"`
	UpdatedAt      string `dynamodbav:"updatedAt"`
}

type MessageItem struct {
	PK                string           `dynamodbav:"pk"`
	MessageID         string           `dynamodbav:"messageId"`
	ConversationID    string           `dynamodbav:"conversationId,omitempty"`
	Direction         MessageDirection `dynamodbav:"direction"`
	Body              string           `dynamodbav:"body"`
	ExternalMessageID string           `dynamodbav:"externalMessageId,omitempty"`
	ChannelBinding    string           `dynamodbav:"channelBinding,omitempty"`
	SenderName        string           `dynamodbav:"senderName,omitempty"`
	InternalNote      bool             `dynamodbav:"internalNote,omitempty"`
	Orphaned          bool             `dynamodbav:"orphaned,omitempty"`
	CreatedAt         string           `dynamodbav:"createdAt"`
}
