package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/model"
	"whatsdesk-backend/internal/service/customer"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeConflict   ErrorCode = "conflict"
	ErrorCodeGateway    ErrorCode = "gateway_error"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// EventPublisher fans a stored message out to live agent sessions. Delivery
// is best effort; subscribers that miss an event backfill on rejoin.
type EventPublisher interface {
	PublishNewMessage(conversationID string, message dto.MessageResponse) error
	PublishTicketOpened(channelBinding string, ticket dto.TicketMetadata) error
}

// GatewaySender performs the outbound send call to the messaging gateway.
type GatewaySender interface {
	SendText(ctx context.Context, req dto.SendTextRequest) (dto.SendTextResponse, error)
}

type Service struct {
	repo      Repository
	customers *customer.Service
	publisher EventPublisher
	sender    GatewaySender
	now       func() time.Time
}

func New(db *database.Database, publisher EventPublisher, sender GatewaySender) *Service {
	return &Service{
		repo:      NewDynamoRepository(db),
		customers: customer.New(db),
		publisher: publisher,
		sender:    sender,
		now:       time.Now,
	}
}

func NewWithDependencies(repo Repository, customers *customer.Service, publisher EventPublisher, sender GatewaySender, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		customers: customers,
		publisher: publisher,
		sender:    sender,
		now:       now,
	}
}

type ReplyResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type TicketMessages struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
}

// resolveConversation returns the customer's current non-terminal
// conversation on the channel binding, creating one when none exists. The
// open-ticket lock row is the uniqueness constraint: two workers racing on
// the first message both attempt the conditional put and the loser adopts
// the winner's conversation.
func (s *Service) resolveConversation(ctx context.Context, customerID, channelBinding string) (model.ConversationItem, bool, error) {
	pk := model.OpenTicketPK(customerID, channelBinding)

	lock, err := s.repo.GetOpenTicket(ctx, pk)
	if err == nil {
		conversation, convErr := s.repo.GetConversation(ctx, lock.ConversationID)
		if convErr == nil && !conversation.Status.Terminal() {
			return conversation, false, nil
		}
		if convErr != nil && !errors.Is(convErr, ErrNotFound) {
			return model.ConversationItem{}, false, convErr
		}
		// Stale lock: the conversation is gone or was closed without the
		// lock being released. Clear it and open a fresh conversation.
		if delErr := s.repo.DeleteOpenTicket(ctx, pk); delErr != nil {
			return model.ConversationItem{}, false, delErr
		}
	} else if !errors.Is(err, ErrNotFound) {
		return model.ConversationItem{}, false, err
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)
	conversationID := uuid.NewString()

	err = s.repo.CreateOpenTicket(ctx, model.OpenTicketItem{
		PK:             pk,
		ConversationID: conversationID,
		CustomerID:     customerID,
		ChannelBinding: channelBinding,
		UpdatedAt:      nowStr,
	})
	if errors.Is(err, ErrConflict) {
		return s.adoptWinningConversation(ctx, pk)
	}
	if err != nil {
		return model.ConversationItem{}, false, err
	}

	conversation := model.ConversationItem{
		ConversationID: conversationID,
		CustomerID:     customerID,
		ChannelBinding: channelBinding,
		Status:         model.TicketStatusOpen,
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
		LastMessageAt:  nowStr,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return model.ConversationItem{}, false, err
	}

	return conversation, true, nil
}

// adoptWinningConversation reads the conversation owned by whoever won the
// lock race. The winner writes the conversation row right after the lock, so
// a short retry covers the gap.
func (s *Service) adoptWinningConversation(ctx context.Context, pk string) (model.ConversationItem, bool, error) {
	lock, err := s.repo.GetOpenTicket(ctx, pk)
	if err != nil {
		return model.ConversationItem{}, false, err
	}

	for attempt := 0; attempt < 5; attempt++ {
		conversation, err := s.repo.GetConversation(ctx, lock.ConversationID)
		if err == nil {
			return conversation, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, false, err
		}
		select {
		case <-ctx.Done():
			return model.ConversationItem{}, false, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}

	return model.ConversationItem{}, false, fmt.Errorf("conversation %s for lock %s never appeared", lock.ConversationID, pk)
}

// storeInbound persists an inbound message keyed by the gateway message id.
// A duplicate delivery returns the original row with wasNew=false. An empty
// conversation id stores the message orphaned rather than dropping customer
// content.
func (s *Service) storeInbound(ctx context.Context, conversationID, channelBinding, externalMessageID, body, senderName string) (model.MessageItem, bool, error) {
	pk := model.InboundMessagePK(channelBinding, externalMessageID)
	nowStr := s.now().UTC().Format(time.RFC3339)

	message := model.MessageItem{
		PK:                pk,
		MessageID:         uuid.NewString(),
		ConversationID:    conversationID,
		Direction:         model.DirectionInbound,
		Body:              body,
		ExternalMessageID: externalMessageID,
		ChannelBinding:    channelBinding,
		SenderName:        senderName,
		Orphaned:          conversationID == "",
		CreatedAt:         nowStr,
	}

	err := s.repo.CreateInboundMessage(ctx, message)
	if errors.Is(err, ErrConflict) {
		existing, getErr := s.repo.GetMessage(ctx, pk)
		if getErr != nil {
			return model.MessageItem{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return model.MessageItem{}, false, err
	}

	return message, true, nil
}

// PostReply stores an agent message on the ticket and, unless it is an
// internal note, sends it out through the gateway. The message is persisted
// before the send so a gateway failure never loses the agent's text; the
// gateway's raw error is surfaced to the caller.
func (s *Service) PostReply(ctx context.Context, conversationID, body string, isInternal bool, senderName string) (ReplyResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	body = strings.TrimSpace(body)

	if conversationID == "" {
		return ReplyResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if body == "" {
		return ReplyResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ReplyResult{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return ReplyResult{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}
	if conversation.Status.Terminal() {
		return ReplyResult{}, newError(ErrorCodeConflict, "ticket is closed", nil)
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	messageID := uuid.NewString()
	message := model.MessageItem{
		PK:             messageID,
		MessageID:      messageID,
		ConversationID: conversation.ConversationID,
		Direction:      model.DirectionOutbound,
		Body:           body,
		ChannelBinding: conversation.ChannelBinding,
		SenderName:     strings.TrimSpace(senderName),
		InternalNote:   isInternal,
		CreatedAt:      nowStr,
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return ReplyResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	if err := s.repo.UpdateConversationActivity(ctx, conversation.ConversationID, nowStr, nowStr, nil); err != nil {
		return ReplyResult{}, newError(ErrorCodeInternal, "failed to update ticket", err)
	}
	conversation.UpdatedAt = nowStr
	conversation.LastMessageAt = nowStr

	if s.publisher != nil {
		if err := s.publisher.PublishNewMessage(conversation.ConversationID, ToMessageResponse(message)); err != nil {
			// Fan-out is best effort; sessions backfill on rejoin.
			log.Printf("fan-out publish failed for %s: %v", conversation.ConversationID, err)
		}
	}

	// Internal notes stay between agents and never reach the gateway.
	if !isInternal && s.sender != nil {
		target, err := s.customers.GetByID(ctx, conversation.CustomerID)
		if err != nil {
			return ReplyResult{}, newError(ErrorCodeInternal, "failed to load ticket customer", err)
		}

		_, err = s.sender.SendText(ctx, dto.SendTextRequest{
			Number: target.CanonicalPhone,
			Text:   body,
			Options: dto.SendTextOptions{
				Delay:       1200,
				Presence:    "composing",
				LinkPreview: false,
			},
		})
		if err != nil {
			return ReplyResult{}, newError(ErrorCodeGateway, fmt.Sprintf("gateway send failed: %v", err), err)
		}
	}

	return ReplyResult{
		Conversation: conversation,
		Message:      message,
	}, nil
}

// SetStatus applies an agent status transition. Moving into a terminal
// status releases the open-ticket lock so the customer's next message opens
// a fresh conversation.
func (s *Service) SetStatus(ctx context.Context, conversationID, status string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	newStatus := model.TicketStatus(strings.TrimSpace(status))
	switch newStatus {
	case model.TicketStatusInProgress, model.TicketStatusFinalized, model.TicketStatusCancelled:
	default:
		return model.ConversationItem{}, newError(ErrorCodeValidation, "invalid ticket status", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}
	if conversation.Status.Terminal() {
		return model.ConversationItem{}, newError(ErrorCodeConflict, "ticket is already closed", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationActivity(ctx, conversationID, nowStr, conversation.LastMessageAt, &newStatus); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to update ticket", err)
	}

	conversation.Status = newStatus
	conversation.UpdatedAt = nowStr

	if newStatus.Terminal() {
		pk := model.OpenTicketPK(conversation.CustomerID, conversation.ChannelBinding)
		if err := s.repo.DeleteOpenTicket(ctx, pk); err != nil {
			return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to release open ticket", err)
		}
	}

	return conversation, nil
}

func (s *Service) GetTicket(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}
	return conversation, nil
}

func (s *Service) ListTickets(ctx context.Context, limit int) ([]model.ConversationItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	conversations, err := s.repo.ListConversations(ctx, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list tickets", err)
	}
	return conversations, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID string, limit int) (TicketMessages, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return TicketMessages{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TicketMessages{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return TicketMessages{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}

	messages, err := s.repo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return TicketMessages{}, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	return TicketMessages{
		Conversation: conversation,
		Messages:     messages,
	}, nil
}

func ToTicketMetadata(conversation model.ConversationItem) dto.TicketMetadata {
	return dto.TicketMetadata{
		ConversationID: conversation.ConversationID,
		CustomerID:     conversation.CustomerID,
		ChannelBinding: conversation.ChannelBinding,
		Status:         string(conversation.Status),
		CreatedAt:      conversation.CreatedAt,
		UpdatedAt:      conversation.UpdatedAt,
		LastMessageAt:  conversation.LastMessageAt,
	}
}

func ToMessageResponse(message model.MessageItem) dto.MessageResponse {
	return dto.MessageResponse{
		MessageID:      message.MessageID,
		ConversationID: message.ConversationID,
		Direction:      string(message.Direction),
		Body:           message.Body,
		SenderName:     message.SenderName,
		InternalNote:   message.InternalNote,
		CreatedAt:      message.CreatedAt,
	}
}
