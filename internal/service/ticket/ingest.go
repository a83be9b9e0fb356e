package ticket

import (
	"context"
	"log"
	"time"

	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/extract"
	"whatsdesk-backend/internal/model"
	"whatsdesk-backend/internal/phone"
)

const (
	SkipReasonIgnoredEvent     = "ignored_event"
	SkipReasonOwnMessage       = "own_message"
	SkipReasonMalformedPayload = "malformed_payload"
	SkipReasonGroupChat        = "group_chat"
	SkipReasonInvalidPhone     = "invalid_phone"
	SkipReasonUnsupportedBody  = "unsupported_body"
)

type IngestResult struct {
	Skipped    bool
	SkipReason string
	Duplicate  bool

	Customer        model.CustomerItem
	Conversation    model.ConversationItem
	Message         model.MessageItem
	NewCustomer     bool
	NewConversation bool
}

func skipped(reason string) IngestResult {
	ingestSkipped.WithLabelValues(reason).Inc()
	return IngestResult{Skipped: true, SkipReason: reason}
}

// Ingest runs a gateway webhook event through the full inbound pipeline:
// normalize the sender, resolve the customer and their open conversation,
// persist the message exactly once, then fan out to live sessions. Skips are
// acknowledged outcomes, not errors; the gateway must not retry them.
func (s *Service) Ingest(ctx context.Context, event dto.GatewayEvent) (IngestResult, error) {
	ingestEventsReceived.Inc()

	if event.Event != dto.EventMessagesUpsert {
		return skipped(SkipReasonIgnoredEvent), nil
	}
	if event.Data.Key.FromMe {
		return skipped(SkipReasonOwnMessage), nil
	}
	if event.Data.Key.RemoteJid == "" || event.Data.Key.ID == "" {
		log.Printf("ingest: malformed key on %s event, instance %s", event.Event, event.Instance)
		return skipped(SkipReasonMalformedPayload), nil
	}

	number := phone.Normalize(event.Data.Key.RemoteJid)
	if number.IsGroupChat {
		return skipped(SkipReasonGroupChat), nil
	}
	if !number.IsValid {
		log.Printf("ingest: unparseable sender %q", event.Data.Key.RemoteJid)
		return skipped(SkipReasonInvalidPhone), nil
	}

	content := extract.Resolve(event.Data.Message)
	body, ok := content.DisplayText()
	if !ok {
		log.Printf("ingest: no displayable content in message %s", event.Data.Key.ID)
		return skipped(SkipReasonUnsupportedBody), nil
	}

	resolved, err := s.customers.Resolve(ctx, number, event.Data.PushName)
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{
		Customer:    resolved.Customer,
		NewCustomer: resolved.WasCreated,
	}

	conversation, conversationIsNew, err := s.resolveConversation(ctx, resolved.Customer.CustomerID, event.Instance)
	if err != nil {
		// Conversation resolution failed but the customer text is in hand.
		// Store it orphaned so nothing is lost.
		log.Printf("ingest: conversation resolution failed for customer %s: %v", resolved.Customer.CustomerID, err)
		message, wasNew, storeErr := s.storeInbound(ctx, "", event.Instance, event.Data.Key.ID, body, senderName(resolved.Customer, event.Data.PushName))
		if storeErr != nil {
			return IngestResult{}, storeErr
		}
		if wasNew {
			ingestOrphaned.Inc()
		}
		result.Message = message
		result.Duplicate = !wasNew
		return result, nil
	}

	result.Conversation = conversation
	result.NewConversation = conversationIsNew

	message, wasNew, err := s.storeInbound(ctx, conversation.ConversationID, event.Instance, event.Data.Key.ID, body, senderName(resolved.Customer, event.Data.PushName))
	if err != nil {
		return IngestResult{}, err
	}
	result.Message = message

	if !wasNew {
		ingestDuplicates.Inc()
		result.Duplicate = true
		return result, nil
	}

	ingestMessagesStored.Inc()
	if conversationIsNew {
		ticketsOpened.Inc()
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationActivity(ctx, conversation.ConversationID, nowStr, nowStr, nil); err != nil {
		return IngestResult{}, err
	}
	result.Conversation.UpdatedAt = nowStr
	result.Conversation.LastMessageAt = nowStr

	if s.publisher != nil {
		if err := s.publisher.PublishNewMessage(conversation.ConversationID, ToMessageResponse(message)); err != nil {
			log.Printf("fan-out publish failed for %s: %v", conversation.ConversationID, err)
		}
		if conversationIsNew {
			if err := s.publisher.PublishTicketOpened(conversation.ChannelBinding, ToTicketMetadata(result.Conversation)); err != nil {
				log.Printf("ticket-opened publish failed for %s: %v", conversation.ConversationID, err)
			}
		}
	}

	return result, nil
}

func senderName(customer model.CustomerItem, pushName string) string {
	if pushName != "" {
		return pushName
	}
	return customer.DisplayName
}
