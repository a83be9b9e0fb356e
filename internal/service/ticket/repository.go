package ticket

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("ticket repository: not found")
	ErrConflict = errors.New("ticket repository: already exists")
)

type Repository interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	UpdateConversationActivity(ctx context.Context, conversationID, updatedAt, lastMessageAt string, status *model.TicketStatus) error
	ListConversations(ctx context.Context, limit int) ([]model.ConversationItem, error)

	GetOpenTicket(ctx context.Context, pk string) (model.OpenTicketItem, error)
	// CreateOpenTicket claims the open-conversation slot for a (customer,
	// channel binding) pair; ErrConflict means another worker holds it.
	CreateOpenTicket(ctx context.Context, lock model.OpenTicketItem) error
	DeleteOpenTicket(ctx context.Context, pk string) error

	GetMessage(ctx context.Context, pk string) (model.MessageItem, error)
	// CreateInboundMessage inserts keyed by the gateway message id;
	// ErrConflict signals a redelivered event.
	CreateInboundMessage(ctx context.Context, message model.MessageItem) error
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) UpdateConversationActivity(ctx context.Context, conversationID, updatedAt, lastMessageAt string, status *model.TicketStatus) error {
	updateExpr := "SET #updatedAt = :updatedAt, #lastMessageAt = :lastMessageAt"
	exprValues := map[string]types.AttributeValue{
		":updatedAt":     &types.AttributeValueMemberS{Value: updatedAt},
		":lastMessageAt": &types.AttributeValueMemberS{Value: lastMessageAt},
	}
	attrNames := map[string]string{
		"#updatedAt":     "updatedAt",
		"#lastMessageAt": "lastMessageAt",
	}

	if status != nil {
		updateExpr += ", #status = :status"
		exprValues[":status"] = &types.AttributeValueMemberS{Value: string(*status)}
		attrNames["#status"] = "status"
	}

	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		updateExpr,
		exprValues,
		attrNames,
		nil,
	)
}

func (r *DynamoRepository) ListConversations(ctx context.Context, limit int) ([]model.ConversationItem, error) {
	items, err := r.db.Client.ScanItems(
		ctx,
		model.ConversationsTable,
		"attribute_exists(#conversationId)",
		nil,
		map[string]string{
			"#conversationId": "conversationId",
		},
	)
	if err != nil {
		return nil, err
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	return conversations, nil
}

func (r *DynamoRepository) GetOpenTicket(ctx context.Context, pk string) (model.OpenTicketItem, error) {
	var lock model.OpenTicketItem
	err := r.db.Client.GetItem(
		ctx,
		model.OpenTicketsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		&lock,
	)
	if err != nil {
		if isNotFound(err) {
			return model.OpenTicketItem{}, ErrNotFound
		}
		return model.OpenTicketItem{}, err
	}
	return lock, nil
}

func (r *DynamoRepository) CreateOpenTicket(ctx context.Context, lock model.OpenTicketItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.OpenTicketsTable, "pk", lock)
	if errors.Is(err, database.ErrConditionalCheckFailed) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) DeleteOpenTicket(ctx context.Context, pk string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.OpenTicketsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
	)
}

func (r *DynamoRepository) GetMessage(ctx context.Context, pk string) (model.MessageItem, error) {
	var message model.MessageItem
	err := r.db.Client.GetItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		&message,
	)
	if err != nil {
		if isNotFound(err) {
			return model.MessageItem{}, ErrNotFound
		}
		return model.MessageItem{}, err
	}
	return message, nil
}

func (r *DynamoRepository) CreateInboundMessage(ctx context.Context, message model.MessageItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.MessagesTable, "pk", message)
	if errors.Is(err, database.ErrConditionalCheckFailed) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		if message.Orphaned {
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		ti := parseTime(messages[i].CreatedAt)
		tj := parseTime(messages[j].CreatedAt)
		return ti.Before(tj)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}

func parseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
