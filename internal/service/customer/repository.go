package customer

import (
	"context"
	"errors"
	"strings"

	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("customer repository: not found")
	ErrConflict = errors.New("customer repository: already exists")
)

type Repository interface {
	GetByPhone(ctx context.Context, canonicalPhone string) (model.CustomerItem, error)
	GetByID(ctx context.Context, customerID string) (model.CustomerItem, error)
	// Create inserts the customer only if no row exists for the canonical
	// phone; returns ErrConflict when another writer got there first.
	Create(ctx context.Context, customer model.CustomerItem) error
	UpdateDisplayName(ctx context.Context, canonicalPhone, displayName string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetByPhone(ctx context.Context, canonicalPhone string) (model.CustomerItem, error) {
	var customer model.CustomerItem
	err := r.db.Client.GetItem(
		ctx,
		model.CustomersTable,
		map[string]types.AttributeValue{
			"canonicalPhone": &types.AttributeValueMemberS{Value: canonicalPhone},
		},
		&customer,
	)
	if err != nil {
		if isNotFound(err) {
			return model.CustomerItem{}, ErrNotFound
		}
		return model.CustomerItem{}, err
	}
	return customer, nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, customerID string) (model.CustomerItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.CustomersTable,
		aws.String("byCustomerId"),
		"customerId = :customerId",
		map[string]types.AttributeValue{
			":customerId": &types.AttributeValueMemberS{Value: customerID},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return model.CustomerItem{}, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.CustomersTable,
			"customerId = :customerId",
			map[string]types.AttributeValue{
				":customerId": &types.AttributeValueMemberS{Value: customerID},
			},
			nil,
		)
		if err != nil {
			return model.CustomerItem{}, err
		}
	}

	if len(items) == 0 {
		return model.CustomerItem{}, ErrNotFound
	}

	var customer model.CustomerItem
	if err := attributevalue.UnmarshalMap(items[0], &customer); err != nil {
		return model.CustomerItem{}, err
	}
	return customer, nil
}

func (r *DynamoRepository) Create(ctx context.Context, customer model.CustomerItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.CustomersTable, "canonicalPhone", customer)
	if errors.Is(err, database.ErrConditionalCheckFailed) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) UpdateDisplayName(ctx context.Context, canonicalPhone, displayName string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.CustomersTable,
		map[string]types.AttributeValue{
			"canonicalPhone": &types.AttributeValueMemberS{Value: canonicalPhone},
		},
		"SET #displayName = :displayName",
		map[string]types.AttributeValue{
			":displayName": &types.AttributeValueMemberS{Value: displayName},
		},
		map[string]string{
			"#displayName": "displayName",
		},
		nil,
	)
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
