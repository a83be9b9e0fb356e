package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/model"
	"whatsdesk-backend/internal/phone"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
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

type ResolveResult struct {
	Customer   model.CustomerItem
	WasCreated bool
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Resolve finds or creates the customer keyed by the canonical phone. Safe
// under concurrent first contact: the insert is conditional on the phone not
// existing, and a conflict falls back to reading the winner's row.
func (s *Service) Resolve(ctx context.Context, number phone.Result, displayNameHint string) (ResolveResult, error) {
	if !number.IsValid {
		return ResolveResult{}, newError(ErrorCodeValidation, "a valid canonical phone is required", nil)
	}

	displayNameHint = strings.TrimSpace(displayNameHint)

	existing, err := s.repo.GetByPhone(ctx, number.CanonicalPhone)
	if err == nil {
		return s.refreshDisplayName(ctx, existing, displayNameHint)
	}
	if !errors.Is(err, ErrNotFound) {
		return ResolveResult{}, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	now := s.now().UTC()
	created := model.CustomerItem{
		CanonicalPhone: number.CanonicalPhone,
		CustomerID:     uuid.NewString(),
		DisplayName:    generatedDisplayName(displayNameHint, number.CanonicalPhone),
		Country:        number.Country,
		LocalFormat:    number.LocalFormat,
		CreatedAt:      now.Format(time.RFC3339),
	}

	err = s.repo.Create(ctx, created)
	if err == nil {
		return ResolveResult{Customer: created, WasCreated: true}, nil
	}
	if !errors.Is(err, ErrConflict) {
		return ResolveResult{}, newError(ErrorCodeInternal, "failed to create customer", err)
	}

	// Lost the first-contact race; the other writer's row is authoritative.
	winner, err := s.repo.GetByPhone(ctx, number.CanonicalPhone)
	if err != nil {
		return ResolveResult{}, newError(ErrorCodeInternal, "failed to read customer after conflict", err)
	}
	return ResolveResult{Customer: winner}, nil
}

func (s *Service) GetByID(ctx context.Context, customerID string) (model.CustomerItem, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return model.CustomerItem{}, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	customer, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.CustomerItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to load customer", err)
	}
	return customer, nil
}

func (s *Service) refreshDisplayName(ctx context.Context, existing model.CustomerItem, hint string) (ResolveResult, error) {
	if hint == "" || hint == existing.DisplayName {
		return ResolveResult{Customer: existing}, nil
	}

	if err := s.repo.UpdateDisplayName(ctx, existing.CanonicalPhone, hint); err != nil {
		return ResolveResult{}, newError(ErrorCodeInternal, "failed to refresh display name", err)
	}
	existing.DisplayName = hint
	return ResolveResult{Customer: existing}, nil
}

func generatedDisplayName(hint, canonicalPhone string) string {
	if hint != "" {
		return hint
	}
	tail := canonicalPhone
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "Customer " + tail
}
