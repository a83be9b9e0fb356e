package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/model"
	"whatsdesk-backend/internal/service/customer"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	openTickets   map[string]model.OpenTicketItem
	messages      map[string]model.MessageItem
	messageOrder  []string
	openTicketErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		openTickets:   make(map[string]model.OpenTicketItem),
		messages:      make(map[string]model.MessageItem),
	}
}

func (m *memoryRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *memoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.ConversationID] = conversation
	return nil
}

func (m *memoryRepository) UpdateConversationActivity(ctx context.Context, conversationID, updatedAt, lastMessageAt string, status *model.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conversation.UpdatedAt = updatedAt
	conversation.LastMessageAt = lastMessageAt
	if status != nil {
		conversation.Status = *status
	}
	m.conversations[conversationID] = conversation
	return nil
}

func (m *memoryRepository) ListConversations(ctx context.Context, limit int) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversations := make([]model.ConversationItem, 0, len(m.conversations))
	for _, conversation := range m.conversations {
		conversations = append(conversations, conversation)
	}
	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations, nil
}

func (m *memoryRepository) GetOpenTicket(ctx context.Context, pk string) (model.OpenTicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openTicketErr != nil {
		return model.OpenTicketItem{}, m.openTicketErr
	}
	lock, ok := m.openTickets[pk]
	if !ok {
		return model.OpenTicketItem{}, ErrNotFound
	}
	return lock, nil
}

func (m *memoryRepository) CreateOpenTicket(ctx context.Context, lock model.OpenTicketItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openTicketErr != nil {
		return m.openTicketErr
	}
	if _, ok := m.openTickets[lock.PK]; ok {
		return ErrConflict
	}
	m.openTickets[lock.PK] = lock
	return nil
}

func (m *memoryRepository) DeleteOpenTicket(ctx context.Context, pk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.openTickets, pk)
	return nil
}

func (m *memoryRepository) GetMessage(ctx context.Context, pk string) (model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	message, ok := m.messages[pk]
	if !ok {
		return model.MessageItem{}, ErrNotFound
	}
	return message, nil
}

func (m *memoryRepository) CreateInboundMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[message.PK]; ok {
		return ErrConflict
	}
	m.messages[message.PK] = message
	m.messageOrder = append(m.messageOrder, message.PK)
	return nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.PK] = message
	m.messageOrder = append(m.messageOrder, message.PK)
	return nil
}

func (m *memoryRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := make([]model.MessageItem, 0)
	for _, pk := range m.messageOrder {
		message := m.messages[pk]
		if message.ConversationID != conversationID || message.Orphaned {
			continue
		}
		messages = append(messages, message)
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

type customerMemoryRepository struct {
	mu        sync.Mutex
	customers map[string]model.CustomerItem
}

func newCustomerMemoryRepository() *customerMemoryRepository {
	return &customerMemoryRepository{customers: make(map[string]model.CustomerItem)}
}

func (m *customerMemoryRepository) GetByPhone(ctx context.Context, canonicalPhone string) (model.CustomerItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[canonicalPhone]
	if !ok {
		return model.CustomerItem{}, customer.ErrNotFound
	}
	return c, nil
}

func (m *customerMemoryRepository) GetByID(ctx context.Context, customerID string) (model.CustomerItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return model.CustomerItem{}, customer.ErrNotFound
}

func (m *customerMemoryRepository) Create(ctx context.Context, c model.CustomerItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.CanonicalPhone]; ok {
		return customer.ErrConflict
	}
	m.customers[c.CanonicalPhone] = c
	return nil
}

func (m *customerMemoryRepository) UpdateDisplayName(ctx context.Context, canonicalPhone, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[canonicalPhone]
	if !ok {
		return customer.ErrNotFound
	}
	c.DisplayName = displayName
	m.customers[canonicalPhone] = c
	return nil
}

type capturePublisher struct {
	mu          sync.Mutex
	newMessages []dto.MessageResponse
	opened      []dto.TicketMetadata
}

func (p *capturePublisher) PublishNewMessage(conversationID string, message dto.MessageResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newMessages = append(p.newMessages, message)
	return nil
}

func (p *capturePublisher) PublishTicketOpened(channelBinding string, ticket dto.TicketMetadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, ticket)
	return nil
}

type captureSender struct {
	mu       sync.Mutex
	requests []dto.SendTextRequest
	err      error
}

func (s *captureSender) SendText(ctx context.Context, req dto.SendTextRequest) (dto.SendTextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return dto.SendTextResponse{}, s.err
	}
	s.requests = append(s.requests, req)
	return dto.SendTextResponse{Key: dto.SendTextResponseKey{ID: "gw-1"}, Status: "PENDING"}, nil
}

type testEnv struct {
	svc       *Service
	repo      *memoryRepository
	publisher *capturePublisher
	sender    *captureSender
}

func newTestEnv() *testEnv {
	repo := newMemoryRepository()
	publisher := &capturePublisher{}
	sender := &captureSender{}
	customers := customer.NewWithRepository(newCustomerMemoryRepository(), nil)
	svc := NewWithDependencies(repo, customers, publisher, sender, nil)
	return &testEnv{svc: svc, repo: repo, publisher: publisher, sender: sender}
}

func inboundEvent(messageID, text string) dto.GatewayEvent {
	return dto.GatewayEvent{
		Event:    dto.EventMessagesUpsert,
		Instance: "support-line",
		Data: dto.GatewayEventData{
			Key: dto.GatewayMessageKey{
				RemoteJid: "5511999887766@s.whatsapp.net",
				ID:        messageID,
			},
			Message:  &dto.GatewayMessage{Conversation: text},
			PushName: "Maria",
		},
	}
}

func TestIngestStoresInboundMessage(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello, my order is late"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if !result.NewCustomer || !result.NewConversation {
		t.Fatal("expected new customer and conversation on first contact")
	}
	if result.Message.Body != "hello, my order is late" {
		t.Fatalf("unexpected body %q", result.Message.Body)
	}
	if result.Message.Direction != model.DirectionInbound {
		t.Fatalf("unexpected direction %s", result.Message.Direction)
	}
	if result.Conversation.Status != model.TicketStatusOpen {
		t.Fatalf("unexpected status %s", result.Conversation.Status)
	}

	if len(env.publisher.newMessages) != 1 {
		t.Fatalf("expected 1 fan-out message, got %d", len(env.publisher.newMessages))
	}
	if len(env.publisher.opened) != 1 {
		t.Fatalf("expected 1 ticket-opened event, got %d", len(env.publisher.opened))
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	env := newTestEnv()
	event := inboundEvent("msg-1", "hello")

	first, err := env.svc.Ingest(context.Background(), event)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	second, err := env.svc.Ingest(context.Background(), event)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if !second.Duplicate {
		t.Fatal("expected duplicate on redelivery")
	}
	if second.Message.MessageID != first.Message.MessageID {
		t.Fatal("redelivery must return the original message")
	}
	if len(env.repo.messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(env.repo.messages))
	}
	if len(env.publisher.newMessages) != 1 {
		t.Fatalf("duplicate must not fan out, got %d events", len(env.publisher.newMessages))
	}
}

func TestIngestReusesOpenConversation(t *testing.T) {
	env := newTestEnv()

	first, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	second, err := env.svc.Ingest(context.Background(), inboundEvent("msg-2", "anyone there?"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if second.NewConversation {
		t.Fatal("second message must join the existing conversation")
	}
	if second.Conversation.ConversationID != first.Conversation.ConversationID {
		t.Fatal("conversation ids differ for consecutive messages")
	}
	if len(env.repo.conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(env.repo.conversations))
	}
}

func TestIngestOpensNewConversationAfterClose(t *testing.T) {
	env := newTestEnv()

	first, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if _, err := env.svc.SetStatus(context.Background(), first.Conversation.ConversationID, "finalized"); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}

	second, err := env.svc.Ingest(context.Background(), inboundEvent("msg-2", "one more thing"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if !second.NewConversation {
		t.Fatal("message after close must open a new conversation")
	}
	if second.Conversation.ConversationID == first.Conversation.ConversationID {
		t.Fatal("closed conversation must not be reused")
	}
}

func TestIngestRejectsGroupChat(t *testing.T) {
	env := newTestEnv()

	event := inboundEvent("msg-1", "group chatter")
	event.Data.Key.RemoteJid = "123456789-987654@g.us"

	result, err := env.svc.Ingest(context.Background(), event)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonGroupChat {
		t.Fatalf("expected group chat skip, got %+v", result)
	}
	if len(env.repo.messages) != 0 || len(env.repo.conversations) != 0 {
		t.Fatal("group chat must not create any rows")
	}
}

func TestIngestSkipsOwnAndUnsupportedEvents(t *testing.T) {
	env := newTestEnv()

	own := inboundEvent("msg-1", "hello")
	own.Data.Key.FromMe = true
	result, err := env.svc.Ingest(context.Background(), own)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonOwnMessage {
		t.Fatalf("expected own-message skip, got %+v", result)
	}

	other := inboundEvent("msg-2", "hello")
	other.Event = "CONNECTION_UPDATE"
	result, err = env.svc.Ingest(context.Background(), other)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonIgnoredEvent {
		t.Fatalf("expected ignored-event skip, got %+v", result)
	}

	empty := inboundEvent("msg-3", "")
	empty.Data.Message = &dto.GatewayMessage{}
	result, err = env.svc.Ingest(context.Background(), empty)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonUnsupportedBody {
		t.Fatalf("expected unsupported-body skip, got %+v", result)
	}

	if len(env.repo.messages) != 0 {
		t.Fatal("skipped events must not persist messages")
	}
}

func TestIngestMediaMessageUsesPlaceholder(t *testing.T) {
	env := newTestEnv()

	event := inboundEvent("msg-1", "")
	event.Data.Message = &dto.GatewayMessage{
		ImageMessage: &dto.MediaMessage{Mimetype: "image/jpeg"},
	}

	result, err := env.svc.Ingest(context.Background(), event)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Message.Body != "[image]" {
		t.Fatalf("unexpected body %q", result.Message.Body)
	}
}

func TestIngestConcurrentFirstMessage(t *testing.T) {
	env := newTestEnv()

	const workers = 8
	results := make([]IngestResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event := inboundEvent("msg-"+string(rune('a'+i)), "hello")
			results[i], errs[i] = env.svc.Ingest(context.Background(), event)
		}(i)
	}
	wg.Wait()

	opened := 0
	ids := make(map[string]struct{})
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if results[i].NewConversation {
			opened++
		}
		ids[results[i].Conversation.ConversationID] = struct{}{}
	}

	if opened != 1 {
		t.Fatalf("expected exactly one opened conversation, got %d", opened)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one conversation id, got %d", len(ids))
	}
	if len(env.repo.conversations) != 1 {
		t.Fatalf("expected one stored conversation, got %d", len(env.repo.conversations))
	}
}

func TestIngestOrphansMessageWhenResolutionFails(t *testing.T) {
	env := newTestEnv()
	env.repo.openTicketErr = errors.New("provisioned throughput exceeded")

	result, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if !result.Message.Orphaned {
		t.Fatal("expected message to be stored orphaned")
	}
	if result.Message.Body != "hello" {
		t.Fatalf("unexpected body %q", result.Message.Body)
	}
	if len(env.repo.messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(env.repo.messages))
	}
}

func TestListMessagesExcludesOrphans(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	env.repo.openTicketErr = errors.New("throttled")
	if _, err := env.svc.Ingest(context.Background(), inboundEvent("msg-2", "stray")); err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	env.repo.openTicketErr = nil

	listed, err := env.svc.ListMessages(context.Background(), result.Conversation.ConversationID, 0)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(listed.Messages) != 1 {
		t.Fatalf("expected 1 visible message, got %d", len(listed.Messages))
	}
	if listed.Messages[0].Body != "hello" {
		t.Fatalf("unexpected message %q", listed.Messages[0].Body)
	}
}

func TestPostReplySendsThroughGateway(t *testing.T) {
	env := newTestEnv()

	ingested, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	reply, err := env.svc.PostReply(context.Background(), ingested.Conversation.ConversationID, "how can I help?", false, "Agent Ana")
	if err != nil {
		t.Fatalf("PostReply error: %v", err)
	}

	if reply.Message.Direction != model.DirectionOutbound {
		t.Fatalf("unexpected direction %s", reply.Message.Direction)
	}
	if len(env.sender.requests) != 1 {
		t.Fatalf("expected 1 gateway send, got %d", len(env.sender.requests))
	}
	if env.sender.requests[0].Number != "5511999887766" {
		t.Fatalf("unexpected send target %s", env.sender.requests[0].Number)
	}
	if env.sender.requests[0].Text != "how can I help?" {
		t.Fatalf("unexpected send text %q", env.sender.requests[0].Text)
	}
}

func TestPostReplyInternalNoteStaysLocal(t *testing.T) {
	env := newTestEnv()

	ingested, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	reply, err := env.svc.PostReply(context.Background(), ingested.Conversation.ConversationID, "customer sounds upset", true, "Agent Ana")
	if err != nil {
		t.Fatalf("PostReply error: %v", err)
	}

	if !reply.Message.InternalNote {
		t.Fatal("expected internal note flag")
	}
	if len(env.sender.requests) != 0 {
		t.Fatal("internal note must never reach the gateway")
	}

	listed, err := env.svc.ListMessages(context.Background(), ingested.Conversation.ConversationID, 0)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(listed.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(listed.Messages))
	}
}

func TestPostReplyGatewayFailureKeepsMessage(t *testing.T) {
	env := newTestEnv()
	ingested, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	env.sender.err = errors.New(`{"status":500,"error":"instance disconnected"}`)

	_, err = env.svc.PostReply(context.Background(), ingested.Conversation.ConversationID, "reply", false, "Agent Ana")
	if err == nil {
		t.Fatal("expected gateway error")
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeGateway {
		t.Fatalf("expected gateway error code, got %v", err)
	}

	listed, err := env.svc.ListMessages(context.Background(), ingested.Conversation.ConversationID, 0)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(listed.Messages) != 2 {
		t.Fatalf("agent message must survive the failed send, got %d messages", len(listed.Messages))
	}
}

func TestPostReplyRejectsClosedTicket(t *testing.T) {
	env := newTestEnv()
	ingested, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if _, err := env.svc.SetStatus(context.Background(), ingested.Conversation.ConversationID, "cancelled"); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}

	_, err = env.svc.PostReply(context.Background(), ingested.Conversation.ConversationID, "too late", false, "Agent Ana")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestSetStatusReleasesOpenTicket(t *testing.T) {
	env := newTestEnv()
	ingested, err := env.svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	updated, err := env.svc.SetStatus(context.Background(), ingested.Conversation.ConversationID, "finalized")
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if updated.Status != model.TicketStatusFinalized {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if len(env.repo.openTickets) != 0 {
		t.Fatal("finalize must release the open-ticket lock")
	}

	if _, err := env.svc.SetStatus(context.Background(), ingested.Conversation.ConversationID, "in_progress"); err == nil {
		t.Fatal("expected transition from terminal status to fail")
	}
}

func TestSetStatusValidatesInput(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.SetStatus(context.Background(), "c-1", "archived")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = env.svc.SetStatus(context.Background(), "missing", "finalized")
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLastMessageTimestampAdvances(t *testing.T) {
	current := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepository()
	customers := customer.NewWithRepository(newCustomerMemoryRepository(), nil)
	svc := NewWithDependencies(repo, customers, nil, nil, func() time.Time { return current })

	first, err := svc.Ingest(context.Background(), inboundEvent("msg-1", "hello"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	current = current.Add(5 * time.Minute)
	second, err := svc.Ingest(context.Background(), inboundEvent("msg-2", "still there?"))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	if second.Conversation.LastMessageAt <= first.Conversation.LastMessageAt {
		t.Fatalf("lastMessageAt did not advance: %s -> %s", first.Conversation.LastMessageAt, second.Conversation.LastMessageAt)
	}
}
