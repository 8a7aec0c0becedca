package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"otomart/internal/domain/entity"
	ws "otomart/internal/infrastructure/websocket"
	apperrors "otomart/pkg/errors"
)

// fakeStore is a mutex-guarded in-memory stand-in for the Postgres adapter,
// shared by the per-interface fakes below. It mirrors the store's contract:
// monotonic ids, one private thread per pair, guarded status advancement.
type fakeStore struct {
	mu sync.Mutex

	users    map[int64]*entity.User
	vehicles map[int64]*entity.Vehicle
	orders   map[int64]*entity.Order

	conversations map[int64]*entity.Conversation
	participants  map[int64][]*entity.Participant // conversationID -> rows
	messages      map[int64]*entity.Message
	receipts      []*entity.ReadReceipt
	links         map[int64]*entity.OrderConversationLink // orderID -> link

	nextConvID    int64
	nextMessageID int64
	nextRowID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[int64]*entity.User),
		vehicles:      make(map[int64]*entity.Vehicle),
		orders:        make(map[int64]*entity.Order),
		conversations: make(map[int64]*entity.Conversation),
		participants:  make(map[int64][]*entity.Participant),
		messages:      make(map[int64]*entity.Message),
		links:         make(map[int64]*entity.OrderConversationLink),
	}
}

func (s *fakeStore) addUser(id int64, username string) {
	s.users[id] = &entity.User{ID: id, Username: username}
}

// --- ConversationRepository ---

type fakeConversationRepo struct{ s *fakeStore }

func (r *fakeConversationRepo) CreatePrivate(_ context.Context, conv *entity.Conversation, participants []*entity.Participant) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.conversations {
		if existing.Type == entity.ConversationTypePrivate &&
			existing.PairKey == conv.PairKey &&
			existing.Status != entity.ConversationStatusDeleted {
			return apperrors.New("CONFLICT", "Conversation already exists for this pair", 409, nil)
		}
	}

	s.nextConvID++
	conv.ID = s.nextConvID
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt

	stored := *conv
	s.conversations[conv.ID] = &stored

	for _, p := range participants {
		s.nextRowID++
		p.ID = s.nextRowID
		p.ConversationID = conv.ID
		p.IsActive = true
		p.JoinedAt = conv.CreatedAt
		row := *p
		s.participants[conv.ID] = append(s.participants[conv.ID], &row)
	}
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id int64) (*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.NotFound("Conversation", nil)
	}
	copied := *conv
	return &copied, nil
}

func (r *fakeConversationRepo) GetPrivateByPairKey(_ context.Context, pairKey string) (*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, conv := range r.s.conversations {
		if conv.Type == entity.ConversationTypePrivate &&
			conv.PairKey == pairKey &&
			conv.Status != entity.ConversationStatusDeleted {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("Conversation", nil)
}

func (r *fakeConversationRepo) ListByUserID(_ context.Context, userID int64, status string, limit, offset int) ([]*entity.Conversation, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*entity.Conversation
	for _, conv := range r.s.conversations {
		if status == "" && conv.Status == entity.ConversationStatusDeleted {
			continue
		}
		if status != "" && conv.Status != status {
			continue
		}
		for _, p := range r.s.participants[conv.ID] {
			if p.UserID == userID && p.IsActive {
				copied := *conv
				matched = append(matched, &copied)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastMessageAt.After(matched[j].LastMessageAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *fakeConversationRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return apperrors.NotFound("Conversation", nil)
	}
	conv.Status = status
	conv.UpdatedAt = time.Now()
	return nil
}

func (r *fakeConversationRepo) UpdateLastMessage(_ context.Context, id int64, preview string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return apperrors.NotFound("Conversation", nil)
	}
	conv.LastMessage = preview
	conv.LastMessageAt = at
	return nil
}

func (r *fakeConversationRepo) ListParticipants(_ context.Context, conversationID int64) ([]*entity.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.participants[conversationID]
	out := make([]*entity.Participant, len(rows))
	for i, p := range rows {
		copied := *p
		out[i] = &copied
	}
	return out, nil
}

func (r *fakeConversationRepo) GetActiveParticipant(_ context.Context, conversationID, userID int64) (*entity.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants[conversationID] {
		if p.UserID == userID && p.IsActive {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("Participant", nil)
}

// --- MessageRepository ---

type fakeMessageRepo struct{ s *fakeStore }

func (r *fakeMessageRepo) CreateWithReceipts(_ context.Context, message *entity.Message, recipientIDs []int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	message.ID = s.nextMessageID
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt

	stored := *message
	s.messages[message.ID] = &stored

	for _, userID := range recipientIDs {
		s.nextRowID++
		s.receipts = append(s.receipts, &entity.ReadReceipt{
			ID:             s.nextRowID,
			MessageID:      message.ID,
			ConversationID: message.ConversationID,
			UserID:         userID,
		})
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id int64) (*entity.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	message, ok := r.s.messages[id]
	if !ok {
		return nil, apperrors.NotFound("Message", nil)
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*entity.Message
	for _, message := range r.s.messages {
		if message.ConversationID == conversationID {
			copied := *message
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *fakeMessageRepo) AdvanceStatus(_ context.Context, messageID int64, status string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	message, ok := r.s.messages[messageID]
	if !ok {
		return false, apperrors.NotFound("Message", nil)
	}
	if entity.StatusRank(status) <= entity.StatusRank(message.Status) {
		return false, nil
	}
	message.Status = status
	message.UpdatedAt = time.Now()
	return true, nil
}

// --- ReadReceiptRepository ---

type fakeReceiptRepo struct{ s *fakeStore }

func (r *fakeReceiptRepo) MarkRead(_ context.Context, conversationID, userID, uptoMessageID int64, at time.Time) ([]int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked []int64
	for _, receipt := range s.receipts {
		if receipt.ConversationID != conversationID || receipt.UserID != userID || receipt.ReadAt != nil {
			continue
		}
		if uptoMessageID > 0 && receipt.MessageID > uptoMessageID {
			continue
		}
		stamp := at
		receipt.ReadAt = &stamp
		marked = append(marked, receipt.MessageID)

		if message, ok := s.messages[receipt.MessageID]; ok {
			if entity.StatusRank(entity.MessageStatusRead) > entity.StatusRank(message.Status) {
				message.Status = entity.MessageStatusRead
			}
		}
	}
	sort.Slice(marked, func(i, j int) bool { return marked[i] < marked[j] })
	return marked, nil
}

func (r *fakeReceiptRepo) UnreadCount(_ context.Context, userID, conversationID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.unreadLocked(userID, conversationID), nil
}

func (r *fakeReceiptRepo) unreadLocked(userID, conversationID int64) int64 {
	var count int64
	for _, receipt := range r.s.receipts {
		if receipt.ConversationID == conversationID && receipt.UserID == userID && receipt.ReadAt == nil {
			count++
		}
	}
	return count
}

func (r *fakeReceiptRepo) UnreadCounts(_ context.Context, userID int64, conversationIDs []int64) (map[int64]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]int64, len(conversationIDs))
	for _, id := range conversationIDs {
		out[id] = r.unreadLocked(userID, id)
	}
	return out, nil
}

func (r *fakeReceiptRepo) UnreadTotal(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, receipt := range r.s.receipts {
		if receipt.UserID != userID || receipt.ReadAt != nil {
			continue
		}
		conv, ok := r.s.conversations[receipt.ConversationID]
		if !ok || conv.Status != entity.ConversationStatusActive {
			continue
		}
		total++
	}
	return total, nil
}

// --- marketplace repositories ---

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("User", nil)
	}
	copied := *user
	return &copied, nil
}

type fakeVehicleRepo struct{ s *fakeStore }

func (r *fakeVehicleRepo) GetByID(_ context.Context, id int64) (*entity.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	vehicle, ok := r.s.vehicles[id]
	if !ok {
		return nil, apperrors.NotFound("Vehicle", nil)
	}
	copied := *vehicle
	return &copied, nil
}

type fakeOrderRepo struct{ s *fakeStore }

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("Order", nil)
	}
	copied := *order
	return &copied, nil
}

type fakeLinkRepo struct{ s *fakeStore }

func (r *fakeLinkRepo) GetByOrderID(_ context.Context, orderID int64) (*entity.OrderConversationLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	link, ok := r.s.links[orderID]
	if !ok {
		return nil, apperrors.NotFound("Order link", nil)
	}
	copied := *link
	return &copied, nil
}

func (r *fakeLinkRepo) Create(_ context.Context, link *entity.OrderConversationLink) (*entity.OrderConversationLink, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.links[link.OrderID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	for _, existing := range s.links {
		if existing.ConversationID == link.ConversationID {
			return nil, false, apperrors.New("CONFLICT", "Conversation is already linked to another order", 409, nil)
		}
	}

	s.nextRowID++
	link.ID = s.nextRowID
	link.CreatedAt = time.Now()
	stored := *link
	s.links[link.OrderID] = &stored
	copied := stored
	return &copied, true, nil
}

// --- publisher ---

type capturedEvent struct {
	kind           string
	conversationID int64
	originUserID   int64
	userIDs        []int64
	data           interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *fakePublisher) PublishToUsers(userIDs []int64, originUserID int64, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{
		kind:           event.Type,
		conversationID: event.ConversationID,
		originUserID:   originUserID,
		userIDs:        userIDs,
		data:           event.Data,
	})
}

func (p *fakePublisher) PublishToConversation(conversationID, originUserID int64, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{
		kind:           event.Type,
		conversationID: conversationID,
		originUserID:   originUserID,
		data:           event.Data,
	})
}

func (p *fakePublisher) byKind(kind string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
