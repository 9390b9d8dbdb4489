package inbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
)

type participant struct {
	conv, user string
	deleted    bool
}

type fakeBackend struct {
	mu           sync.Mutex
	me           string
	users        map[string]supabase.User // by id
	convs        map[string]*supabase.Conversation
	convOrder    []string
	participants []*participant
	messages     map[string][]supabase.Message
	hackathons   map[string]supabase.Hackathon
	interest     map[string]bool
	created      int
	raceOnCreate bool // next create fails as if another client won
	searchCalls  []string
	beforeList   func() // runs after subscribe, before history is returned
}

func newFakeBackend(me string, users ...supabase.User) *fakeBackend {
	b := &fakeBackend{
		me:         me,
		users:      make(map[string]supabase.User),
		convs:      make(map[string]*supabase.Conversation),
		messages:   make(map[string][]supabase.Message),
		hackathons: make(map[string]supabase.Hackathon),
		interest:   make(map[string]bool),
	}
	for _, u := range users {
		b.users[u.ID] = u
	}
	return b
}

func (b *fakeBackend) CurrentUserID() (string, error) {
	if b.me == "" {
		return "", supabase.ErrNotAuthenticated
	}
	return b.me, nil
}

func (b *fakeBackend) UserByID(_ context.Context, id string) (*supabase.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return nil, supabase.ErrNotFound
	}
	return &u, nil
}

func (b *fakeBackend) UserByUsername(_ context.Context, username string) (*supabase.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, supabase.ErrNotFound
}

func (b *fakeBackend) SearchUsers(_ context.Context, q string, limit int) ([]supabase.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.searchCalls = append(b.searchCalls, q)
	var out []supabase.User
	for _, u := range b.users {
		if len(out) < limit && containsFold(u.Username, q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (b *fakeBackend) ParticipantConversationIDs(_ context.Context, userID string, includeDeleted bool) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, p := range b.participants {
		if p.user == userID && (includeDeleted || !p.deleted) {
			ids = append(ids, p.conv)
		}
	}
	return ids, nil
}

func (b *fakeBackend) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(conversationID, userID) != nil, nil
}

func (b *fakeBackend) find(conv, user string) *participant {
	for _, p := range b.participants {
		if p.conv == conv && p.user == user {
			return p
		}
	}
	return nil
}

func (b *fakeBackend) CreateConversation(_ context.Context, title, pairKey string) (*supabase.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.raceOnCreate {
		b.raceOnCreate = false
		winner := b.addConvLocked("Direct Chat", pairKey)
		return nil, fmt.Errorf("create conversation: %w", &supabase.APIError{Code: "23505", Message: "duplicate key " + winner.ID})
	}
	for _, c := range b.convs {
		if c.PairKey != nil && *c.PairKey == pairKey {
			return nil, &supabase.APIError{Code: "23505", Message: "duplicate key"}
		}
	}
	b.created++
	return b.addConvLocked(title, pairKey), nil
}

func (b *fakeBackend) addConvLocked(title, pairKey string) *supabase.Conversation {
	id := fmt.Sprintf("conv-%d", len(b.convs)+1)
	key := pairKey
	c := &supabase.Conversation{ID: id, Title: title, PairKey: &key}
	b.convs[id] = c
	b.convOrder = append(b.convOrder, id)
	return c
}

func (b *fakeBackend) ConversationByPairKey(_ context.Context, pairKey string) (*supabase.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.convOrder {
		c := b.convs[id]
		if c.PairKey != nil && *c.PairKey == pairKey {
			return c, nil
		}
	}
	return nil, supabase.ErrNotFound
}

func (b *fakeBackend) AddParticipants(_ context.Context, conversationID string, userIDs ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range userIDs {
		if b.find(conversationID, u) != nil {
			return &supabase.APIError{Code: "23505", Message: "duplicate participant"}
		}
	}
	for _, u := range userIDs {
		b.participants = append(b.participants, &participant{conv: conversationID, user: u})
	}
	return nil
}

func (b *fakeBackend) RestoreParticipant(_ context.Context, conversationID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p := b.find(conversationID, userID); p != nil {
		p.deleted = false
	}
	return nil
}

func (b *fakeBackend) SoftDeleteParticipant(_ context.Context, conversationID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p := b.find(conversationID, userID); p != nil {
		p.deleted = true
	}
	return nil
}

func (b *fakeBackend) ListConversations(ctx context.Context, userID string) ([]supabase.ConversationSummary, error) {
	ids, _ := b.ParticipantConversationIDs(ctx, userID, false)
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []supabase.ConversationSummary
	for _, id := range ids {
		s := supabase.ConversationSummary{Conversation: *b.convs[id]}
		for _, p := range b.participants {
			if p.conv == id && p.user != userID {
				s.OtherUserID = p.user
				s.OtherUsername = b.users[p.user].Username
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *fakeBackend) ListMessages(_ context.Context, conversationID string, _ int) ([]supabase.Message, error) {
	if b.beforeList != nil {
		b.beforeList()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]supabase.Message(nil), b.messages[conversationID]...), nil
}

func (b *fakeBackend) HackathonByID(_ context.Context, id string) (*supabase.Hackathon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hackathons[id]
	if !ok {
		return nil, supabase.ErrNotFound
	}
	return &h, nil
}

func (b *fakeBackend) InsertInterest(_ context.Context, userID, hackathonID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := userID + "/" + hackathonID
	if b.interest[key] {
		return &supabase.APIError{Code: "23505", Message: "duplicate interest"}
	}
	b.interest[key] = true
	return nil
}

func (b *fakeBackend) participantCount(conv string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.participants {
		if p.conv == conv {
			n++
		}
	}
	return n
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type fakeSub struct {
	conv   string
	rows   chan supabase.Message
	once   sync.Once
	closed chan struct{}
}

func (s *fakeSub) Rows() <-chan supabase.Message { return s.rows }

func (s *fakeSub) Close(context.Context) error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
}

func (f *fakeFeed) Subscribe(_ context.Context, conversationID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{conv: conversationID, rows: make(chan supabase.Message, 8), closed: make(chan struct{})}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeFeed) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

type fakeQueue struct {
	mu          sync.Mutex
	enqueued    []store.OutboxEntry
	requeued    []store.OutboxEntry
	discarded   []string
	undelivered []store.OutboxEntry
	err         error
}

func (q *fakeQueue) Enqueue(_ context.Context, e store.OutboxEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, e)
	return nil
}

func (q *fakeQueue) Requeue(_ context.Context, e store.OutboxEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.requeued = append(q.requeued, e)
	return nil
}

func (q *fakeQueue) Discard(_ context.Context, ref string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discarded = append(q.discarded, ref)
	return nil
}

func (q *fakeQueue) Undelivered(conversationID string) ([]store.OutboxEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.OutboxEntry
	for _, e := range q.undelivered {
		if e.ConversationID == conversationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *fakeQueue) last() store.OutboxEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued[len(q.enqueued)-1]
}
