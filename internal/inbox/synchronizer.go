// Package inbox keeps the active conversation's timeline consistent across
// the optimistic send path, the outbox acknowledgement path and the
// realtime feed. Every message is rendered exactly once whatever order
// those three deliver in.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the remote conversation, message and directory store.
type Backend interface {
	CurrentUserID() (string, error)
	UserByID(ctx context.Context, id string) (*supabase.User, error)
	UserByUsername(ctx context.Context, username string) (*supabase.User, error)
	SearchUsers(ctx context.Context, q string, limit int) ([]supabase.User, error)
	ParticipantConversationIDs(ctx context.Context, userID string, includeDeleted bool) ([]string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	CreateConversation(ctx context.Context, title, pairKey string) (*supabase.Conversation, error)
	ConversationByPairKey(ctx context.Context, pairKey string) (*supabase.Conversation, error)
	AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error
	RestoreParticipant(ctx context.Context, conversationID, userID string) error
	SoftDeleteParticipant(ctx context.Context, conversationID, userID string) error
	ListConversations(ctx context.Context, userID string) ([]supabase.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]supabase.Message, error)
	HackathonByID(ctx context.Context, id string) (*supabase.Hackathon, error)
	InsertInterest(ctx context.Context, userID, hackathonID string) error
}

// Feed opens realtime subscriptions scoped to one conversation.
type Feed interface {
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// Subscription delivers inserted message rows until closed. Rows is
// closed after Close or when the feed goes away.
type Subscription interface {
	Rows() <-chan supabase.Message
	Close(ctx context.Context) error
}

// Queue performs authoritative writes in the background and reports
// outcomes back through Delivered and Failed.
type Queue interface {
	Enqueue(ctx context.Context, e store.OutboxEntry) error
	Requeue(ctx context.Context, e store.OutboxEntry) error
	Discard(ctx context.Context, clientRef string) error
	Undelivered(conversationID string) ([]store.OutboxEntry, error)
}

// Options tunes a Synchronizer.
type Options struct {
	HistoryLimit int
	Clock        func() time.Time
}

// Synchronizer owns the active conversation: its feed subscription, its
// timeline and the pending set of optimistic sends.
type Synchronizer struct {
	backend Backend
	feed    Feed
	queue   Queue
	bus     *bus.Bus
	logger  *zap.Logger
	opts    Options

	mu       sync.Mutex
	state    State
	active   string
	sub      Subscription
	stopPump context.CancelFunc
	pumpDone chan struct{}
	timeline []Entry
	ids      map[string]struct{} // server ids present in the timeline
	pending  map[int64]string    // temp id -> client ref, awaiting ack
	refs     map[string]int64    // client ref -> temp id, pending or failed
	lastTemp int64
	draft    string
}

// New creates a Synchronizer in NoActiveConversation.
func New(backend Backend, feed Feed, queue Queue, b *bus.Bus, logger *zap.Logger, opts Options) *Synchronizer {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Synchronizer{
		backend: backend,
		feed:    feed,
		queue:   queue,
		bus:     b,
		logger:  logger.Named("inbox"),
		opts:    opts,
		state:   NoActiveConversation,
	}
	s.resetLocked()
	return s
}

func (s *Synchronizer) resetLocked() {
	s.timeline = nil
	s.ids = make(map[string]struct{})
	s.pending = make(map[int64]string)
	s.refs = make(map[string]int64)
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the open conversation id, "" when none.
func (s *Synchronizer) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Timeline returns a snapshot of the active conversation's entries.
func (s *Synchronizer) Timeline() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// PendingCount returns the size of the pending set.
func (s *Synchronizer) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Draft returns the compose buffer.
func (s *Synchronizer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the compose buffer.
func (s *Synchronizer) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

func (s *Synchronizer) emit(kind string, payload any) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}

// Open makes conversationID the active conversation. The previous feed is
// torn down before the new one is subscribed, then history is merged
// under whatever the feed already delivered.
func (s *Synchronizer) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.active = conversationID
	s.state = ConversationOpen
	s.resetLocked()
	s.draft = ""
	s.mu.Unlock()

	s.stopFeed(ctx)

	sub, err := s.feed.Subscribe(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", conversationID, err)
	}
	if !s.startPump(conversationID, sub) {
		_ = sub.Close(ctx)
		return nil
	}

	history, err := s.backend.ListMessages(ctx, conversationID, s.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	var undelivered []store.OutboxEntry
	if s.queue != nil {
		undelivered, err = s.queue.Undelivered(conversationID)
		if err != nil {
			s.logger.Warn("load undelivered messages", zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.active != conversationID {
		s.mu.Unlock()
		return nil
	}
	s.mergeHistoryLocked(conversationID, history, undelivered)
	s.mu.Unlock()

	s.emit(bus.KindConversationOpened, conversationID)
	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: conversationID})
	return nil
}

// startPump wires sub to the timeline if conversationID is still active.
func (s *Synchronizer) startPump(conversationID string, sub Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != conversationID || s.state == Closed || s.sub != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.sub = sub
	s.stopPump = cancel
	s.pumpDone = done
	s.state = SubscribedToFeed

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case row, ok := <-sub.Rows():
				if !ok {
					return
				}
				s.HandleFeedRow(row)
			}
		}
	}()
	return true
}

// stopFeed unsubscribes the current feed and waits for its pump to exit.
func (s *Synchronizer) stopFeed(ctx context.Context) {
	s.mu.Lock()
	sub, cancel, done := s.sub, s.stopPump, s.pumpDone
	s.sub, s.stopPump, s.pumpDone = nil, nil, nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Close(ctx); err != nil {
		s.logger.Warn("unsubscribe feed", zap.Error(err))
	}
	cancel()
	<-done
}

func (s *Synchronizer) mergeHistoryLocked(conversationID string, history []supabase.Message, undelivered []store.OutboxEntry) {
	merged := make([]Entry, 0, len(history)+len(s.timeline)+len(undelivered))
	ids := make(map[string]struct{}, len(history))
	refs := make(map[string]struct{})
	for _, m := range history {
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		if r := m.Ref(); r != "" {
			refs[r] = struct{}{}
		}
		merged = append(merged, entryFromMessage(m))
	}
	// Rows delivered by the feed while history was loading.
	for _, e := range s.timeline {
		if e.ID != "" {
			if _, dup := ids[e.ID]; dup {
				continue
			}
			ids[e.ID] = struct{}{}
		}
		if e.ClientRef != "" {
			refs[e.ClientRef] = struct{}{}
		}
		merged = append(merged, e)
	}
	// Sends that have not been confirmed yet, from this or a previous run.
	for _, o := range undelivered {
		if _, done := refs[o.ClientRef]; done {
			continue
		}
		if _, present := s.refs[o.ClientRef]; present {
			continue
		}
		state := EntryPending
		if o.Status == store.OutboxFailed {
			state = EntryFailed
		}
		merged = append(merged, Entry{
			Key:            tempKey(o.TempID),
			TempID:         o.TempID,
			ClientRef:      o.ClientRef,
			ConversationID: conversationID,
			SenderID:       o.SenderID,
			Content:        o.Content,
			Payload:        DecodePayload(o.Content),
			CreatedAt:      time.UnixMilli(o.CreatedAt),
			State:          state,
			Error:          o.ErrorMessage,
		})
		s.refs[o.ClientRef] = o.TempID
		if state == EntryPending {
			s.pending[o.TempID] = o.ClientRef
		}
		if o.TempID > s.lastTemp {
			s.lastTemp = o.TempID
		}
	}
	s.timeline = merged
	s.ids = ids
}

func entryFromMessage(m supabase.Message) Entry {
	return Entry{
		Key:            "m:" + m.ID,
		ID:             m.ID,
		ClientRef:      m.Ref(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName(),
		Content:        m.Content,
		Payload:        DecodePayload(m.Content),
		CreatedAt:      m.CreatedAt.Time,
		State:          EntrySent,
	}
}

func tempKey(id int64) string { return "t:" + strconv.FormatInt(id, 10) }

// nextTempIDLocked returns a clock-based id strictly greater than every
// id handed out before, even within one millisecond.
func (s *Synchronizer) nextTempIDLocked() int64 {
	id := s.opts.Clock().UnixMilli()
	if id <= s.lastTemp {
		id = s.lastTemp + 1
	}
	s.lastTemp = id
	return id
}

func (s *Synchronizer) indexOfTempLocked(tempID int64) int {
	for i := range s.timeline {
		if s.timeline[i].TempID == tempID {
			return i
		}
	}
	return -1
}

// HandleFeedRow applies one realtime row. Rows for other conversations and
// rows already rendered are dropped; a row carrying the client ref of a
// local send reconciles that entry in place. Reports whether the timeline
// changed.
func (s *Synchronizer) HandleFeedRow(m supabase.Message) bool {
	s.mu.Lock()
	if m.ConversationID != s.active || s.state == Closed {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.ids[m.ID]; dup {
		s.mu.Unlock()
		return false
	}

	reconciled := false
	if ref := m.Ref(); ref != "" {
		if tempID, ok := s.refs[ref]; ok {
			if i := s.indexOfTempLocked(tempID); i >= 0 {
				e := &s.timeline[i]
				e.ID = m.ID
				e.State = EntrySent
				e.Error = ""
				if !m.CreatedAt.IsZero() {
					e.CreatedAt = m.CreatedAt.Time
				}
				reconciled = true
			}
			delete(s.pending, tempID)
			delete(s.refs, ref)
		}
	}
	if !reconciled {
		s.timeline = append(s.timeline, entryFromMessage(m))
	}
	s.ids[m.ID] = struct{}{}
	s.mu.Unlock()

	s.emit(bus.KindFeedMessage, m)
	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: m.ConversationID})
	return true
}

// Send appends an optimistic entry, clears the draft and hands the write
// to the queue. The returned entry is pending, or failed when the queue
// rejected it.
func (s *Synchronizer) Send(ctx context.Context, content string) (Entry, error) {
	if strings.TrimSpace(content) == "" {
		return Entry{}, ErrEmptyMessage
	}
	me, err := s.backend.CurrentUserID()
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return Entry{}, ErrClosed
	}
	if s.active == "" {
		s.mu.Unlock()
		return Entry{}, ErrNoActiveConversation
	}
	tempID := s.nextTempIDLocked()
	e := Entry{
		Key:            tempKey(tempID),
		TempID:         tempID,
		ClientRef:      uuid.NewString(),
		ConversationID: s.active,
		SenderID:       me,
		Content:        content,
		Payload:        DecodePayload(content),
		CreatedAt:      s.opts.Clock(),
		State:          EntryPending,
	}
	s.timeline = append(s.timeline, e)
	s.pending[tempID] = e.ClientRef
	s.refs[e.ClientRef] = tempID
	s.draft = ""
	s.mu.Unlock()

	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: e.ConversationID})

	err = s.queue.Enqueue(ctx, store.OutboxEntry{
		ClientRef:      e.ClientRef,
		TempID:         e.TempID,
		ConversationID: e.ConversationID,
		SenderID:       me,
		Content:        content,
	})
	if err != nil {
		s.Failed(e.ClientRef, err)
		e.State = EntryFailed
		e.Error = err.Error()
		return e, fmt.Errorf("queue message: %w", err)
	}
	s.emit(bus.KindMessageQueued, e.ClientRef)
	return e, nil
}

// Delivered records the authoritative row for a local send. Implements
// outbox.Observer.
func (s *Synchronizer) Delivered(clientRef string, m *supabase.Message) {
	s.mu.Lock()
	tempID, ok := s.refs[clientRef]
	if !ok {
		// Already reconciled by the feed, or not in this conversation.
		s.mu.Unlock()
		return
	}
	delete(s.refs, clientRef)
	delete(s.pending, tempID)

	i := s.indexOfTempLocked(tempID)
	if i >= 0 {
		if _, dup := s.ids[m.ID]; dup {
			// The feed delivered the row without a client ref first.
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
		} else {
			e := &s.timeline[i]
			e.ID = m.ID
			e.State = EntrySent
			e.Error = ""
			if !m.CreatedAt.IsZero() {
				e.CreatedAt = m.CreatedAt.Time
			}
			s.ids[m.ID] = struct{}{}
		}
	}
	conv := s.active
	s.mu.Unlock()

	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: conv})
}

// Failed marks a pending send failed. Its client ref stays known so a
// later feed row or a retry can still reconcile it. Implements
// outbox.Observer.
func (s *Synchronizer) Failed(clientRef string, cause error) {
	s.mu.Lock()
	tempID, ok := s.refs[clientRef]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, pending := s.pending[tempID]; !pending {
		s.mu.Unlock()
		return
	}
	delete(s.pending, tempID)
	if i := s.indexOfTempLocked(tempID); i >= 0 {
		s.timeline[i].State = EntryFailed
		if cause != nil {
			s.timeline[i].Error = cause.Error()
		}
	}
	conv := s.active
	s.mu.Unlock()

	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: conv})
}

func (s *Synchronizer) failedEntry(tempID int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfTempLocked(tempID)
	if i < 0 {
		return Entry{}, ErrEntryNotFound
	}
	e := s.timeline[i]
	if e.State != EntryFailed {
		return Entry{}, fmt.Errorf("entry %d is %s, not failed", tempID, e.State)
	}
	return e, nil
}

// Retry re-queues a failed entry.
func (s *Synchronizer) Retry(ctx context.Context, tempID int64) error {
	e, err := s.failedEntry(tempID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOfTempLocked(tempID); i >= 0 {
		s.timeline[i].State = EntryPending
		s.timeline[i].Error = ""
	}
	s.pending[tempID] = e.ClientRef
	s.refs[e.ClientRef] = tempID
	s.mu.Unlock()
	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: e.ConversationID})

	err = s.queue.Requeue(ctx, store.OutboxEntry{
		ClientRef:      e.ClientRef,
		TempID:         e.TempID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		Content:        e.Content,
	})
	if err != nil {
		s.Failed(e.ClientRef, err)
		return fmt.Errorf("requeue message: %w", err)
	}
	return nil
}

// Discard removes a failed entry from the timeline and the outbox.
func (s *Synchronizer) Discard(ctx context.Context, tempID int64) error {
	e, err := s.failedEntry(tempID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOfTempLocked(tempID); i >= 0 {
		s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
	}
	delete(s.refs, e.ClientRef)
	delete(s.pending, tempID)
	s.mu.Unlock()
	s.emit(bus.KindTimelineChanged, TimelineChanged{ConversationID: e.ConversationID})

	if err := s.queue.Discard(ctx, e.ClientRef); err != nil {
		return fmt.Errorf("discard message: %w", err)
	}
	return nil
}

// CloseConversation tears down the feed and returns to NoActiveConversation.
func (s *Synchronizer) CloseConversation(ctx context.Context) {
	s.stopFeed(ctx)
	s.mu.Lock()
	if s.state != Closed {
		s.state = NoActiveConversation
	}
	s.active = ""
	s.resetLocked()
	s.mu.Unlock()
}

// Close tears down the feed. The Synchronizer is unusable afterwards.
func (s *Synchronizer) Close(ctx context.Context) {
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	s.stopFeed(ctx)

	s.mu.Lock()
	s.active = ""
	s.resetLocked()
	s.mu.Unlock()
}

func isNotFound(err error) bool {
	return errors.Is(err, supabase.ErrNotFound)
}
