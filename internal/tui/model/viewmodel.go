package model

import (
	"context"
	"sync"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/tui/client"
	"github.com/collatz-app/collatz/internal/tui/ui"
)

// ViewModel caches daemon state for the views and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client          *client.Client
	SessionStatus   *collatzv1.GetSessionStatusResponse
	Conversations   []collatzv1.Conversation
	Timeline        *collatzv1.GetTimelineResponse
	Recommendations *collatzv1.GetRecommendationsResponse
	Profile         *collatzv1.GetProfileStatusResponse
	Flash           *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadSessionStatus fetches current session status.
func (vm *ViewModel) LoadSessionStatus(ctx context.Context) error {
	resp, err := vm.client.Session.GetSessionStatus(ctx, &collatzv1.GetSessionStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.SessionStatus = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Login signs in through the daemon.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	_, err := vm.client.Session.Login(ctx, &collatzv1.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	return vm.LoadSessionStatus(ctx)
}

// Logout signs out and drops cached views of the old account.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if _, err := vm.client.Session.Logout(ctx, &collatzv1.LogoutRequest{}); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = nil
	vm.Timeline = nil
	vm.Recommendations = nil
	vm.Profile = nil
	vm.mu.Unlock()
	return vm.LoadSessionStatus(ctx)
}

// LoadConversations fetches the conversation list. refresh forces a backend reload.
func (vm *ViewModel) LoadConversations(ctx context.Context, refresh bool) error {
	resp, err := vm.client.Inbox.ListConversations(ctx, &collatzv1.ListConversationsRequest{Refresh: refresh})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenConversation makes id the daemon's active conversation.
func (vm *ViewModel) OpenConversation(ctx context.Context, id string) error {
	resp, err := vm.client.Inbox.OpenConversation(ctx, &collatzv1.OpenConversationRequest{ConversationID: id})
	if err != nil {
		return err
	}
	vm.setTimeline(resp)
	return nil
}

// CloseConversation releases the active conversation.
func (vm *ViewModel) CloseConversation(ctx context.Context) error {
	_, err := vm.client.Inbox.CloseConversation(ctx, &collatzv1.Empty{})
	vm.mu.Lock()
	vm.Timeline = nil
	vm.mu.Unlock()
	return err
}

// LoadTimeline refetches the active timeline.
func (vm *ViewModel) LoadTimeline(ctx context.Context) error {
	resp, err := vm.client.Inbox.GetTimeline(ctx, &collatzv1.GetTimelineRequest{})
	if err != nil {
		return err
	}
	vm.setTimeline(resp)
	return nil
}

func (vm *ViewModel) setTimeline(tl *collatzv1.GetTimelineResponse) {
	vm.mu.Lock()
	vm.Timeline = tl
	vm.mu.Unlock()
	vm.signalRefresh()
}

// StartChat finds or creates the direct conversation with username and opens it.
func (vm *ViewModel) StartChat(ctx context.Context, username string) (*collatzv1.Conversation, error) {
	resp, err := vm.client.Inbox.StartChat(ctx, &collatzv1.StartChatRequest{Username: username})
	if err != nil {
		return nil, err
	}
	if err := vm.OpenConversation(ctx, resp.Conversation.ID); err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}

// SendText sends a message to the active conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	if _, err := vm.client.Inbox.SendMessage(ctx, &collatzv1.SendMessageRequest{Text: text}); err != nil {
		return err
	}
	return vm.LoadTimeline(ctx)
}

// SendImage uploads path and sends it to the active conversation.
func (vm *ViewModel) SendImage(ctx context.Context, path, caption string) error {
	if _, err := vm.client.Inbox.SendImage(ctx, &collatzv1.SendImageRequest{Path: path, Caption: caption}); err != nil {
		return err
	}
	return vm.LoadTimeline(ctx)
}

// SetDraft stores the composer text for the active conversation.
func (vm *ViewModel) SetDraft(ctx context.Context, text string) error {
	_, err := vm.client.Inbox.SetDraft(ctx, &collatzv1.SetDraftRequest{Text: text})
	return err
}

// RetryMessage resends a failed entry.
func (vm *ViewModel) RetryMessage(ctx context.Context, tempID int64) error {
	if _, err := vm.client.Inbox.RetryMessage(ctx, &collatzv1.RetryMessageRequest{TempID: tempID}); err != nil {
		return err
	}
	return vm.LoadTimeline(ctx)
}

// DiscardMessage drops a failed entry.
func (vm *ViewModel) DiscardMessage(ctx context.Context, tempID int64) error {
	if _, err := vm.client.Inbox.DiscardMessage(ctx, &collatzv1.DiscardMessageRequest{TempID: tempID}); err != nil {
		return err
	}
	return vm.LoadTimeline(ctx)
}

// DeleteConversation removes a conversation and reloads the list.
func (vm *ViewModel) DeleteConversation(ctx context.Context, id string) error {
	if _, err := vm.client.Inbox.DeleteConversation(ctx, &collatzv1.DeleteConversationRequest{ConversationID: id}); err != nil {
		return err
	}
	return vm.LoadConversations(ctx, false)
}

// MarkInterest messages a hackathon creator and opens that conversation.
func (vm *ViewModel) MarkInterest(ctx context.Context, hackathonID string) (*collatzv1.Conversation, error) {
	resp, err := vm.client.Inbox.MarkInterest(ctx, &collatzv1.MarkInterestRequest{HackathonID: hackathonID})
	if err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}

// SearchMessages performs a full-text query over cached messages.
func (vm *ViewModel) SearchMessages(ctx context.Context, query string) ([]collatzv1.SearchHit, error) {
	resp, err := vm.client.Inbox.SearchMessages(ctx, &collatzv1.SearchMessagesRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SearchContacts implements inbox.Searcher over the daemon's user directory.
func (vm *ViewModel) SearchContacts(ctx context.Context, q string, limit int) ([]inbox.Contact, error) {
	resp, err := vm.client.Inbox.SearchUsers(ctx, &collatzv1.SearchUsersRequest{Query: q, Limit: int32(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]inbox.Contact, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, inbox.Contact{ID: u.ID, Username: u.Username})
	}
	return out, nil
}

// LoadRecommendations fetches the three recommendation lists.
func (vm *ViewModel) LoadRecommendations(ctx context.Context, filters collatzv1.RecommendationFilters) error {
	resp, err := vm.client.Recommend.GetRecommendations(ctx, &collatzv1.GetRecommendationsRequest{Filters: filters})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Recommendations = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadProfile fetches profile completeness and streak.
func (vm *ViewModel) LoadProfile(ctx context.Context) error {
	resp, err := vm.client.Index.GetProfileStatus(ctx, &collatzv1.GetProfileStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Profile = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// CheckIn records today's check-in and reloads the profile.
func (vm *ViewModel) CheckIn(ctx context.Context) error {
	if _, err := vm.client.Index.CheckIn(ctx, &collatzv1.CheckInRequest{}); err != nil {
		return err
	}
	return vm.LoadProfile(ctx)
}

// WatchTimeline streams timeline events until ctx ends or the stream fails.
func (vm *ViewModel) WatchTimeline(ctx context.Context, fn func(*collatzv1.TimelineEvent)) error {
	stream, err := vm.client.Inbox.WatchTimeline(ctx, &collatzv1.WatchTimelineRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		fn(evt)
	}
}

// WatchStatus streams daemon state changes until ctx ends or the stream fails.
func (vm *ViewModel) WatchStatus(ctx context.Context, fn func(*collatzv1.StatusEvent)) error {
	stream, err := vm.client.Session.WatchSessionStatus(ctx, &collatzv1.WatchSessionStatusRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		fn(evt)
	}
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []collatzv1.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Conversations
}

// GetTimeline returns a snapshot of the active timeline, nil when none is open.
func (vm *ViewModel) GetTimeline() *collatzv1.GetTimelineResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Timeline
}

// GetSessionStatus returns a snapshot of session status.
func (vm *ViewModel) GetSessionStatus() *collatzv1.GetSessionStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.SessionStatus
}

// GetRecommendations returns the last fetched recommendations.
func (vm *ViewModel) GetRecommendations() *collatzv1.GetRecommendationsResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Recommendations
}

// GetProfile returns the last fetched profile status.
func (vm *ViewModel) GetProfile() *collatzv1.GetProfileStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Profile
}

// ConversationByID looks up a listed conversation.
func (vm *ViewModel) ConversationByID(id string) (collatzv1.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return collatzv1.Conversation{}, false
}
