package inbox

import (
	"context"
	"testing"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartChatCreatesOneConversationWithTwoParticipants(t *testing.T) {
	h := newHarness(t)

	conv, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)

	assert.Equal(t, 1, h.backend.created)
	assert.Equal(t, 2, h.backend.participantCount(conv.ID))
	assert.Equal(t, "bob", conv.OtherUsername)
	assert.Equal(t, "Direct Chat", conv.Title)
	assert.Equal(t, conv.ID, h.s.Active())
	assert.Equal(t, SubscribedToFeed, h.s.State())
}

func TestStartChatReusesSharedConversation(t *testing.T) {
	h := newHarness(t)
	first, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)

	second, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.backend.created)
	assert.Equal(t, 2, h.backend.participantCount(first.ID))
}

func TestStartChatFromOtherSideReuses(t *testing.T) {
	h := newHarness(t)
	conv, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)

	h.backend.me = bob.ID
	again, err := h.s.StartChatWith(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, 1, h.backend.created)
}

func TestStartChatUnknownUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.StartChatWith(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, "user not found", err.Error())
	assert.Equal(t, NoActiveConversation, h.s.State())
}

func TestStartChatWithSelf(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.StartChatWith(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrSelfChat)
}

func TestStartChatConcurrentCreationReusesWinner(t *testing.T) {
	h := newHarness(t)
	h.backend.raceOnCreate = true

	conv, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)

	winner, err := h.backend.ConversationByPairKey(context.Background(), supabase.PairKey(alice.ID, bob.ID))
	require.NoError(t, err)
	assert.Equal(t, winner.ID, conv.ID)
	assert.Equal(t, 2, h.backend.participantCount(conv.ID))
}

func TestDeleteConversationHidesForDeleterOnly(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)
	events, unsub := h.bus.Subscribe("inbox.conversation_deleted", 1)
	defer unsub()

	require.NoError(t, h.s.DeleteConversation(context.Background(), conv.ID))

	mine, err := h.s.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Empty(t, h.s.Active())
	assert.Equal(t, NoActiveConversation, h.s.State())

	h.backend.me = bob.ID
	theirs, err := h.s.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "alice", theirs[0].OtherUsername)

	evt := <-events
	assert.Equal(t, bus.KindConversationDeleted, evt.Kind)
}

func TestStartChatRestoresDeletedConversation(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)
	require.NoError(t, h.s.DeleteConversation(context.Background(), conv.ID))

	again, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	list, err := h.s.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].DisplayName())
}

func TestMarkInterest(t *testing.T) {
	h := newHarness(t)
	h.backend.hackathons["42"] = supabase.Hackathon{ID: "42", Title: "HackNight", UserID: bob.ID}
	h.backend.hackathons["7"] = supabase.Hackathon{ID: "7", Title: "Mine", UserID: alice.ID}

	conv, err := h.s.MarkInterest(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Interest: HackNight", conv.Title)

	q := h.queue.last()
	assert.Equal(t, conv.ID, q.ConversationID)
	p, ok := DecodePayload(q.Content).(HackathonInterestPayload)
	require.True(t, ok, "payload %q", q.Content)
	assert.Equal(t, supabase.FlexID("42"), p.HackathonID)
	assert.Equal(t, "alice", p.InterestedUsername)

	_, err = h.s.MarkInterest(context.Background(), "42")
	assert.ErrorIs(t, err, ErrAlreadyInterested)

	_, err = h.s.MarkInterest(context.Background(), "7")
	assert.ErrorIs(t, err, ErrOwnHackathon)

	_, err = h.s.MarkInterest(context.Background(), "404")
	assert.ErrorIs(t, err, ErrHackathonNotFound)
}

func TestMarkInterestInActiveConversationIsOptimistic(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)
	h.backend.hackathons["42"] = supabase.Hackathon{ID: "42", Title: "HackNight", UserID: bob.ID}

	got, err := h.s.MarkInterest(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, EntryPending, tl[0].State)
	assert.Equal(t, `Hey, I'm interested in your hackathon "HackNight"`, Render(tl[0].Payload))
}

func TestSearchContactsSkipsSelf(t *testing.T) {
	h := newHarness(t)
	got, err := h.s.SearchContacts(context.Background(), "", 5)
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, alice.ID, c.ID)
	}
	assert.Len(t, got, 2)
}
