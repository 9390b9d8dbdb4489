package api

import (
	"context"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/inbox"
)

func (s *InboxService) GetTimeline(_ context.Context, _ *collatzv1.GetTimelineRequest) (*collatzv1.GetTimelineResponse, error) {
	return s.timeline(), nil
}

func (s *InboxService) SetDraft(_ context.Context, req *collatzv1.SetDraftRequest) (*collatzv1.Empty, error) {
	s.inbox.SetDraft(req.Text)
	return &collatzv1.Empty{}, nil
}

func (s *InboxService) SendMessage(ctx context.Context, req *collatzv1.SendMessageRequest) (*collatzv1.SendMessageResponse, error) {
	entry, err := s.inbox.Send(ctx, req.Text)
	if err != nil {
		return nil, toStatus("send message", err)
	}
	return &collatzv1.SendMessageResponse{Entry: s.entryToAPI(entry)}, nil
}

func (s *InboxService) RetryMessage(ctx context.Context, req *collatzv1.RetryMessageRequest) (*collatzv1.Empty, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.inbox.Retry(ctx, req.TempID); err != nil {
		return nil, toStatus("retry message", err)
	}
	return &collatzv1.Empty{}, nil
}

func (s *InboxService) DiscardMessage(ctx context.Context, req *collatzv1.DiscardMessageRequest) (*collatzv1.Empty, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.inbox.Discard(ctx, req.TempID); err != nil {
		return nil, toStatus("discard message", err)
	}
	return &collatzv1.Empty{}, nil
}

func (s *InboxService) SearchMessages(_ context.Context, req *collatzv1.SearchMessagesRequest) (*collatzv1.SearchMessagesResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	results, err := s.db.SearchMessages(req.Query, req.ConversationID, int(req.Limit))
	if err != nil {
		return nil, toStatus("search messages", err)
	}

	resp := &collatzv1.SearchMessagesResponse{Results: make([]collatzv1.SearchHit, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, collatzv1.SearchHit{
			ConversationID:  r.Message.ConversationID,
			MessageID:       r.Message.RemoteID,
			SenderName:      r.Message.SenderName,
			Snippet:         r.Snippet,
			CreatedAtUnixMs: r.Message.CreatedAt,
		})
	}
	return resp, nil
}

func (s *InboxService) timeline() *collatzv1.GetTimelineResponse {
	entries := s.inbox.Timeline()
	resp := &collatzv1.GetTimelineResponse{
		ConversationID: s.inbox.Active(),
		State:          string(s.inbox.State()),
		Entries:        make([]collatzv1.TimelineEntry, 0, len(entries)),
		Draft:          s.inbox.Draft(),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, s.entryToAPI(e))
	}
	return resp
}

func (s *InboxService) entryToAPI(e inbox.Entry) collatzv1.TimelineEntry {
	me, _ := s.me()
	text := e.Content
	kind := "text"
	if e.Payload != nil {
		text = inbox.Render(e.Payload)
		kind = e.Payload.Kind()
	}
	return collatzv1.TimelineEntry{
		Key:             e.Key,
		ID:              e.ID,
		TempID:          e.TempID,
		ConversationID:  e.ConversationID,
		SenderID:        e.SenderID,
		SenderName:      e.SenderName,
		FromMe:          me != "" && e.SenderID == me,
		Text:            text,
		PayloadKind:     kind,
		State:           string(e.State),
		Error:           e.Error,
		CreatedAtUnixMs: e.CreatedAt.UnixMilli(),
	}
}
