package api

import (
	"context"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/recommend"
)

// Aggregator produces the three recommendation lists.
type Aggregator interface {
	Aggregate(ctx context.Context, userID string, f recommend.Filters) recommend.Recommendations
}

// RecommendService implements the RecommendService gRPC service.
type RecommendService struct {
	agg Aggregator
	me  func() (string, error)
}

func NewRecommendService(agg Aggregator, me func() (string, error)) *RecommendService {
	return &RecommendService{agg: agg, me: me}
}

func (s *RecommendService) GetRecommendations(ctx context.Context, req *collatzv1.GetRecommendationsRequest) (*collatzv1.GetRecommendationsResponse, error) {
	userID, err := s.me()
	if err != nil {
		return nil, toStatus("recommendations", err)
	}
	f := req.Filters
	recs := s.agg.Aggregate(ctx, userID, recommend.Filters{
		Location:        f.Location,
		JobType:         f.JobType,
		HackathonType:   f.HackathonType,
		Skills:          f.Skills,
		Categories:      f.Categories,
		TeamSize:        int(f.TeamSize),
		Difficulty:      f.Difficulty,
		ProjectCategory: f.ProjectCategory,
		HackathonOffset: int(f.HackathonOffset),
	})
	return &collatzv1.GetRecommendationsResponse{
		Jobs:       itemsToAPI(recs.Jobs),
		Hackathons: itemsToAPI(recs.Hackathons),
		Projects:   itemsToAPI(recs.Projects),
	}, nil
}

func itemsToAPI(items []recommend.Item) []collatzv1.Recommendation {
	out := make([]collatzv1.Recommendation, 0, len(items))
	for _, it := range items {
		out = append(out, collatzv1.Recommendation{
			ID:       it.ID,
			Title:    it.Title,
			Category: string(it.Category),
			Score:    it.Score,
		})
	}
	return out
}
