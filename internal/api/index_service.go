package api

import (
	"context"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/embedding"
	"github.com/collatz-app/collatz/internal/jobs"
	"github.com/collatz-app/collatz/internal/profile"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Indexer fills missing embeddings.
type Indexer interface {
	RunAll(ctx context.Context, kinds ...embedding.Kind) ([]embedding.Progress, error)
}

// JobFetcher refreshes external jobs.
type JobFetcher interface {
	Run(ctx context.Context) (jobs.Result, error)
}

// Profiles reads profile status and records check-ins.
type Profiles interface {
	Status(ctx context.Context, userID string) (profile.Status, error)
	CheckIn(ctx context.Context, userID string) error
}

// IndexService implements the IndexService gRPC service.
type IndexService struct {
	indexer  Indexer
	fetcher  JobFetcher
	profiles Profiles
	me       func() (string, error)
}

// NewIndexService creates the service. indexer and fetcher may be nil when
// their providers are not configured.
func NewIndexService(indexer Indexer, fetcher JobFetcher, profiles Profiles, me func() (string, error)) *IndexService {
	return &IndexService{indexer: indexer, fetcher: fetcher, profiles: profiles, me: me}
}

func (s *IndexService) RunEmbeddings(ctx context.Context, req *collatzv1.RunEmbeddingsRequest) (*collatzv1.RunEmbeddingsResponse, error) {
	if s.indexer == nil {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "embedding provider not configured")
	}
	kinds := make([]embedding.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind, err := embedding.ParseKind(k)
		if err != nil {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		kinds = append(kinds, kind)
	}

	progress, err := s.indexer.RunAll(ctx, kinds...)
	resp := &collatzv1.RunEmbeddingsResponse{Results: make([]collatzv1.EmbeddingResult, 0, len(progress))}
	for _, p := range progress {
		resp.Results = append(resp.Results, collatzv1.EmbeddingResult{
			Kind:     string(p.Kind),
			Scanned:  int32(p.Scanned),
			Embedded: int32(p.Embedded),
			ZeroFill: int32(p.ZeroFill),
			Failed:   int32(p.Failed),
		})
	}
	if err != nil {
		return nil, toStatus("run embeddings", err)
	}
	return resp, nil
}

func (s *IndexService) FetchJobs(ctx context.Context, _ *collatzv1.FetchJobsRequest) (*collatzv1.FetchJobsResponse, error) {
	if s.fetcher == nil {
		return nil, toStatus("fetch jobs", jobs.ErrNotConfigured)
	}
	res, err := s.fetcher.Run(ctx)
	if err != nil {
		return nil, toStatus("fetch jobs", err)
	}
	return &collatzv1.FetchJobsResponse{
		Requests:  int32(res.Requests),
		Jobs:      int32(res.Jobs),
		Pruned:    res.Pruned,
		Exhausted: res.Exhausted,
	}, nil
}

func (s *IndexService) GetProfileStatus(ctx context.Context, _ *collatzv1.GetProfileStatusRequest) (*collatzv1.GetProfileStatusResponse, error) {
	userID, err := s.me()
	if err != nil {
		return nil, toStatus("profile", err)
	}
	st, err := s.profiles.Status(ctx, userID)
	if err != nil {
		return nil, toStatus("profile", err)
	}
	return &collatzv1.GetProfileStatusResponse{
		UserID:         userID,
		Username:       st.User.Username,
		Complete:       st.Completion.Complete,
		Missing:        st.Completion.Missing,
		CurrentStreak:  int32(st.CurrentStreak),
		BestStreak:     int32(st.BestStreak),
		CheckedInToday: st.CheckedInToday,
	}, nil
}

func (s *IndexService) CheckIn(ctx context.Context, _ *collatzv1.CheckInRequest) (*collatzv1.Empty, error) {
	userID, err := s.me()
	if err != nil {
		return nil, toStatus("check in", err)
	}
	if err := s.profiles.CheckIn(ctx, userID); err != nil {
		return nil, toStatus("check in", err)
	}
	return &collatzv1.Empty{}, nil
}
