package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/categorizer/internal/domain"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var ErrJobNotFound = errors.New("job not found")

// JobStore keeps the status of asynchronous categorization jobs.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*domain.JobStatus, error)
	Set(ctx context.Context, status *domain.JobStatus) error
}

type redisJobStore struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

// NewRedisJobStore stores statuses under categorizer:job:<id>. Entries expire
// ttl after their last update; zero keeps them forever.
func NewRedisJobStore(redisClient *redis.Client, ttl time.Duration) JobStore {
	return &redisJobStore{
		redisClient: redisClient,
		keyPrefix:   "categorizer:job:",
		ttl:         ttl,
	}
}

func (s *redisJobStore) Get(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	var status domain.JobStatus
	if err := json.Unmarshal(val, &status); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &status, nil
}

func (s *redisJobStore) Set(ctx context.Context, status *domain.JobStatus) error {
	status.UpdatedAt = time.Now().UTC()

	val, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", status.ID, err)
	}

	if err := s.redisClient.Set(ctx, s.keyPrefix+status.ID, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set job %s: %w", status.ID, err)
	}
	return nil
}
