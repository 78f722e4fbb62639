package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/domain/task"
	"marketplace/categorizer/internal/queue"
	"marketplace/categorizer/internal/repository"
	"marketplace/categorizer/internal/state"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// JobService runs categorizations asynchronously over Redis streams.
type JobService struct {
	resolver    *Resolver
	queue       queue.Queue
	jobs        state.JobStore
	repository  repository.AssignmentRepository
	groupName   string
	minIdleTime time.Duration
	maxRetries  int
}

const defaultMinIdleTime = 120 * time.Second

// NewJobService wires the job pipeline. repository may be nil, in which case
// results live only in the job store. A non-positive minIdleTime falls back
// to two minutes.
func NewJobService(
	resolver *Resolver,
	queue queue.Queue,
	jobs state.JobStore,
	repository repository.AssignmentRepository,
	groupName string,
	minIdleTime int,
	maxRetries int,
) *JobService {
	idle := time.Duration(minIdleTime) * time.Second
	if idle <= 0 {
		idle = defaultMinIdleTime
	}

	return &JobService{
		resolver:    resolver,
		queue:       queue,
		jobs:        jobs,
		repository:  repository,
		groupName:   groupName,
		minIdleTime: idle,
		maxRetries:  max(0, maxRetries),
	}
}

// Enqueue validates the request, records it as pending and publishes it.
func (s *JobService) Enqueue(ctx context.Context, product domain.Product, opts Options) (*domain.JobStatus, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}
	if opts.Marketplace != "" {
		if _, ok := s.resolver.Catalog().Find(opts.Marketplace); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMarketplace, opts.Marketplace)
		}
	}

	status := &domain.JobStatus{
		ID:    uuid.NewString(),
		SKU:   product.SKU,
		State: domain.JobPending,
	}
	if err := s.jobs.Set(ctx, status); err != nil {
		return nil, err
	}

	_, err := s.queue.AddTask(ctx, &task.CategorizeTask{
		JobID:             status.ID,
		Product:           product,
		Marketplace:       opts.Marketplace,
		IncludeConfidence: opts.IncludeConfidence,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("📥 Queued job %s for %s", status.ID, product.SKU)
	return status, nil
}

func (s *JobService) Status(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *JobService) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	s.runWorkersForStream(ctx, &wg, max(1, numWorkers), queue.StreamName(task.CategorizeTaskType), "main")
	s.runWorkersForStream(ctx, &wg, max(1, numWorkers/2), queue.StreamName(task.CategorizeRetryTaskType), "retry")

	wg.Wait()
	return nil
}

func (s *JobService) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
					msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
					if err != nil {
						if ctx.Err() == nil {
							log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
						}
						continue
					}

					if msg != nil {
						if err := s.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}(i + 1)
	}
}

func (s *JobService) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case task.CategorizeTaskType:
		categorizeTask, err := task.UnmarshalTask[*task.CategorizeTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal categorize task data: %w", err)
		}
		s.runJob(ctx, categorizeTask, 0)

	case task.CategorizeRetryTaskType:
		retryTask, err := task.UnmarshalTask[*task.CategorizeRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}
		log.Infof("🔄 Retrying job %s (attempt %d)", retryTask.JobID, retryTask.RetryCount)
		s.runJob(ctx, &retryTask.CategorizeTask, retryTask.RetryCount)

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if err := s.queue.AckTask(ctx, queue.StreamName(taskType), s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// runJob resolves one queued product and records the outcome. Storage
// failures are retried through the retry stream up to maxRetries times;
// invalid requests fail immediately.
func (s *JobService) runJob(ctx context.Context, t *task.CategorizeTask, attempt int) {
	status := &domain.JobStatus{ID: t.JobID, SKU: t.Product.SKU}

	resp, err := s.resolver.Resolve(ctx, t.Product, Options{
		Marketplace:       t.Marketplace,
		IncludeConfidence: t.IncludeConfidence,
	})
	if err != nil {
		status.State = domain.JobFailed
		status.Error = err.Error()
		s.saveStatus(ctx, status)
		log.Warnf("⚠️ Job %s failed: %v", t.JobID, err)
		return
	}

	if s.repository != nil {
		if err := s.repository.SaveAssignments(ctx, resp); err != nil {
			s.retry(ctx, t, attempt, err)
			return
		}
	}

	status.State = domain.JobDone
	status.Result = resp
	s.saveStatus(ctx, status)
	log.Infof("✅ Job %s done: %d marketplaces for %s", t.JobID, len(resp.Categories), t.Product.SKU)
}

func (s *JobService) retry(ctx context.Context, t *task.CategorizeTask, attempt int, cause error) {
	if attempt >= s.maxRetries {
		s.saveStatus(ctx, &domain.JobStatus{
			ID:    t.JobID,
			SKU:   t.Product.SKU,
			State: domain.JobFailed,
			Error: cause.Error(),
		})
		log.Errorf("❌ Job %s failed after %d attempts: %v", t.JobID, attempt, cause)
		return
	}

	retryTask := &task.CategorizeRetryTask{
		CategorizeTask: *t,
		RetryCount:     attempt + 1,
		Error:          cause.Error(),
	}
	if _, err := s.queue.AddTask(ctx, retryTask); err != nil {
		log.Errorf("❌ Failed to add retry task for job %s: %v", t.JobID, err)
		s.saveStatus(ctx, &domain.JobStatus{
			ID:    t.JobID,
			SKU:   t.Product.SKU,
			State: domain.JobFailed,
			Error: errors.Join(cause, err).Error(),
		})
		return
	}
	log.Warnf("🔄 Added job %s to retry queue due to error: %v", t.JobID, cause)
}

func (s *JobService) saveStatus(ctx context.Context, status *domain.JobStatus) {
	if err := s.jobs.Set(ctx, status); err != nil {
		log.Errorf("❌ Failed to save status of job %s: %v", status.ID, err)
	}
}
