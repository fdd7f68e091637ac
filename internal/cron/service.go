package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/metrics"
	"github.com/google/uuid"
)

// locker is the slice of the Redis client the runner needs for cross-worker
// mutual exclusion.
type locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Service runs registered jobs on their intervals. A Redis lock keyed by
// job name keeps concurrent workers (or an HTTP-triggered run racing the
// schedule) from sweeping the same job twice; the CAS discipline inside the
// jobs makes a lost lock harmless anyway.
type Service struct {
	registry *Registry
	lock     locker
	metrics  *metrics.SweepMetrics
	logg     *logger.Logger
	lockTTL  time.Duration
	owner    string
}

// ErrLocked reports that another worker holds the job's lock.
var ErrLocked = errors.New("cron: job is locked by another worker")

func NewService(registry *Registry, lock locker, m *metrics.SweepMetrics, logg *logger.Logger) (*Service, error) {
	if registry == nil {
		return nil, errors.New("cron.NewService: registry is required")
	}
	if lock == nil {
		return nil, errors.New("cron.NewService: locker is required")
	}
	if logg == nil {
		return nil, errors.New("cron.NewService: logger is required")
	}
	return &Service{
		registry: registry,
		lock:     lock,
		metrics:  m,
		logg:     logg,
		lockTTL:  5 * time.Minute,
		owner:    uuid.NewString(),
	}, nil
}

// Start runs every registered job on its interval until the context ends.
func (s *Service) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.registry.All() {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Service) loop(ctx context.Context, job Job) {
	interval := job.Interval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunJob(ctx, job.Name()); err != nil && !errors.Is(err, ErrLocked) {
				s.logg.Error(s.logg.WithField(ctx, "job", job.Name()), "sweep run failed", err)
			}
		}
	}
}

// RunJob executes one job under the distributed lock and returns the number
// of rows it processed.
func (s *Service) RunJob(ctx context.Context, name string) (int, error) {
	job, ok := s.registry.Get(name)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "unknown sweep job")
	}
	ctx = s.logg.WithField(ctx, "job", name)

	key := s.lock.LockKey(name)
	acquired, err := s.lock.SetNX(ctx, key, s.owner, s.lockTTL)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire sweep lock")
	}
	if !acquired {
		s.logg.Info(ctx, "sweep skipped, lock held elsewhere")
		return 0, ErrLocked
	}
	defer s.release(ctx, key)

	start := time.Now()
	processed, runErr := job.Run(ctx)
	s.metrics.ObserveDuration(name, time.Since(start))
	s.metrics.AddProcessed(name, processed)
	if runErr != nil {
		s.metrics.IncFailure(name)
		return processed, runErr
	}
	s.metrics.IncSuccess(name)
	if processed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "processed", processed), "sweep completed")
	}
	return processed, nil
}

// release drops the lock only if this worker still owns it; an expired lock
// taken over by another worker is left alone.
func (s *Service) release(ctx context.Context, key string) {
	current, err := s.lock.Get(ctx, key)
	if err != nil || current != s.owner {
		return
	}
	if err := s.lock.Del(ctx, key); err != nil {
		s.logg.Error(ctx, "releasing sweep lock", err)
	}
}
