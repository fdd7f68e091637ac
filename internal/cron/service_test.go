package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/rs/zerolog"
)

type fakeLock struct {
	held   map[string]string
	setErr error
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]string)}
}

func (f *fakeLock) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = value.(string)
	return true, nil
}

func (f *fakeLock) Get(_ context.Context, key string) (string, error) {
	return f.held[key], nil
}

func (f *fakeLock) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.held, key)
	}
	return nil
}

func (f *fakeLock) LockKey(name string) string { return "lock:" + name }

type countingJob struct {
	name      string
	processed int
	runs      int
	fail      error
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return time.Minute }
func (j *countingJob) Run(context.Context) (int, error) {
	j.runs++
	return j.processed, j.fail
}

func newTestService(t *testing.T, lock *fakeLock, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(registry, lock, nil, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&countingJob{name: "sweep"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := registry.Register(&countingJob{name: "sweep"}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	if len(registry.All()) != 1 {
		t.Fatalf("expected one job")
	}
}

func TestRunJobReportsProcessedCount(t *testing.T) {
	job := &countingJob{name: "sweep", processed: 7}
	svc := newTestService(t, newFakeLock(), job)

	processed, err := svc.RunJob(context.Background(), "sweep")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if processed != 7 {
		t.Fatalf("expected 7 processed, got %d", processed)
	}
	if job.runs != 1 {
		t.Fatalf("expected one run, got %d", job.runs)
	}
}

func TestRunJobUnknownName(t *testing.T) {
	svc := newTestService(t, newFakeLock())
	_, err := svc.RunJob(context.Background(), "nope")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunJobSkipsWhenLocked(t *testing.T) {
	job := &countingJob{name: "sweep"}
	lock := newFakeLock()
	lock.held["lock:sweep"] = "other-worker"
	svc := newTestService(t, lock, job)

	_, err := svc.RunJob(context.Background(), "sweep")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("a locked job must not run")
	}
}

func TestRunJobReleasesOwnLockOnly(t *testing.T) {
	job := &countingJob{name: "sweep"}
	lock := newFakeLock()
	svc := newTestService(t, lock, job)

	if _, err := svc.RunJob(context.Background(), "sweep"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, held := lock.held["lock:sweep"]; held {
		t.Fatalf("lock must be released after the run")
	}

	// A lock taken over by another worker survives the release.
	lock.held["lock:sweep"] = "other-worker"
	svc.release(context.Background(), "lock:sweep")
	if lock.held["lock:sweep"] != "other-worker" {
		t.Fatalf("a foreign lock must not be deleted")
	}
}

func TestRunJobSurfacesFailure(t *testing.T) {
	job := &countingJob{name: "sweep", processed: 2, fail: errors.New("boom")}
	svc := newTestService(t, newFakeLock(), job)

	processed, err := svc.RunJob(context.Background(), "sweep")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if processed != 2 {
		t.Fatalf("partial progress must still be reported, got %d", processed)
	}
	if _, held := newFakeLock().held["lock:sweep"]; held {
		t.Fatalf("lock must be released after a failed run")
	}
}
