package cron

import (
	"context"
	"time"
)

// Job is one scheduled sweep. Run returns how many rows it processed; sweeps
// are bounded per run and overlap-safe, so a long backlog just drains over
// successive runs.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) (int, error)
}
