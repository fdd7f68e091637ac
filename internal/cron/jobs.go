package cron

import (
	"context"
	"time"

	"github.com/giftlane/giftlane-backend/internal/orders"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// canceller is the payments slice the acceptance sweep needs.
type canceller interface {
	CancelWithRefund(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.Order, error)
}

// AcceptanceDeadlineJob cancels PLACED orders the partner never accepted.
// The refund is attempted first; its failure is recorded on the order and
// never blocks the cancellation. Each order fails independently.
type AcceptanceDeadlineJob struct {
	Orders    *orders.Repository
	Payments  canceller
	BatchSize int
	Every     time.Duration
	Now       func() time.Time
}

func (j *AcceptanceDeadlineJob) Name() string { return "acceptance-deadline" }

func (j *AcceptanceDeadlineJob) Interval() time.Duration { return j.Every }

func (j *AcceptanceDeadlineJob) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	expired, err := j.Orders.FindAcceptanceExpired(ctx, now().UTC(), j.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	var errs error
	for _, order := range expired {
		_, err := j.Payments.CancelWithRefund(ctx, order.ID, "system", "acceptance deadline expired")
		if err != nil {
			// Another writer may have accepted or cancelled it first.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		processed++
	}
	return processed, errs
}

// DesignDeadlineJob auto-approves PREVIEW_READY orders whose customer never
// responded. The history entry carries the system actor and deadline reason,
// so a system approval is always distinguishable from a customer's.
type DesignDeadlineJob struct {
	Orders    *orders.Service
	BatchSize int
	Every     time.Duration
	Now       func() time.Time
}

func (j *DesignDeadlineJob) Name() string { return "design-deadline" }

func (j *DesignDeadlineJob) Interval() time.Duration { return j.Every }

func (j *DesignDeadlineJob) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	expired, err := j.Orders.Repo().FindDesignExpired(ctx, now().UTC(), j.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	var errs error
	for _, order := range expired {
		_, err := j.Orders.Transition(ctx, orders.TransitionInput{
			OrderID:  order.ID,
			To:       enums.OrderStatusApproved,
			Actor:    "system",
			Reason:   "design deadline expired, preview auto-approved",
			Metadata: types.JSONMap{"reason": "deadline_expired"},
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		processed++
	}
	return processed, errs
}

// idleSweeper is the cart slice the idle sweep needs.
type idleSweeper interface {
	SweepIdle(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// CartExpiryJob drops carts nobody touched within the idle window and
// releases their stock holds.
type CartExpiryJob struct {
	Cart      idleSweeper
	IdleAfter time.Duration
	BatchSize int
	Every     time.Duration
	Now       func() time.Time
}

func (j *CartExpiryJob) Name() string { return "cart-expiry" }

func (j *CartExpiryJob) Interval() time.Duration { return j.Every }

func (j *CartExpiryJob) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	removed, err := j.Cart.SweepIdle(ctx, now().UTC().Add(-j.IdleAfter), j.BatchSize)
	return int(removed), err
}

// expiredDeleter is the reservation slice the cleanup sweep needs.
type expiredDeleter func(ctx context.Context, batchSize int) (int64, error)

// ReservationCleanupJob physically deletes lazily-expired stock holds. It is
// storage hygiene only: availability reads already ignore expired rows.
type ReservationCleanupJob struct {
	Delete    expiredDeleter
	BatchSize int
	Every     time.Duration
}

func (j *ReservationCleanupJob) Name() string { return "reservation-cleanup" }

func (j *ReservationCleanupJob) Interval() time.Duration { return j.Every }

func (j *ReservationCleanupJob) Run(ctx context.Context) (int, error) {
	deleted, err := j.Delete(ctx, j.BatchSize)
	return int(deleted), err
}

// draftSweeper is the checkout slice the draft sweep needs.
type draftSweeper interface {
	SweepAbandoned(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// DraftCleanupJob removes draft orders whose payment never arrived.
type DraftCleanupJob struct {
	Checkout  draftSweeper
	OlderThan time.Duration
	BatchSize int
	Every     time.Duration
	Now       func() time.Time
}

func (j *DraftCleanupJob) Name() string { return "draft-cleanup" }

func (j *DraftCleanupJob) Interval() time.Duration { return j.Every }

func (j *DraftCleanupJob) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	removed, err := j.Checkout.SweepAbandoned(ctx, now().UTC().Add(-j.OlderThan), j.BatchSize)
	return int(removed), err
}
