package orders

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
)

// Hook runs after a transition commits. Hook failures never unwind the
// transition; each hook is responsible for recording its own outcome.
type Hook interface {
	AfterTransition(ctx context.Context, order *models.Order, from, to enums.OrderStatus)
}

// Service owns every order status change. All writers, the partner API, the
// courier webhook, the deadline sweeps and the refund orchestrator, funnel
// through Transition, so the compare-and-swap in the repository is the single
// concurrency guard for the lifecycle.
type Service struct {
	repo  *Repository
	logg  *logger.Logger
	hooks []Hook
	now   func() time.Time
}

// TransitionInput describes one requested lifecycle move.
type TransitionInput struct {
	OrderID  uuid.UUID
	To       enums.OrderStatus
	Actor    string
	Reason   string
	Metadata types.JSONMap
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("orders.NewService: repository is required")
	}
	if logg == nil {
		return nil, errors.New("orders.NewService: logger is required")
	}
	return &Service{repo: repo, logg: logg, now: time.Now}, nil
}

// RegisterHook adds a post-transition side effect. Registration happens at
// wire-up time, before the service starts taking traffic.
func (s *Service) RegisterHook(h Hook) {
	if h != nil {
		s.hooks = append(s.hooks, h)
	}
}

func (s *Service) Repo() *Repository {
	return s.repo
}

// Transition validates the move, compare-and-swaps the status and appends
// exactly one history row. A lost swap surfaces as a STATE_CONFLICT and
// writes nothing; callers racing each other get exactly one winner.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	from := order.Status

	if err := ValidateTransition(from, in.To, order.HasPersonalization); err != nil {
		return nil, err
	}

	extra := s.sideColumns(in.To)
	won, err := s.repo.UpdateStatusCAS(ctx, order.ID, from, in.To, extra)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently").
			WithDetails(map[string]any{"order_id": order.ID, "expected": from.String()})
	}

	meta := types.JSONMap{}
	for k, v := range in.Metadata {
		meta[k] = v
	}
	if in.Actor != "" {
		meta["actor"] = in.Actor
	}
	// An explicit metadata reason is a machine-readable tag; the prose
	// Reason must not clobber it.
	if _, tagged := meta["reason"]; !tagged && in.Reason != "" {
		meta["reason"] = in.Reason
	}
	entry := &models.OrderStatusHistory{
		OrderID:     order.ID,
		Type:        enums.HistoryEntryStatusChange,
		Title:       "Order " + in.To.String(),
		Description: in.Reason,
		FromStatus:  &from,
		ToStatus:    &in.To,
		Metadata:    meta,
	}
	if err := s.repo.AddHistory(ctx, entry); err != nil {
		return nil, err
	}

	order.Status = in.To
	if t, ok := extra["delivered_at"].(time.Time); ok {
		order.DeliveredAt = &t
	}
	if t, ok := extra["cancelled_at"].(time.Time); ok {
		order.CancelledAt = &t
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     from.String(),
		"to":       in.To.String(),
	})
	s.logg.Info(ctx, "order status changed")

	for _, h := range s.hooks {
		h.AfterTransition(ctx, order, from, in.To)
	}
	return order, nil
}

// ApplyCourierEvent maps a courier tracking status onto the lifecycle. The
// courier addresses orders by the client order number it was given at
// booking. Events that arrive out of order or repeat lose the swap and are
// ignored.
func (s *Service) ApplyCourierEvent(ctx context.Context, orderNumber string, cs enums.CourierStatus, meta types.JSONMap) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	to, ok := FromCourierStatus(cs)
	if !ok {
		md := types.JSONMap{"courier_status": cs.String()}
		for k, v := range meta {
			md[k] = v
		}
		entry := &models.OrderStatusHistory{
			OrderID:     order.ID,
			Type:        enums.HistoryEntrySystemAction,
			Title:       "Courier update " + cs.String(),
			Description: "courier reported a non-delivery status; manual follow-up",
			Metadata:    md,
		}
		if err := s.repo.AddHistory(ctx, entry); err != nil {
			return nil, err
		}
		return order, nil
	}
	md := types.JSONMap{"courier_status": cs.String()}
	if order.AWB != nil {
		md["awb"] = *order.AWB
	}
	for k, v := range meta {
		md[k] = v
	}
	return s.Transition(ctx, TransitionInput{
		OrderID:  order.ID,
		To:       to,
		Actor:    "courier",
		Metadata: md,
	})
}

// RecordEvent appends a non-transition ledger row (refunds, settlement,
// dispatch failures, anomalies).
func (s *Service) RecordEvent(ctx context.Context, orderID uuid.UUID, entryType enums.HistoryEntryType, title, description string, meta types.JSONMap) error {
	return s.repo.AddHistory(ctx, &models.OrderStatusHistory{
		OrderID:     orderID,
		Type:        entryType,
		Title:       title,
		Description: description,
		Metadata:    meta,
	})
}

func (s *Service) sideColumns(to enums.OrderStatus) map[string]any {
	now := s.now().UTC()
	switch to {
	case enums.OrderStatusDelivered:
		return map[string]any{"delivered_at": now}
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
		return map[string]any{"cancelled_at": now}
	default:
		return nil
	}
}
