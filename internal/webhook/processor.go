package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grill-backend/internal/inventory"
	"grill-backend/internal/metrics"
	"grill-backend/internal/models"
	"grill-backend/internal/square"
)

const (
	EventPaymentUpdated = "payment.updated"
	EventRefundUpdated  = "refund.updated"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Source fetches Square objects referenced by an event.
type Source interface {
	GetOrder(ctx context.Context, id string) (*square.Order, error)
	GetPayment(ctx context.Context, id string) (*square.Payment, error)
	GetRefund(ctx context.Context, id string) (*square.Refund, error)
}

type UsageCalculator interface {
	Compute(ctx context.Context, order square.Order) (map[uint]inventory.Usage, error)
}

type LedgerWriter interface {
	ApplyUsage(ctx context.Context, usage map[uint]inventory.Usage, corr inventory.Correlation, sign int) (inventory.ApplyResult, error)
}

type Verifier interface {
	Verify(body []byte, signature string) bool
}

type Result struct {
	EventID   string
	EventType string
	Duplicate bool
	Skipped   bool
	Inserted  int
}

type Processor struct {
	verifier Verifier
	events   *EventStore
	source   Source
	calc     UsageCalculator
	ledger   LedgerWriter
	logger   *zap.Logger
	now      func() time.Time
}

func NewProcessor(verifier Verifier, events *EventStore, source Source, calc UsageCalculator, ledger LedgerWriter, log *zap.Logger) *Processor {
	return &Processor{
		verifier: verifier,
		events:   events,
		source:   source,
		calc:     calc,
		ledger:   ledger,
		logger:   log,
		now:      time.Now,
	}
}

// Handle verifies, deduplicates and applies one webhook delivery. Errors wrap
// ErrInvalidSignature or square.ErrMalformedPayload for rejected input; any
// other error means processing failed and the event is left retryable.
func (p *Processor) Handle(ctx context.Context, body []byte, signature string) (Result, error) {
	if !p.verifier.Verify(body, signature) {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return Result{}, ErrInvalidSignature
	}

	env, err := square.ParseEnvelope(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return Result{}, err
	}
	res := Result{EventID: env.EventID, EventType: env.Type}

	status, err := p.events.Begin(ctx, env.EventID, env.Type)
	if err != nil {
		return res, err
	}
	if status.Terminal() {
		metrics.WebhookEvents.WithLabelValues(env.Type, "duplicate").Inc()
		p.logger.Info("duplicate webhook event",
			zap.String("event_id", env.EventID),
			zap.String("status", string(status)))
		res.Duplicate = true
		return res, nil
	}

	skipped, inserted, err := p.dispatch(ctx, env)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(env.Type, "error").Inc()
		p.logger.Error("failed to process square webhook",
			zap.String("event_id", env.EventID),
			zap.String("type", env.Type),
			zap.Error(err))
		if markErr := p.events.MarkError(ctx, env.EventID, err.Error()); markErr != nil {
			p.logger.Error("could not mark webhook event as failed", zap.Error(markErr))
		}
		return res, err
	}

	if skipped {
		if err := p.events.MarkSkipped(ctx, env.EventID); err != nil {
			return res, err
		}
		metrics.WebhookEvents.WithLabelValues(env.Type, "skipped").Inc()
		res.Skipped = true
		return res, nil
	}

	if err := p.events.MarkProcessed(ctx, env.EventID); err != nil {
		return res, err
	}
	metrics.WebhookEvents.WithLabelValues(env.Type, "processed").Inc()
	p.logger.Info("square webhook processed",
		zap.String("event_id", env.EventID),
		zap.String("type", env.Type),
		zap.Int("ledger_entries", inserted))
	res.Inserted = inserted
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, env square.Envelope) (bool, int, error) {
	switch env.Type {
	case EventPaymentUpdated:
		return p.handlePayment(ctx, env)
	case EventRefundUpdated:
		return p.handleRefund(ctx, env)
	default:
		return true, 0, nil
	}
}

func (p *Processor) handlePayment(ctx context.Context, env square.Envelope) (bool, int, error) {
	payment, err := p.resolvePayment(ctx, env.Payment)
	if err != nil {
		return false, 0, err
	}
	if payment == nil {
		return false, 0, errors.New("webhook payload missing payment data")
	}
	if !payment.Completed() {
		return true, 0, nil
	}

	if payment.OrderID == "" {
		return false, 0, fmt.Errorf("payment %s has no order id", payment.ID)
	}
	order, err := p.source.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return false, 0, err
	}

	occurredAt, ok := square.FirstTime(order.ClosedAt, payment.UpdatedAt, payment.CreatedAt)
	if !ok {
		occurredAt = p.now()
	}

	usage, err := p.calc.Compute(ctx, *order)
	if err != nil {
		return false, 0, err
	}

	res, err := p.ledger.ApplyUsage(ctx, usage, inventory.Correlation{
		Reason:     models.ReasonSale,
		EventID:    env.EventID,
		PaymentID:  payment.ID,
		OrderID:    order.ID,
		OccurredAt: occurredAt,
	}, -1)
	if err != nil {
		return false, 0, err
	}
	return false, res.Inserted, nil
}

func (p *Processor) handleRefund(ctx context.Context, env square.Envelope) (bool, int, error) {
	refund, err := p.resolveRefund(ctx, env.Refund)
	if err != nil {
		return false, 0, err
	}
	if refund == nil {
		return false, 0, errors.New("webhook payload missing refund data")
	}
	if !refund.Completed() {
		return true, 0, nil
	}

	var payment *square.Payment
	if refund.PaymentID != "" {
		if payment, err = p.source.GetPayment(ctx, refund.PaymentID); err != nil {
			return false, 0, err
		}
	} else if payment, err = p.resolvePayment(ctx, env.Payment); err != nil {
		return false, 0, err
	}

	orderID := refund.OrderID
	if orderID == "" && payment != nil {
		orderID = payment.OrderID
	}
	if orderID == "" {
		return false, 0, fmt.Errorf("unable to resolve order for refund %s", refund.ID)
	}
	order, err := p.source.GetOrder(ctx, orderID)
	if err != nil {
		return false, 0, err
	}

	var paymentID, paymentUpdated string
	if payment != nil {
		paymentID, paymentUpdated = payment.ID, payment.UpdatedAt
	}
	occurredAt, ok := square.FirstTime(refund.ProcessedAt, refund.UpdatedAt, paymentUpdated)
	if !ok {
		occurredAt = p.now()
	}

	usage, err := p.calc.Compute(ctx, *order)
	if err != nil {
		return false, 0, err
	}

	res, err := p.ledger.ApplyUsage(ctx, usage, inventory.Correlation{
		Reason:     models.ReasonRefund,
		EventID:    env.EventID,
		PaymentID:  paymentID,
		RefundID:   refund.ID,
		OrderID:    order.ID,
		OccurredAt: occurredAt,
	}, +1)
	if err != nil {
		return false, 0, err
	}
	return false, res.Inserted, nil
}

func (p *Processor) resolvePayment(ctx context.Context, ref *square.PaymentRef) (*square.Payment, error) {
	switch {
	case ref == nil:
		return nil, nil
	case ref.Inline != nil:
		return ref.Inline, nil
	default:
		return p.source.GetPayment(ctx, ref.ID)
	}
}

func (p *Processor) resolveRefund(ctx context.Context, ref *square.RefundRef) (*square.Refund, error) {
	switch {
	case ref == nil:
		return nil, nil
	case ref.Inline != nil:
		return ref.Inline, nil
	default:
		return p.source.GetRefund(ctx, ref.ID)
	}
}
