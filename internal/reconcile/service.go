package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grill-backend/internal/inventory"
	"grill-backend/internal/metrics"
	"grill-backend/internal/models"
	"grill-backend/internal/square"
)

// differences below this are rounding residue, not drift
var threshold = decimal.New(5, -4)

type OrderSearcher interface {
	SearchOrders(ctx context.Context, startAt, endAt time.Time) ([]square.Order, error)
}

type UsageCalculator interface {
	Compute(ctx context.Context, order square.Order) (map[uint]inventory.Usage, error)
}

type Ledger interface {
	UsageTotalsForOrder(ctx context.Context, orderID string) (map[uint]decimal.Decimal, error)
	Record(ctx context.Context, e inventory.Entry) (uint, bool, error)
}

type Report struct {
	RunID           string    `json:"run_id"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	ProcessedOrders int       `json:"processed_orders"`
	Adjustments     int       `json:"adjustments"`
	FailedOrders    int       `json:"failed_orders"`
}

type Service struct {
	orders OrderSearcher
	calc   UsageCalculator
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

func NewService(orders OrderSearcher, calc UsageCalculator, ledger Ledger, log *zap.Logger) *Service {
	return &Service{orders: orders, calc: calc, ledger: ledger, logger: log, now: time.Now}
}

// PreviousDay returns yesterday's UTC calendar day as an inclusive window.
func PreviousDay(now time.Time) (time.Time, time.Time) {
	y := now.UTC().AddDate(0, 0, -1)
	start := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	return start, DayEnd(start)
}

// DayEnd is 23:59:59.999 on the day starting at start.
func DayEnd(start time.Time) time.Time {
	return start.Add(24*time.Hour - time.Millisecond)
}

func (s *Service) ReconcilePreviousDay(ctx context.Context) (Report, error) {
	start, end := PreviousDay(s.now())
	return s.ReconcileRange(ctx, start, end)
}

// ReconcileRange recomputes usage for every completed order closed in
// [startAt, endAt] and writes a RECON entry wherever the ledger disagrees.
// A failing order is logged and counted; the rest of the batch still runs.
// Only a failed order search fails the run.
func (s *Service) ReconcileRange(ctx context.Context, startAt, endAt time.Time) (Report, error) {
	began := time.Now()
	report := Report{RunID: uuid.NewString(), StartAt: startAt.UTC(), EndAt: endAt.UTC()}
	log := s.logger.With(zap.String("run_id", report.RunID))

	orders, err := s.orders.SearchOrders(ctx, startAt, endAt)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("failed").Inc()
		return report, fmt.Errorf("reconciliation order search: %w", err)
	}

	for _, order := range orders {
		report.ProcessedOrders++
		n, err := s.reconcileOrder(ctx, order)
		report.Adjustments += n
		if err != nil {
			report.FailedOrders++
			log.Error("order reconciliation failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	status := "ok"
	if report.FailedOrders > 0 {
		status = "partial"
	}
	metrics.ReconcileRuns.WithLabelValues(status).Inc()
	metrics.ReconcileAdjustments.Add(float64(report.Adjustments))
	metrics.ReconcileDuration.Observe(time.Since(began).Seconds())

	log.Info("reconciliation run completed",
		zap.Time("start_at", report.StartAt),
		zap.Time("end_at", report.EndAt),
		zap.Int("processed_orders", report.ProcessedOrders),
		zap.Int("adjustments", report.Adjustments),
		zap.Int("failed_orders", report.FailedOrders))
	return report, nil
}

func (s *Service) reconcileOrder(ctx context.Context, order square.Order) (int, error) {
	usage, err := s.calc.Compute(ctx, order)
	if err != nil {
		return 0, err
	}

	actual, err := s.ledger.UsageTotalsForOrder(ctx, order.ID)
	if err != nil {
		return 0, err
	}

	expected := make(map[uint]decimal.Decimal, len(usage)+len(actual))
	decimals := make(map[uint]int32, len(usage)+len(actual))
	for id, u := range usage {
		expected[id] = inventory.RoundQty(u.Quantity.Neg(), u.Decimals)
		decimals[id] = u.Decimals
	}
	// items charged to the order that the current recipes no longer use
	for id := range actual {
		if _, ok := expected[id]; !ok {
			expected[id] = decimal.Zero
			decimals[id] = models.MaxItemDecimals
		}
	}
	if len(expected) == 0 {
		return 0, nil
	}

	occurredAt, ok := square.FirstTime(order.ClosedAt, order.UpdatedAt)
	if !ok {
		occurredAt = s.now()
	}

	itemIDs := make([]uint, 0, len(expected))
	for id := range expected {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	adjustments := 0
	for _, id := range itemIDs {
		diff := inventory.RoundQty(expected[id].Sub(actual[id]), decimals[id])
		if diff.Abs().LessThan(threshold) {
			continue
		}

		_, inserted, err := s.ledger.Record(ctx, inventory.Entry{
			ItemID:     id,
			Delta:      diff,
			Reason:     models.ReasonRecon,
			OrderID:    order.ID,
			OccurredAt: occurredAt,
			Note:       "Reconciliation adjustment for " + order.ID,
		})
		if err != nil {
			return adjustments, fmt.Errorf("record adjustment for item %d: %w", id, err)
		}
		if inserted {
			adjustments++
		}
	}
	return adjustments, nil
}
