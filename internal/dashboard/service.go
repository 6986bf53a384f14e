package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

// Revenue splits this month's paid totals by order kind.
type Revenue struct {
	Since       time.Time       `json:"since"`
	SwagOrders  decimal.Decimal `json:"swagOrders"`
	PrintOrders decimal.Decimal `json:"printOrders"`
	Total       decimal.Decimal `json:"total"`
}

type Overview struct {
	GeneratedAt         time.Time        `json:"generatedAt"`
	SwagOrdersByStatus  map[string]int64 `json:"swagOrdersByStatus"`
	RecipientsByStatus  map[string]int64 `json:"recipientsByStatus"`
	PrintOrdersByStatus map[string]int64 `json:"printOrdersByStatus"`
	Revenue             Revenue          `json:"revenue"`
	LowStockCount       int64            `json:"lowStockCount"`
	PendingKittingCount int64            `json:"pendingKittingCount"`
}

type Service interface {
	Overview(ctx context.Context) (*Overview, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dashboard repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := &Overview{GeneratedAt: now, Revenue: Revenue{Since: monthStart}}

	var err error
	if out.SwagOrdersByStatus, err = s.repo.SwagOrdersByStatus(ctx); err != nil {
		return nil, wrap(err, "swag orders by status")
	}
	if out.Revenue.SwagOrders, err = s.repo.PaidTotal(ctx, "swag_orders", monthStart); err != nil {
		return nil, wrap(err, "swag order revenue")
	}
	if out.Revenue.PrintOrders, err = s.repo.PaidTotal(ctx, "print_orders", monthStart); err != nil {
		return nil, wrap(err, "print order revenue")
	}
	out.Revenue.Total = out.Revenue.SwagOrders.Add(out.Revenue.PrintOrders)
	if out.RecipientsByStatus, err = s.repo.RecipientsByStatus(ctx); err != nil {
		return nil, wrap(err, "recipients by status")
	}
	if out.LowStockCount, err = s.repo.LowStockCount(ctx); err != nil {
		return nil, wrap(err, "low stock count")
	}
	if out.PendingKittingCount, err = s.repo.PendingKittingCount(ctx); err != nil {
		return nil, wrap(err, "pending kitting count")
	}
	if out.PrintOrdersByStatus, err = s.repo.PrintOrdersByStatus(ctx); err != nil {
		return nil, wrap(err, "print orders by status")
	}
	return out, nil
}

func wrap(err error, what string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dashboard: "+what)
}
