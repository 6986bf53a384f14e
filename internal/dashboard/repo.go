package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

type statusCount struct {
	Status string
	Count  int64
}

// Repository runs the read-only aggregations behind the overview.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) countByStatus(ctx context.Context, table string) (map[string]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Raw("SELECT status, COUNT(*) AS count FROM " + table + " GROUP BY status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *Repository) SwagOrdersByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countByStatus(ctx, "swag_orders")
}

func (r *Repository) PrintOrdersByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countByStatus(ctx, "print_orders")
}

func (r *Repository) RecipientsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countByStatus(ctx, "recipient_shipments")
}

// PaidTotal sums order totals paid at or after since.
func (r *Repository) PaidTotal(ctx context.Context, table string, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(total), 0) AS total FROM "+table+" WHERE payment_status = ? AND paid_at >= ?", enums.PaymentPaid, since).
		Scan(&row).Error
	return row.Total, err
}

func (r *Repository) LowStockCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM inventory_items WHERE on_hand - reserved <= low_stock_threshold").
		Scan(&n).Error
	return n, err
}

// PendingKittingCount uses the same filter as the kitting queue.
func (r *Repository) PendingKittingCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM swag_orders
WHERE status IN ? AND production_status = ? AND production_qc_status IN ? AND production_kitting_status IN ?`,
			[]enums.SwagOrderStatus{enums.SwagOrderPaid, enums.SwagOrderProcessing},
			enums.ProductionCompleted,
			[]enums.QCStatus{enums.QCPassed, enums.QCPending},
			[]enums.KittingStatus{enums.KittingPending, enums.KittingInProgress}).
		Scan(&n).Error
	return n, err
}
