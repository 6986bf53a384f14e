package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/pricing"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/pagination"
	"github.com/printz/fulfillment-backend/pkg/payos"
)

// Repository defines persistence operations for print order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PrintOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintOrder, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.PrintOrder, error)
	LockByPaymentCode(ctx context.Context, code int64) (*models.PrintOrder, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.PrintOrder, error)
	Save(ctx context.Context, order *models.PrintOrder) error
	CountNumbersWithPrefix(ctx context.Context, prefix string) (int64, error)
}

// Quoter prices one print item.
type Quoter interface {
	Calculate(ctx context.Context, spec pricing.Specification) (*pricing.Quote, error)
}

type paymentLinker interface {
	CreatePaymentLink(ctx context.Context, req payos.PaymentRequest) (*payos.PaymentLink, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
