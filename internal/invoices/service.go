package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

const numberAttempts = 5

type swagOrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SwagOrder, error)
}

type printOrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintOrder, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ListParams struct {
	Status     string
	SourceType string
	CustomerID *uuid.UUID
	pagination.Params
}

type ListResult struct {
	Invoices   []models.Invoice `json:"invoices"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type Service interface {
	IssueForSource(ctx context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Void(ctx context.Context, actor auditlog.Actor, id uuid.UUID, reason string) (*models.Invoice, error)
}

type ServiceParams struct {
	Repo        *Repository
	SwagOrders  swagOrderSource
	PrintOrders printOrderSource
	Outbox      outbox.Emitter
	Audit       auditlog.Recorder
	TxRunner    txRunner
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	repo        *Repository
	swagOrders  swagOrderSource
	printOrders printOrderSource
	outbox      outbox.Emitter
	audit       auditlog.Recorder
	tx          txRunner
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.SwagOrders == nil:
		return nil, fmt.Errorf("swag order source required")
	case params.PrintOrders == nil:
		return nil, fmt.Errorf("print order source required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		swagOrders:  params.SwagOrders,
		printOrders: params.PrintOrders,
		outbox:      params.Outbox,
		audit:       params.Audit,
		tx:          params.TxRunner,
		logg:        logg,
		now:         now,
	}, nil
}

// IssueForSource bills a swag or print order. Calling it again for the same
// source returns the invoice issued the first time.
func (s *service) IssueForSource(ctx context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error) {
	if !sourceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice source type").
			WithDetails(map[string]any{"allowed": enums.Values(enums.ValidInvoiceSourceTypes)})
	}
	if existing, err := s.repo.FindBySource(ctx, sourceType, sourceID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}

	invoice, err := s.draft(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	invoice.IssuedAt = now

	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		lastErr = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			number, err := nextInvoiceNumber(ctx, repo, now, attempt)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
			if err := repo.Create(ctx, invoice); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInvoiceIssued,
				AggregateType: enums.AggregateInvoice,
				AggregateID:   invoice.ID,
				Data: payloads.InvoiceIssuedEvent{
					InvoiceID:     invoice.ID,
					InvoiceNumber: invoice.InvoiceNumber,
					SourceType:    invoice.SourceType,
					SourceID:      invoice.SourceID,
					CustomerID:    invoice.CustomerID,
					Total:         invoice.Total,
				},
			})
		})
		if lastErr == nil {
			break
		}
		if !db.IsUniqueViolation(lastErr, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "issue invoice")
		}
		// A concurrent issuer may have won the source uniqueness race.
		if existing, err := s.repo.FindBySource(ctx, sourceType, sourceID); err == nil {
			return existing, nil
		}
		invoice.ID = uuid.Nil
		for i := range invoice.Lines {
			invoice.Lines[i].ID = uuid.Nil
		}
	}
	if lastErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate invoice number")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"source_type":    string(sourceType),
		"source_id":      sourceID.String(),
	})
	s.logg.Info(logCtx, "invoice issued")
	return s.Get(ctx, invoice.ID)
}

// nextInvoiceNumber follows INV-{YYYYMMDD}-{6 digits}, counting today's
// invoices.
func nextInvoiceNumber(ctx context.Context, repo *Repository, now time.Time, attempt int) (string, error) {
	prefix := "INV-" + now.Format("20060102") + "-"
	count, err := repo.CountNumbersWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%06d", prefix, count+1+int64(attempt)), nil
}

func (s *service) draft(ctx context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error) {
	switch sourceType {
	case enums.InvoiceSourceSwagOrder:
		order, err := s.swagOrders.FindByID(ctx, sourceID)
		if err != nil {
			return nil, sourceError(err, "swag order", sourceID)
		}
		if order.Status == enums.SwagOrderCancelled {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot invoice a cancelled order")
		}
		return swagOrderInvoice(order), nil
	default:
		order, err := s.printOrders.FindByID(ctx, sourceID)
		if err != nil {
			return nil, sourceError(err, "print order", sourceID)
		}
		if order.Status == enums.PrintOrderCancelled {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot invoice a cancelled order")
		}
		return printOrderInvoice(order), nil
	}
}

func sourceError(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(resource, id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+resource)
}

func swagOrderInvoice(order *models.SwagOrder) *models.Invoice {
	recipients := order.TotalRecipients
	lines := make([]models.InvoiceLine, 0, len(order.PackSnapshot.V)+3)
	for _, item := range order.PackSnapshot.V {
		lines = append(lines, line(item.ProductName+" ("+item.SKU+")", item.Quantity*recipients, item.UnitPrice))
	}
	pricing := order.Pricing
	if pricing.KittingFee.IsPositive() {
		lines = append(lines, lump("Kitting", pricing.KittingFee))
	}
	if pricing.ShippingCost.IsPositive() {
		lines = append(lines, lump("Shipping ("+string(order.ShippingMethod)+")", pricing.ShippingCost))
	}
	if pricing.Discount.IsPositive() {
		lines = append(lines, lump("Discount", pricing.Discount.Neg()))
	}
	invoice := &models.Invoice{
		SourceType: enums.InvoiceSourceSwagOrder,
		SourceID:   order.ID,
		CustomerID: order.CustomerID,
		Subtotal:   order.Pricing.Total.Sub(pricing.Tax),
		Tax:        pricing.Tax,
		Total:      order.Pricing.Total,
		Lines:      lines,
	}
	settle(invoice, order.PaymentStatus, order.PaidAt)
	return invoice
}

func printOrderInvoice(order *models.PrintOrder) *models.Invoice {
	lines := make([]models.InvoiceLine, 0, len(order.Items)+1)
	for _, item := range order.Items {
		l := line(item.Description, item.Quantity, item.UnitPrice)
		l.Amount = item.LineTotal
		lines = append(lines, l)
	}
	if order.ShippingFee.IsPositive() {
		lines = append(lines, lump("Shipping", order.ShippingFee))
	}
	invoice := &models.Invoice{
		SourceType: enums.InvoiceSourcePrintOrder,
		SourceID:   order.ID,
		CustomerID: order.CustomerID,
		Subtotal:   order.Total,
		Tax:        decimal.Zero,
		Total:      order.Total,
		Lines:      lines,
	}
	settle(invoice, order.PaymentStatus, order.PaidAt)
	return invoice
}

func line(description string, quantity int, unit decimal.Decimal) models.InvoiceLine {
	return models.InvoiceLine{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unit,
		Amount:      unit.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func lump(description string, amount decimal.Decimal) models.InvoiceLine {
	return line(description, 1, amount)
}

// settle marks the invoice paid when it bills an already paid source.
func settle(invoice *models.Invoice, payment enums.PaymentStatus, paidAt *time.Time) {
	invoice.Status = enums.InvoiceIssued
	if payment == enums.PaymentPaid {
		invoice.Status = enums.InvoicePaid
		invoice.PaidAt = paidAt
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("invoice", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	filter := ListFilter{CustomerID: params.CustomerID}
	if params.Status != "" {
		status, err := enums.ParseInvoiceStatus(strings.ToLower(params.Status))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidInvoiceStatuses)})
		}
		filter.Status = &status
	}
	if params.SourceType != "" {
		sourceType := enums.InvoiceSourceType(strings.ToLower(params.SourceType))
		if !sourceType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid source type").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidInvoiceSourceTypes)})
		}
		filter.SourceType = &sourceType
	}
	rows, err := s.repo.List(ctx, filter, params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list invoices")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(i models.Invoice) pagination.Cursor {
		return pagination.Cursor{CreatedAt: i.CreatedAt, ID: i.ID}
	})
	return &ListResult{Invoices: page, NextCursor: next}, nil
}

func (s *service) Void(ctx context.Context, actor auditlog.Actor, id uuid.UUID, reason string) (*models.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.Lock(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("invoice", id)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
		}
		if invoice.Status == enums.InvoiceVoid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is already void")
		}
		previous := invoice.Status
		now := s.now().UTC()
		invoice.Status = enums.InvoiceVoid
		invoice.VoidedAt = &now
		invoice.VoidReason = &reason
		if err := repo.Save(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save invoice")
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionInvoiceVoided,
			ResourceType: string(enums.AggregateInvoice),
			ResourceID:   invoice.ID.String(),
			Details: map[string]any{
				"invoiceNumber":  invoice.InvoiceNumber,
				"previousStatus": previous,
				"reason":         reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
