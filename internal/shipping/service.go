package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/carriers"
	"github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

const bulkConcurrency = 4

// Sources recorded on shipment status events.
const (
	SourceAdmin   = "admin"
	SourceTrack   = "tracking"
	SourceWebhook = "webhook"
)

type carrierSource interface {
	Get(code string) (carriers.Adapter, error)
	List() []carriers.Info
	TrackingURL(code, tracking string) string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput books one waybill. A nil Package ships the default carton.
type CreateInput struct {
	Carrier string            `json:"carrier" validate:"required"`
	Package *carriers.Package `json:"package,omitempty"`
}

type BulkInput struct {
	Carrier      string            `json:"carrier" validate:"required"`
	RecipientIDs []uuid.UUID       `json:"recipientIds,omitempty"`
	Package      *carriers.Package `json:"package,omitempty"`
}

type ShipmentView struct {
	RecipientID       uuid.UUID            `json:"recipientId"`
	RecipientName     string               `json:"recipientName"`
	Carrier           string               `json:"carrier"`
	TrackingNumber    string               `json:"trackingNumber"`
	TrackingURL       string               `json:"trackingUrl,omitempty"`
	Status            enums.ShipmentStatus `json:"status"`
	Fee               string               `json:"fee"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
}

type BulkError struct {
	RecipientID   uuid.UUID `json:"recipientId"`
	RecipientName string    `json:"recipientName"`
	Error         string    `json:"error"`
}

type BulkResult struct {
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Results []ShipmentView `json:"results"`
	Errors  []BulkError    `json:"errors"`
}

type TrackingView struct {
	Recipient models.RecipientShipment `json:"recipient"`
	Tracking  *carriers.TrackingResult `json:"tracking"`
}

// Service ships recipients of kitted swag orders and follows the parcels.
type Service interface {
	Carriers() []carriers.Info
	CreateShipment(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, input CreateInput) (*ShipmentView, error)
	BulkCreate(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input BulkInput) (*BulkResult, error)
	Track(ctx context.Context, orderID, recipientID uuid.UUID) (*TrackingView, error)
	Cancel(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, reason string) (*models.RecipientShipment, error)
	ApplyCarrierUpdate(ctx context.Context, carrier string, update carriers.WebhookUpdate) error
}

type ServiceParams struct {
	Orders    *swagorders.Repository
	Carriers  carrierSource
	Outbox    outbox.Emitter
	Audit     auditlog.Recorder
	TxRunner  txRunner
	Warehouse config.WarehouseConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	orders    *swagorders.Repository
	carriers  carrierSource
	outbox    outbox.Emitter
	audit     auditlog.Recorder
	tx        txRunner
	warehouse config.WarehouseConfig
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Orders == nil:
		return nil, fmt.Errorf("swag order repository required")
	case params.Carriers == nil:
		return nil, fmt.Errorf("carrier factory required")
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
		orders:    params.Orders,
		carriers:  params.Carriers,
		outbox:    params.Outbox,
		audit:     params.Audit,
		tx:        params.TxRunner,
		warehouse: params.Warehouse,
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Carriers() []carriers.Info {
	return s.carriers.List()
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag order", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag order")
	}
	return order, nil
}

// Orders ship once kitting is done. A shipped order can still ship the
// recipients whose earlier parcel was cancelled.
func ensureShippable(order *models.SwagOrder) error {
	if order.Production.KittingStatus != enums.KittingCompleted ||
		(order.Status != enums.SwagOrderKitting && order.Status != enums.SwagOrderShipped) {
		return pkgerrors.New(pkgerrors.CodeConflict, "order must finish kitting before shipping").
			WithDetails(map[string]any{"status": order.Status, "kittingStatus": order.Production.KittingStatus})
	}
	return nil
}

func ensureRecipientShippable(r *models.RecipientShipment) error {
	if r.TrackingNumber != nil && *r.TrackingNumber != "" {
		return pkgerrors.New(pkgerrors.CodeConflict, "recipient already has a shipment").
			WithDetails(map[string]any{"trackingNumber": *r.TrackingNumber})
	}
	if r.Status == enums.RecipientCancelled || r.Status == enums.RecipientDelivered {
		return pkgerrors.New(pkgerrors.CodeConflict, "recipient cannot be shipped").
			WithDetails(map[string]any{"status": r.Status})
	}
	if !r.Address.IsComplete() {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address is incomplete")
	}
	return nil
}

func (s *service) shipmentRequest(order *models.SwagOrder, r *models.RecipientShipment, pkg carriers.Package) carriers.ShipmentRequest {
	items := make([]carriers.Item, 0, len(order.PackSnapshot.V))
	for _, item := range order.PackSnapshot.V {
		items = append(items, carriers.Item{Name: item.ProductName, Quantity: item.Quantity})
	}
	note := pkg.Notes
	if note == "" {
		note = "Swag Pack: " + order.Name
	}
	return carriers.ShipmentRequest{
		ClientOrderCode: order.OrderNumber + "-" + r.ID.String()[:8],
		Sender: carriers.Party{
			Name:     s.warehouse.Name,
			Phone:    s.warehouse.Phone,
			Street:   s.warehouse.Street,
			Ward:     s.warehouse.Ward,
			District: s.warehouse.District,
			Province: s.warehouse.Province,
			Country:  "VN",
		},
		Receiver: carriers.Party{
			Name:     r.Name,
			Phone:    r.Phone,
			Street:   r.Address.Street,
			Ward:     r.Address.Ward,
			District: r.Address.District,
			Province: r.Address.City,
			Country:  r.Address.Country,
		},
		Package: pkg,
		Items:   items,
		Note:    note,
	}
}

func validPackage(pkg carriers.Package) bool {
	return pkg.WeightGrams > 0 && pkg.LengthCm > 0 && pkg.WidthCm > 0 && pkg.HeightCm > 0 && pkg.Value >= 0
}

func (s *service) CreateShipment(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, input CreateInput) (*ShipmentView, error) {
	adapter, err := s.carriers.Get(strings.TrimSpace(input.Carrier))
	if err != nil {
		return nil, err
	}
	pkg := carriers.DefaultPackage()
	if input.Package != nil {
		pkg = *input.Package
	}
	if !validPackage(pkg) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package weight and dimensions must be positive")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ensureShippable(order); err != nil {
		return nil, err
	}
	recipient, err := findRecipient(order, recipientID)
	if err != nil {
		return nil, err
	}
	if err := ensureRecipientShippable(recipient); err != nil {
		return nil, err
	}

	result, err := adapter.CreateShipment(ctx, s.shipmentRequest(order, recipient, pkg))
	if err != nil {
		return nil, err
	}
	return s.persistShipment(ctx, actor, order.ID, recipient.ID, adapter.Code(), result)
}

func findRecipient(order *models.SwagOrder, recipientID uuid.UUID) (*models.RecipientShipment, error) {
	for i := range order.Recipients {
		if order.Recipients[i].ID == recipientID {
			return &order.Recipients[i], nil
		}
	}
	return nil, pkgerrors.NotFound("recipient", recipientID)
}

// persistShipment stores a carrier waybill on the recipient. The recipient is
// re-checked under the order lock; a waybill that lost the race is reported
// so it can be voided at the carrier by hand.
func (s *service) persistShipment(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, carrier string, result *carriers.ShipmentResult) (*ShipmentView, error) {
	var view *ShipmentView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if _, err := repo.Lock(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock swag order")
		}
		recipient, err := repo.FindRecipient(ctx, orderID, recipientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload recipient")
		}
		if recipient.TrackingNumber != nil && *recipient.TrackingNumber != "" {
			return pkgerrors.New(pkgerrors.CodeConflict, "recipient already has a shipment").
				WithDetails(map[string]any{"trackingNumber": *recipient.TrackingNumber, "orphanTrackingNumber": result.TrackingNumber})
		}

		now := s.now().UTC()
		status := result.Status
		if status == "" || status == enums.ShipmentUnknown {
			status = enums.ShipmentCreated
		}
		tracking := result.TrackingNumber
		url := s.carriers.TrackingURL(carrier, tracking)
		recipient.Carrier = &carrier
		recipient.TrackingNumber = &tracking
		recipient.TrackingURL = nilIfEmpty(url)
		recipient.CarrierStatus = &status
		recipient.ShippingFee = result.Fee
		recipient.ShippedAt = &now
		recipient.Status = enums.RecipientShipped
		recipient.FailureReason = nil
		if err := repo.SaveRecipient(ctx, recipient); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "tracking number already assigned").
					WithDetails(map[string]any{"trackingNumber": tracking})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save shipment")
		}
		if _, err := repo.RecomputeStats(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		if err := s.emitStatus(ctx, tx, actor, recipient, "", SourceAdmin); err != nil {
			return err
		}
		view = &ShipmentView{
			RecipientID:       recipient.ID,
			RecipientName:     recipient.Name,
			Carrier:           carrier,
			TrackingNumber:    tracking,
			TrackingURL:       url,
			Status:            status,
			Fee:               result.Fee.String(),
			EstimatedDelivery: result.EstimatedDelivery,
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id":        orderID.String(),
				"recipient_id":    recipientID.String(),
				"carrier":         carrier,
				"tracking_number": result.TrackingNumber,
			}), "carrier waybill created but not stored")
		}
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":        orderID.String(),
		"recipient_id":    recipientID.String(),
		"carrier":         carrier,
		"tracking_number": result.TrackingNumber,
	})
	s.logg.Info(logCtx, "shipment created")
	return view, nil
}

// BulkCreate books waybills for every selected recipient without one.
// Carrier calls run concurrently; each waybill is then stored on its own.
func (s *service) BulkCreate(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input BulkInput) (*BulkResult, error) {
	adapter, err := s.carriers.Get(strings.TrimSpace(input.Carrier))
	if err != nil {
		return nil, err
	}
	pkg := carriers.DefaultPackage()
	if input.Package != nil {
		pkg = *input.Package
	}
	if !validPackage(pkg) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package weight and dimensions must be positive")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ensureShippable(order); err != nil {
		return nil, err
	}

	wanted := map[uuid.UUID]bool{}
	for _, id := range input.RecipientIDs {
		wanted[id] = true
	}
	var targets []*models.RecipientShipment
	for i := range order.Recipients {
		r := &order.Recipients[i]
		if len(wanted) > 0 && !wanted[r.ID] {
			continue
		}
		if r.TrackingNumber != nil && *r.TrackingNumber != "" {
			continue
		}
		if r.Status == enums.RecipientCancelled || r.Status == enums.RecipientDelivered {
			continue
		}
		targets = append(targets, r)
	}
	if len(targets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "all selected recipients already have shipments")
	}

	type outcome struct {
		result *carriers.ShipmentResult
		err    error
	}
	outcomes := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, r := range targets {
		if err := ensureRecipientShippable(r); err != nil {
			outcomes[i] = outcome{err: err}
			continue
		}
		req := s.shipmentRequest(order, r, pkg)
		g.Go(func() error {
			res, err := adapter.CreateShipment(gctx, req)
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := &BulkResult{Results: []ShipmentView{}, Errors: []BulkError{}}
	for i, r := range targets {
		o := outcomes[i]
		if o.err == nil {
			view, err := s.persistShipment(ctx, actor, order.ID, r.ID, adapter.Code(), o.result)
			if err == nil {
				out.Results = append(out.Results, *view)
				continue
			}
			o.err = err
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"recipient_id": r.ID.String(),
			"error":        o.err.Error(),
		}), "bulk shipment failed for recipient")
		out.Errors = append(out.Errors, BulkError{RecipientID: r.ID, RecipientName: r.Name, Error: o.err.Error()})
	}
	sort.SliceStable(out.Results, func(i, j int) bool { return out.Results[i].RecipientName < out.Results[j].RecipientName })
	out.Success = len(out.Results)
	out.Failed = len(out.Errors)

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "success": out.Success, "failed": out.Failed})
	s.logg.Info(logCtx, "bulk shipments created")
	return out, nil
}

func (s *service) Track(ctx context.Context, orderID, recipientID uuid.UUID) (*TrackingView, error) {
	recipient, err := s.shippedRecipient(ctx, orderID, recipientID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.carriers.Get(*recipient.Carrier)
	if err != nil {
		return nil, err
	}
	tracking, err := adapter.TrackShipment(ctx, *recipient.TrackingNumber)
	if err != nil {
		return nil, err
	}
	updated, err := s.apply(ctx, auditlog.Actor{}, *recipient.TrackingNumber, tracking.Status, "", nil, SourceTrack)
	if err != nil {
		return nil, err
	}
	return &TrackingView{Recipient: *updated, Tracking: tracking}, nil
}

func (s *service) shippedRecipient(ctx context.Context, orderID, recipientID uuid.UUID) (*models.RecipientShipment, error) {
	recipient, err := s.orders.FindRecipient(ctx, orderID, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("recipient", recipientID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recipient")
	}
	if recipient.TrackingNumber == nil || *recipient.TrackingNumber == "" || recipient.Carrier == nil {
		return nil, pkgerrors.NotFound("shipment", recipientID)
	}
	return recipient, nil
}

// Cancel voids the waybill at the carrier and returns the recipient to
// processing so a new shipment can be booked.
func (s *service) Cancel(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, reason string) (*models.RecipientShipment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason is required")
	}
	recipient, err := s.shippedRecipient(ctx, orderID, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.Status == enums.RecipientDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivered shipments cannot be cancelled")
	}
	adapter, err := s.carriers.Get(*recipient.Carrier)
	if err != nil {
		return nil, err
	}
	tracking := *recipient.TrackingNumber
	if err := adapter.CancelShipment(ctx, tracking); err != nil {
		return nil, err
	}

	var saved *models.RecipientShipment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if _, err := repo.Lock(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock swag order")
		}
		row, err := repo.FindRecipient(ctx, orderID, recipientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload recipient")
		}
		previous := derefStatus(row.CarrierStatus)
		s.detach(row, reason)
		if err := repo.SaveRecipient(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cancelled shipment")
		}
		if _, err := repo.RecomputeStats(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		if err := s.emitStatus(ctx, tx, actor, row, previous, SourceAdmin); err != nil {
			return err
		}
		saved = row
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionShipmentCancelled,
			ResourceType: "recipient_shipment",
			ResourceID:   row.ID.String(),
			Details:      map[string]any{"orderId": orderID.String(), "trackingNumber": tracking, "reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "tracking_number": tracking})
	s.logg.Info(logCtx, "shipment cancelled")
	return saved, nil
}

// detach moves the live waybill into the cancel history fields.
func (s *service) detach(r *models.RecipientShipment, reason string) {
	now := s.now().UTC()
	cancelled := enums.ShipmentCancelled
	r.CancelledTrackingNumber = r.TrackingNumber
	r.TrackingNumber = nil
	r.TrackingURL = nil
	r.CarrierStatus = &cancelled
	r.CancelledAt = &now
	r.CancelReason = &reason
	r.ShippedAt = nil
	r.Status = enums.RecipientProcessing
}

func (s *service) ApplyCarrierUpdate(ctx context.Context, carrier string, update carriers.WebhookUpdate) error {
	recipient, err := s.orders.FindRecipientByTracking(ctx, update.TrackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.NotFound("shipment", update.TrackingNumber)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	if recipient.Carrier == nil || *recipient.Carrier != carrier {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, carriers.ErrForeignTracking, "ignore carrier update").
			WithDetails(map[string]any{"trackingNumber": update.TrackingNumber, "carrier": carrier})
	}
	_, err = s.apply(ctx, auditlog.Actor{}, update.TrackingNumber, update.Status, update.Reason, update.OccurredAt, SourceWebhook)
	return err
}

// apply records a carrier status on the recipient holding tracking and
// projects it onto the recipient lifecycle.
func (s *service) apply(ctx context.Context, actor auditlog.Actor, tracking string, status enums.ShipmentStatus, reason string, at *time.Time, source string) (*models.RecipientShipment, error) {
	var saved *models.RecipientShipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		row, err := repo.FindRecipientByTracking(ctx, tracking)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("shipment", tracking)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
		}
		if _, err := repo.Lock(ctx, row.SwagOrderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock swag order")
		}
		now := s.now().UTC()
		row.LastTrackedAt = &now
		saved = row

		previous := derefStatus(row.CarrierStatus)
		if status == "" || status == enums.ShipmentUnknown || status == previous || !s.accepts(row, status) {
			return repo.SaveRecipient(ctx, row)
		}
		row.CarrierStatus = &status
		when := now
		if at != nil {
			when = *at
		}
		switch status {
		case enums.ShipmentCancelled:
			if reason == "" {
				reason = "cancelled by carrier"
			}
			s.detach(row, reason)
		case enums.ShipmentDelivered:
			row.DeliveredAt = &when
			row.FailureReason = nil
		case enums.ShipmentFailed, enums.ShipmentReturned:
			if reason == "" {
				reason = "carrier reported " + string(status)
			}
			row.FailureReason = &reason
		}
		if next, ok := status.RecipientStatus(); ok && status != enums.ShipmentCancelled {
			row.Status = next
		}
		if err := repo.SaveRecipient(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save shipment status")
		}
		if _, err := repo.RecomputeStats(ctx, row.SwagOrderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		return s.emitStatus(ctx, tx, actor, row, previous, source)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// accepts drops updates that would move a finished recipient backwards.
// Carriers replay old scans and a delivered parcel only moves on to returned.
func (s *service) accepts(r *models.RecipientShipment, status enums.ShipmentStatus) bool {
	switch r.Status {
	case enums.RecipientCancelled:
		return false
	case enums.RecipientDelivered:
		return status == enums.ShipmentReturned
	}
	return true
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, actor auditlog.Actor, r *models.RecipientShipment, previous enums.ShipmentStatus, source string) error {
	tracking := ""
	if r.TrackingNumber != nil {
		tracking = *r.TrackingNumber
	} else if r.CancelledTrackingNumber != nil {
		tracking = *r.CancelledTrackingNumber
	}
	carrier := ""
	if r.Carrier != nil {
		carrier = *r.Carrier
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventShipmentStatusChanged,
		AggregateType: enums.AggregateShipment,
		AggregateID:   r.ID,
		Data: payloads.ShipmentStatusChangedEvent{
			RecipientID:    r.ID,
			OrderID:        r.SwagOrderID,
			Carrier:        carrier,
			TrackingNumber: tracking,
			Status:         derefStatus(r.CarrierStatus),
			PreviousStatus: previous,
			Source:         source,
		},
	}
	if actor.UserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	return s.outbox.Emit(ctx, tx, event)
}

func derefStatus(s *enums.ShipmentStatus) enums.ShipmentStatus {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
