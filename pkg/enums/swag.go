package enums

type SwagPackStatus string

const (
	SwagPackDraft    SwagPackStatus = "draft"
	SwagPackActive   SwagPackStatus = "active"
	SwagPackArchived SwagPackStatus = "archived"
)

var ValidSwagPackStatuses = []SwagPackStatus{SwagPackDraft, SwagPackActive, SwagPackArchived}

func (s SwagPackStatus) IsValid() bool { return contains(ValidSwagPackStatuses, s) }

func ParseSwagPackStatus(value string) (SwagPackStatus, error) {
	return parse("swag pack status", ValidSwagPackStatuses, value)
}

// SwagOrderStatus is the top-level lifecycle of a corporate gifting order.
type SwagOrderStatus string

const (
	SwagOrderDraft          SwagOrderStatus = "draft"
	SwagOrderPendingInfo    SwagOrderStatus = "pending_info"
	SwagOrderPendingPayment SwagOrderStatus = "pending_payment"
	SwagOrderPaid           SwagOrderStatus = "paid"
	SwagOrderProcessing     SwagOrderStatus = "processing"
	SwagOrderKitting        SwagOrderStatus = "kitting"
	SwagOrderShipped        SwagOrderStatus = "shipped"
	SwagOrderDelivered      SwagOrderStatus = "delivered"
	SwagOrderCancelled      SwagOrderStatus = "cancelled"
	SwagOrderFailed         SwagOrderStatus = "failed"
)

var ValidSwagOrderStatuses = []SwagOrderStatus{
	SwagOrderDraft,
	SwagOrderPendingInfo,
	SwagOrderPendingPayment,
	SwagOrderPaid,
	SwagOrderProcessing,
	SwagOrderKitting,
	SwagOrderShipped,
	SwagOrderDelivered,
	SwagOrderCancelled,
	SwagOrderFailed,
}

func (s SwagOrderStatus) IsValid() bool { return contains(ValidSwagOrderStatuses, s) }

// IsPrePayment reports whether recipients and pricing may still change.
func (s SwagOrderStatus) IsPrePayment() bool {
	return s == SwagOrderDraft || s == SwagOrderPendingInfo || s == SwagOrderPendingPayment
}

func ParseSwagOrderStatus(value string) (SwagOrderStatus, error) {
	return parse("swag order status", ValidSwagOrderStatuses, value)
}

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

var ValidShippingMethods = []ShippingMethod{ShippingStandard, ShippingExpress, ShippingOvernight}

func (m ShippingMethod) IsValid() bool { return contains(ValidShippingMethods, m) }

func ParseShippingMethod(value string) (ShippingMethod, error) {
	return parse("shipping method", ValidShippingMethods, value)
}

type ProductionStatus string

const (
	ProductionPending    ProductionStatus = "pending"
	ProductionInProgress ProductionStatus = "in_progress"
	ProductionCompleted  ProductionStatus = "completed"
)

var ValidProductionStatuses = []ProductionStatus{ProductionPending, ProductionInProgress, ProductionCompleted}

func (s ProductionStatus) IsValid() bool { return contains(ValidProductionStatuses, s) }

type QCStatus string

const (
	QCPending QCStatus = "pending"
	QCPassed  QCStatus = "passed"
	QCFailed  QCStatus = "failed"
)

var ValidQCStatuses = []QCStatus{QCPending, QCPassed, QCFailed}

func (s QCStatus) IsValid() bool { return contains(ValidQCStatuses, s) }

type KittingStatus string

const (
	KittingPending    KittingStatus = "pending"
	KittingInProgress KittingStatus = "in_progress"
	KittingCompleted  KittingStatus = "completed"
)

var ValidKittingStatuses = []KittingStatus{KittingPending, KittingInProgress, KittingCompleted}

func (s KittingStatus) IsValid() bool { return contains(ValidKittingStatuses, s) }

func ParseKittingStatus(value string) (KittingStatus, error) {
	return parse("kitting status", ValidKittingStatuses, value)
}

// RecipientStatus tracks each recipient of a swag order through delivery.
type RecipientStatus string

const (
	RecipientPending        RecipientStatus = "pending"
	RecipientProcessing     RecipientStatus = "processing"
	RecipientShipped        RecipientStatus = "shipped"
	RecipientInTransit      RecipientStatus = "in_transit"
	RecipientOutForDelivery RecipientStatus = "out_for_delivery"
	RecipientDelivered      RecipientStatus = "delivered"
	RecipientFailed         RecipientStatus = "failed"
	RecipientReturned       RecipientStatus = "returned"
	RecipientCancelled      RecipientStatus = "cancelled"
)

var ValidRecipientStatuses = []RecipientStatus{
	RecipientPending,
	RecipientProcessing,
	RecipientShipped,
	RecipientInTransit,
	RecipientOutForDelivery,
	RecipientDelivered,
	RecipientFailed,
	RecipientReturned,
	RecipientCancelled,
}

func (s RecipientStatus) IsValid() bool { return contains(ValidRecipientStatuses, s) }

// IsInFlight reports whether the parcel has left the warehouse but is not yet final.
func (s RecipientStatus) IsInFlight() bool {
	return s == RecipientShipped || s == RecipientInTransit || s == RecipientOutForDelivery
}
