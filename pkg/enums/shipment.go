package enums

// ShipmentStatus is the carrier-neutral parcel status every adapter maps into.
type ShipmentStatus string

const (
	ShipmentCreated        ShipmentStatus = "created"
	ShipmentPickedUp       ShipmentStatus = "picked_up"
	ShipmentInTransit      ShipmentStatus = "in_transit"
	ShipmentOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentDelivered      ShipmentStatus = "delivered"
	ShipmentReturned       ShipmentStatus = "returned"
	ShipmentCancelled      ShipmentStatus = "cancelled"
	ShipmentFailed         ShipmentStatus = "failed"
	ShipmentUnknown        ShipmentStatus = "unknown"
)

var ValidShipmentStatuses = []ShipmentStatus{
	ShipmentCreated,
	ShipmentPickedUp,
	ShipmentInTransit,
	ShipmentOutForDelivery,
	ShipmentDelivered,
	ShipmentReturned,
	ShipmentCancelled,
	ShipmentFailed,
	ShipmentUnknown,
}

func (s ShipmentStatus) IsValid() bool { return contains(ValidShipmentStatuses, s) }

// ParseShipmentStatus never fails: unrecognized values collapse to ShipmentUnknown.
func ParseShipmentStatus(value string) ShipmentStatus {
	status, err := parse("shipment status", ValidShipmentStatuses, value)
	if err != nil {
		return ShipmentUnknown
	}
	return status
}

// RecipientStatus projects a carrier status onto the recipient lifecycle.
// The second return is false when the recipient should not change.
func (s ShipmentStatus) RecipientStatus() (RecipientStatus, bool) {
	switch s {
	case ShipmentCreated, ShipmentPickedUp:
		return RecipientShipped, true
	case ShipmentInTransit:
		return RecipientInTransit, true
	case ShipmentOutForDelivery:
		return RecipientOutForDelivery, true
	case ShipmentDelivered:
		return RecipientDelivered, true
	case ShipmentReturned:
		return RecipientReturned, true
	case ShipmentFailed:
		return RecipientFailed, true
	case ShipmentCancelled:
		return RecipientProcessing, true
	}
	return "", false
}
