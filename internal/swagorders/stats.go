package swagorders

import (
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Stats buckets recipients for the order summary.
func Stats(recipients []models.RecipientShipment) models.SwagOrderStats {
	var stats models.SwagOrderStats
	for _, r := range recipients {
		switch {
		case r.Status == enums.RecipientPending && !r.Address.IsComplete():
			stats.PendingInfo++
		case r.Status == enums.RecipientProcessing:
			stats.Processing++
		case r.Status.IsInFlight():
			stats.Shipped++
		case r.Status == enums.RecipientDelivered:
			stats.Delivered++
		case r.Status == enums.RecipientFailed || r.Status == enums.RecipientReturned:
			stats.Failed++
		}
	}
	return stats
}

// RollupStatus derives the order status after recipient changes. Orders that
// are cancelled or not yet paid only move between pending_info and
// pending_payment; post-kitting orders follow their parcels.
func RollupStatus(current enums.SwagOrderStatus, recipients []models.RecipientShipment) enums.SwagOrderStatus {
	switch {
	case current == enums.SwagOrderCancelled:
		return current
	case current == enums.SwagOrderPendingInfo || current == enums.SwagOrderPendingPayment:
		if allAddressed(recipients) {
			return enums.SwagOrderPendingPayment
		}
		return enums.SwagOrderPendingInfo
	case current.IsPrePayment() || len(recipients) == 0:
		return current
	}

	var delivered, inFlight, waiting, failed, live int
	for _, r := range recipients {
		if r.Status == enums.RecipientCancelled {
			continue
		}
		live++
		switch {
		case r.Status == enums.RecipientDelivered:
			delivered++
		case r.Status.IsInFlight():
			inFlight++
		case r.Status == enums.RecipientFailed || r.Status == enums.RecipientReturned:
			failed++
		default:
			waiting++
		}
	}
	switch {
	case live == 0:
		return current
	case delivered == live:
		return enums.SwagOrderDelivered
	case waiting > 0:
		return current
	case inFlight > 0 || delivered > 0:
		return enums.SwagOrderShipped
	case failed == live:
		return enums.SwagOrderFailed
	}
	return current
}

func allAddressed(recipients []models.RecipientShipment) bool {
	if len(recipients) == 0 {
		return false
	}
	for _, r := range recipients {
		if !r.Address.IsComplete() {
			return false
		}
	}
	return true
}
