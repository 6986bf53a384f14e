package swagorders

import (
	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Fees are the per-recipient charges added on top of the pack price.
type Fees struct {
	KittingPerRecipient decimal.Decimal
	TaxPercent          decimal.Decimal
	Shipping            map[enums.ShippingMethod]decimal.Decimal
}

func FeesFromConfig(cfg config.FulfillmentConfig) Fees {
	return Fees{
		KittingPerRecipient: decimal.NewFromInt(cfg.KittingFeePerRecipient),
		TaxPercent:          decimal.NewFromInt(cfg.TaxPercent),
		Shipping: map[enums.ShippingMethod]decimal.Decimal{
			enums.ShippingStandard:  decimal.NewFromInt(cfg.StandardShippingFee),
			enums.ShippingExpress:   decimal.NewFromInt(cfg.ExpressShippingFee),
			enums.ShippingOvernight: decimal.NewFromInt(cfg.OvernightShippingFee),
		},
	}
}

// DefaultFees matches the production defaults.
func DefaultFees() Fees {
	return FeesFromConfig(config.FulfillmentConfig{
		KittingFeePerRecipient: 5000,
		TaxPercent:             10,
		StandardShippingFee:    30000,
		ExpressShippingFee:     50000,
		OvernightShippingFee:   80000,
	})
}

var hundred = decimal.NewFromInt(100)

// Quote prices an order. Tax applies to packs and kitting, not shipping, and
// is rounded to whole dong. The total never drops below zero.
func Quote(packPrice decimal.Decimal, recipients int, method enums.ShippingMethod, discount decimal.Decimal, fees Fees) models.SwagOrderPricing {
	n := decimal.NewFromInt(int64(recipients))
	packs := packPrice.Mul(n)
	shipping := fees.Shipping[method].Mul(n)
	kitting := fees.KittingPerRecipient.Mul(n)
	tax := packs.Add(kitting).Mul(fees.TaxPercent).Div(hundred).Round(0)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	total := packs.Add(shipping).Add(kitting).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return models.SwagOrderPricing{
		PackPrice:      packPrice,
		TotalPacksCost: packs,
		ShippingCost:   shipping,
		KittingFee:     kitting,
		Tax:            tax,
		Discount:       discount,
		Total:          total,
	}
}
