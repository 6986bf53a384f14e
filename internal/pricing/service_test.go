package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t, "pricing")), nil)
	require.NoError(t, err)
	return svc
}

var flyerTiers = []models.QuantityTier{
	{MinQuantity: 500, MaxQuantity: 999, PricePerUnit: 1200, Discount: 10},
	{MinQuantity: 1, MaxQuantity: 99, PricePerUnit: 2000},
	{MinQuantity: 100, MaxQuantity: 499, PricePerUnit: 1500, Discount: 5},
}

func flyerFormula() FormulaInput {
	return FormulaInput{
		ProductType:      "flyer",
		Name:             "Flyer standard",
		Formula:          "basePrice * quantity * paperMultiplier * printSidesMultiplier * colorMultiplier + finishingCost * quantity",
		QuantityTiers:    flyerTiers,
		PaperMultipliers: map[string]float64{"couche": 1.25},
		FinishingCosts:   map[string]float64{"lamination": 300, "die-cut": 500},
		MinMargin:        25,
	}
}

func TestCalculateAppliesTierPaperFinishingAndMargin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	formula, err := svc.Create(ctx, flyerFormula())
	require.NoError(t, err)
	require.True(t, formula.IsActive)

	quote, err := svc.Calculate(ctx, Specification{
		ProductType:      "flyer",
		Size:             Size{Width: 210, Height: 297, Unit: "mm"},
		PaperType:        "couche",
		Quantity:         200,
		FinishingOptions: []string{"lamination"},
		PrintSides:       "single",
		Colors:           1,
	})
	require.NoError(t, err)

	// 1500*200*1.25 + 300*200 = 435000, minus the 5% tier discount.
	require.Equal(t, 413250.0, quote.CostPrice)
	require.Equal(t, 516563.0, quote.SellingPrice)
	require.Equal(t, 103313.0, quote.ProfitMargin)
	require.Equal(t, 25.0, quote.MarginPercentage)
	require.False(t, quote.MarginWarning)
	require.NotNil(t, quote.AppliedTier)
	require.Equal(t, 100, quote.AppliedTier.MinQuantity)
	require.Equal(t, formula.ID, quote.FormulaID)
	require.Equal(t, 21750.0, quote.Breakdown.QuantityDiscount)
	require.Equal(t, 300000.0, quote.Breakdown.BaseCost)
	require.Equal(t, 75000.0, quote.Breakdown.PaperCost)
	require.Equal(t, 60000.0, quote.Breakdown.FinishingCost)
	require.Equal(t, map[string]float64{"lamination": 300}, quote.Breakdown.FinishingDetails)
}

func TestCalculateDoubleSidedAndColors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, flyerFormula())
	require.NoError(t, err)

	spec := Specification{ProductType: "flyer", Size: Size{Width: 10, Height: 15}, PaperType: "kraft", Quantity: 50, PrintSides: "double", Colors: 4}
	quote, err := svc.Calculate(ctx, spec)
	require.NoError(t, err)
	// 2000*50*1*1.8*1.3 = 234000, no discount on the first tier.
	require.InDelta(t, 234000, quote.CostPrice, 1)
	require.InDelta(t, 2000*50*0.8*1.3, quote.Breakdown.PrintingCost, 1e-6)
	require.Zero(t, quote.Breakdown.PaperCost)
}

func TestCalculateTierEdges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	input := flyerFormula()
	input.Formula = "basePrice * quantity"
	input.MinMargin = 0
	_, err := svc.Create(ctx, input)
	require.NoError(t, err)

	above, err := svc.Calculate(ctx, Specification{ProductType: "flyer", Size: Size{Width: 1, Height: 1}, PaperType: "x", Quantity: 2000, PrintSides: "single", Colors: 1})
	require.NoError(t, err)
	require.Equal(t, 500, above.AppliedTier.MinQuantity)
	require.Equal(t, 1200.0*2000*0.9, above.CostPrice)

	noTiers := FormulaInput{ProductType: "sticker", Name: "Sticker", Formula: "basePrice * quantity"}
	_, err = svc.Create(ctx, noTiers)
	require.NoError(t, err)
	fallback, err := svc.Calculate(ctx, Specification{ProductType: "sticker", Size: Size{Width: 5, Height: 5, Unit: "cm"}, PaperType: "vinyl", Quantity: 3, PrintSides: "single", Colors: 1})
	require.NoError(t, err)
	require.Nil(t, fallback.AppliedTier)
	require.Equal(t, 3*DefaultBasePrice, fallback.CostPrice)
	require.Equal(t, fallback.CostPrice, fallback.SellingPrice)
}

func TestApplicableTierBelowAllTiers(t *testing.T) {
	tiers := []models.QuantityTier{{MinQuantity: 10, MaxQuantity: 20, PricePerUnit: 5}}
	require.Nil(t, ApplicableTier(tiers, 5))
	require.Nil(t, ApplicableTier(nil, 5))
	require.Equal(t, 10, ApplicableTier(tiers, 25).MinQuantity)
}

func TestAreaConvertsUnits(t *testing.T) {
	require.InDelta(t, 6.0, Area(Size{Width: 20, Height: 30, Unit: "mm"}), 1e-9)
	require.InDelta(t, 6.0, Area(Size{Width: 2, Height: 3}), 1e-9)
	require.InDelta(t, 2.54*2.54, Area(Size{Width: 1, Height: 1, Unit: "inch"}), 1e-9)
}

func TestCalculateErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	valid := Specification{ProductType: "card", Size: Size{Width: 9, Height: 5}, PaperType: "x", Quantity: 1, PrintSides: "single", Colors: 1}

	_, err := svc.Calculate(ctx, valid)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	for _, bad := range []Specification{
		{Size: valid.Size, PaperType: "x", Quantity: 1, PrintSides: "single", Colors: 1},
		{ProductType: "card", Size: Size{Width: 0, Height: 5}, PaperType: "x", Quantity: 1, PrintSides: "single", Colors: 1},
		{ProductType: "card", Size: Size{Width: 1, Height: 5, Unit: "ft"}, PaperType: "x", Quantity: 1, PrintSides: "single", Colors: 1},
		{ProductType: "card", Size: valid.Size, PaperType: "x", Quantity: 0, PrintSides: "single", Colors: 1},
		{ProductType: "card", Size: valid.Size, PaperType: "x", Quantity: 1, PrintSides: "triple", Colors: 1},
		{ProductType: "card", Size: valid.Size, PaperType: "x", Quantity: 1, PrintSides: "single", Colors: 0},
	} {
		_, err := svc.Calculate(ctx, bad)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v: %v", bad, err)
	}

	_, err = svc.Create(ctx, FormulaInput{ProductType: "card", Name: "Broken", Formula: "basePrice / (quantity - 1)"})
	require.NoError(t, err)
	_, err = svc.Calculate(ctx, valid)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFormulaCRUDValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, FormulaInput{ProductType: "banner", Name: "Bad", Formula: "eval(basePrice)"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, FormulaInput{ProductType: "banner", Name: "Bad tier", Formula: "basePrice", QuantityTiers: []models.QuantityTier{{MinQuantity: 10, MaxQuantity: 5, PricePerUnit: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	created, err := svc.Create(ctx, flyerFormula())
	require.NoError(t, err)
	tiers, err := svc.Tiers(ctx, "flyer")
	require.NoError(t, err)
	require.Equal(t, []int{1, 100, 500}, []int{tiers[0].MinQuantity, tiers[1].MinQuantity, tiers[2].MinQuantity})

	inactive := false
	input := flyerFormula()
	input.IsActive = &inactive
	updated, err := svc.Update(ctx, created.ID, input)
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	tiers, err = svc.Tiers(ctx, "flyer")
	require.NoError(t, err)
	require.Empty(t, tiers)

	active, err := svc.List(ctx, "", true)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, created.ID), pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
