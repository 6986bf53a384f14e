package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/types"
)

const (
	// DefaultBasePrice is used when a formula has no tiers at all.
	DefaultBasePrice = 1000.0

	doubleSidedMultiplier = 1.8
	colorStep             = 0.1
	cmPerInch             = 2.54
)

type Size struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
	Unit   string  `json:"unit" validate:"omitempty,oneof=mm cm inch"`
}

// Specification describes the product being quoted.
type Specification struct {
	ProductType      string   `json:"productType" validate:"required"`
	PaperType        string   `json:"paperType" validate:"required"`
	PrintSides       string   `json:"printSides" validate:"required,oneof=single double"`
	FinishingOptions []string `json:"finishingOptions"`
	Size             Size     `json:"size"`
	Quantity         int      `json:"quantity" validate:"gte=1"`
	Colors           int      `json:"colors" validate:"gte=1"`
}

type Breakdown struct {
	FinishingDetails map[string]float64 `json:"finishingDetails"`
	BaseCost         float64            `json:"baseCost"`
	PaperCost        float64            `json:"paperCost"`
	PrintingCost     float64            `json:"printingCost"`
	FinishingCost    float64            `json:"finishingCost"`
	QuantityDiscount float64            `json:"quantityDiscount"`
	TotalCost        float64            `json:"totalCost"`
}

type Quote struct {
	CalculatedAt     time.Time            `json:"calculatedAt"`
	AppliedTier      *models.QuantityTier `json:"appliedTier,omitempty"`
	FormulaName      string               `json:"formulaName"`
	WarningMessage   string               `json:"warningMessage,omitempty"`
	Breakdown        Breakdown            `json:"breakdown"`
	CostPrice        float64              `json:"costPrice"`
	SellingPrice     float64              `json:"sellingPrice"`
	ProfitMargin     float64              `json:"profitMargin"`
	MarginPercentage float64              `json:"marginPercentage"`
	FormulaID        uuid.UUID            `json:"formulaId"`
	MarginWarning    bool                 `json:"marginWarning"`
}

// FormulaInput is shared by create and full update.
type FormulaInput struct {
	ProductType      string                `json:"productType" validate:"required,max=100"`
	Name             string                `json:"name" validate:"required,max=200"`
	Formula          string                `json:"formula" validate:"required"`
	PaperMultipliers map[string]float64    `json:"paperMultipliers"`
	FinishingCosts   map[string]float64    `json:"finishingCosts"`
	IsActive         *bool                 `json:"isActive,omitempty"`
	QuantityTiers    []models.QuantityTier `json:"quantityTiers" validate:"dive"`
	MinMargin        float64               `json:"minMargin" validate:"gte=0"`
}

type Service interface {
	List(ctx context.Context, productType string, activeOnly bool) ([]models.PricingFormula, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PricingFormula, error)
	Create(ctx context.Context, input FormulaInput) (*models.PricingFormula, error)
	Update(ctx context.Context, id uuid.UUID, input FormulaInput) (*models.PricingFormula, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Calculate(ctx context.Context, spec Specification) (*Quote, error)
	Tiers(ctx context.Context, productType string) ([]models.QuantityTier, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, productType string, activeOnly bool) ([]models.PricingFormula, error) {
	rows, err := s.repo.List(ctx, strings.TrimSpace(productType), activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pricing formulas")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PricingFormula, error) {
	formula, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("pricing formula", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pricing formula")
	}
	return formula, nil
}

func (s *service) Create(ctx context.Context, input FormulaInput) (*models.PricingFormula, error) {
	formula := &models.PricingFormula{}
	if err := applyInput(formula, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, formula); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert pricing formula")
	}
	return formula, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input FormulaInput) (*models.PricingFormula, error) {
	formula, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyInput(formula, input); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, formula); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update pricing formula")
	}
	return formula, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete pricing formula")
	}
	if !ok {
		return pkgerrors.NotFound("pricing formula", id)
	}
	return nil
}

// Tiers returns the quantity tiers of the active formula, or none when the
// product type has no active formula.
func (s *service) Tiers(ctx context.Context, productType string) ([]models.QuantityTier, error) {
	formula, err := s.repo.FindActive(ctx, strings.TrimSpace(productType))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.QuantityTier{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pricing formula")
	}
	tiers := sortedTiers(formula.QuantityTiers.V)
	if tiers == nil {
		tiers = []models.QuantityTier{}
	}
	return tiers, nil
}

func (s *service) Calculate(ctx context.Context, spec Specification) (*Quote, error) {
	if err := validateSpecification(spec); err != nil {
		return nil, err
	}
	productType := strings.TrimSpace(spec.ProductType)
	record, err := s.repo.FindActive(ctx, productType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("pricing formula", productType)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pricing formula")
	}
	formula, err := Compile(record.Formula)
	if err != nil {
		return nil, err
	}

	tiers := record.QuantityTiers.V
	tier := ApplicableTier(tiers, spec.Quantity)
	basePrice := DefaultBasePrice
	switch {
	case tier != nil:
		basePrice = tier.PricePerUnit
	case len(tiers) > 0:
		basePrice = tiers[0].PricePerUnit
	}

	paperMultiplier := 1.0
	if m, ok := record.PaperMultipliers.V[spec.PaperType]; ok && m != 0 {
		paperMultiplier = m
	}
	finishingTotal, finishingDetails := finishingCosts(record.FinishingCosts.V, spec.FinishingOptions)
	printSidesMultiplier := 1.0
	if spec.PrintSides == "double" {
		printSidesMultiplier = doubleSidedMultiplier
	}
	colorMultiplier := 1 + float64(spec.Colors-1)*colorStep

	raw, err := formula.Evaluate(map[string]float64{
		VarQuantity:             float64(spec.Quantity),
		VarWidth:                spec.Size.Width,
		VarHeight:               spec.Size.Height,
		VarArea:                 Area(spec.Size),
		VarPaperMultiplier:      paperMultiplier,
		VarPrintSidesMultiplier: printSidesMultiplier,
		VarColorMultiplier:      colorMultiplier,
		VarBasePrice:            basePrice,
		VarFinishingCost:        finishingTotal,
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"formula_id": record.ID.String(), "product_type": productType})
		s.logg.Warn(logCtx, "pricing formula evaluation failed")
		return nil, err
	}
	cost := math.Ceil(raw)

	discount := 0.0
	if tier != nil && tier.Discount > 0 {
		discount = cost * tier.Discount / 100
	}
	finalCost := cost - discount
	if finalCost <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "formula produced a non-positive cost").
			WithDetails(map[string]any{"costPrice": finalCost})
	}
	selling := math.Ceil(finalCost * (1 + record.MinMargin/100))
	profit := selling - finalCost
	marginPct := math.Round(profit/finalCost*100*100) / 100

	quantity := float64(spec.Quantity)
	quote := &Quote{
		CostPrice:        finalCost,
		SellingPrice:     selling,
		ProfitMargin:     profit,
		MarginPercentage: marginPct,
		Breakdown: Breakdown{
			BaseCost:         basePrice * quantity,
			PaperCost:        basePrice * quantity * (paperMultiplier - 1),
			PrintingCost:     basePrice * quantity * (printSidesMultiplier - 1) * colorMultiplier,
			FinishingCost:    finishingTotal * quantity,
			FinishingDetails: finishingDetails,
			QuantityDiscount: discount,
			TotalCost:        finalCost,
		},
		CalculatedAt: s.now().UTC(),
		FormulaID:    record.ID,
		FormulaName:  record.Name,
		AppliedTier:  tier,
	}
	if marginPct < record.MinMargin {
		quote.MarginWarning = true
		quote.WarningMessage = fmt.Sprintf("margin %.2f%% is below the minimum %.2f%%", marginPct, record.MinMargin)
	}
	return quote, nil
}

// Area converts the size to square centimetres.
func Area(size Size) float64 {
	width, height := size.Width, size.Height
	switch size.Unit {
	case "mm":
		width /= 10
		height /= 10
	case "inch":
		width *= cmPerInch
		height *= cmPerInch
	}
	return width * height
}

// ApplicableTier picks the tier covering quantity. Quantities above every
// tier use the highest one; quantities below every tier match none.
func ApplicableTier(tiers []models.QuantityTier, quantity int) *models.QuantityTier {
	sorted := sortedTiers(tiers)
	if len(sorted) == 0 {
		return nil
	}
	for i := range sorted {
		if quantity >= sorted[i].MinQuantity && quantity <= sorted[i].MaxQuantity {
			return &sorted[i]
		}
	}
	highest := sorted[len(sorted)-1]
	if quantity > highest.MaxQuantity {
		return &highest
	}
	return nil
}

func sortedTiers(tiers []models.QuantityTier) []models.QuantityTier {
	if len(tiers) == 0 {
		return nil
	}
	sorted := append([]models.QuantityTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinQuantity < sorted[j].MinQuantity })
	return sorted
}

func finishingCosts(costs map[string]float64, options []string) (float64, map[string]float64) {
	details := make(map[string]float64, len(options))
	total := 0.0
	for _, option := range options {
		cost := costs[option]
		details[option] = cost
		total += cost
	}
	return total, details
}

func validateSpecification(spec Specification) error {
	switch {
	case strings.TrimSpace(spec.ProductType) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "productType is required")
	case spec.Size.Width <= 0 || spec.Size.Height <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "size must be positive")
	case spec.Size.Unit != "" && spec.Size.Unit != "mm" && spec.Size.Unit != "cm" && spec.Size.Unit != "inch":
		return pkgerrors.New(pkgerrors.CodeValidation, "size unit must be mm, cm or inch")
	case spec.Quantity < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	case strings.TrimSpace(spec.PaperType) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "paperType is required")
	case spec.PrintSides != "single" && spec.PrintSides != "double":
		return pkgerrors.New(pkgerrors.CodeValidation, "printSides must be single or double")
	case spec.Colors < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "colors must be at least 1")
	}
	return nil
}

func applyInput(formula *models.PricingFormula, input FormulaInput) error {
	productType := strings.TrimSpace(input.ProductType)
	name := strings.TrimSpace(input.Name)
	if productType == "" || name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productType and name are required")
	}
	compiled, err := Compile(input.Formula)
	if err != nil {
		return err
	}
	if input.MinMargin < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "minMargin must not be negative")
	}
	for i, tier := range input.QuantityTiers {
		if tier.MinQuantity < 1 || tier.MaxQuantity < tier.MinQuantity || tier.PricePerUnit <= 0 || tier.Discount < 0 || tier.Discount > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid quantity tier").
				WithDetails(map[string]any{"index": i})
		}
	}

	formula.ProductType = productType
	formula.Name = name
	formula.Formula = compiled.String()
	formula.QuantityTiers = types.NewJSON(sortedTiers(input.QuantityTiers))
	formula.PaperMultipliers = types.NewJSON(input.PaperMultipliers)
	formula.FinishingCosts = types.NewJSON(input.FinishingCosts)
	formula.MinMargin = input.MinMargin
	if input.IsActive != nil {
		formula.IsActive = *input.IsActive
	} else if formula.ID == uuid.Nil {
		formula.IsActive = true
	}
	return nil
}
