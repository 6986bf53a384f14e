package pricing

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

// Variables a formula may reference.
const (
	VarQuantity             = "quantity"
	VarWidth                = "width"
	VarHeight               = "height"
	VarArea                 = "area"
	VarPaperMultiplier      = "paperMultiplier"
	VarPrintSidesMultiplier = "printSidesMultiplier"
	VarColorMultiplier      = "colorMultiplier"
	VarBasePrice            = "basePrice"
	VarFinishingCost        = "finishingCost"
)

var (
	formulaCharset = regexp.MustCompile(`^[a-zA-Z0-9_+\-*/().\s]+$`)
	identifier     = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*`)
	// a dot that is not a single decimal point: 1.5.2, 1..3, basePrice.x
	strayDot       = regexp.MustCompile(`\.\d*\.|[A-Za-z_)]\s*\.|\.\s*[A-Za-z_(]`)
	forbiddenWords = []string{
		"eval", "function", "constructor", "prototype", "__proto__",
		"import", "require", "process", "global", "window", "document",
	}
)

// VariableNames lists the variables formulas may use.
func VariableNames() []string {
	return []string{
		VarQuantity, VarWidth, VarHeight, VarArea, VarPaperMultiplier,
		VarPrintSidesMultiplier, VarColorMultiplier, VarBasePrice, VarFinishingCost,
	}
}

// formulaEnv is the type-checking environment: every allowed variable as a float.
func formulaEnv() map[string]float64 {
	env := make(map[string]float64, len(VariableNames()))
	for _, name := range VariableNames() {
		env[name] = 0
	}
	return env
}

// Formula is a compiled arithmetic expression over the pricing variables.
type Formula struct {
	source  string
	uses    []string
	program *vm.Program
}

// Compile checks a formula against the character whitelist and the variable
// set, then compiles it. All failures are validation errors.
func Compile(source string) (*Formula, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, invalidFormula("formula cannot be empty")
	}
	lower := strings.ToLower(trimmed)
	for _, word := range forbiddenWords {
		if strings.Contains(lower, word) {
			return nil, invalidFormula(fmt.Sprintf("formula contains forbidden word %q", word))
		}
	}
	if !formulaCharset.MatchString(trimmed) {
		return nil, invalidFormula("formula may only contain numbers, variables, + - * / and parentheses")
	}
	if strings.Contains(trimmed, "**") {
		return nil, invalidFormula("exponentiation is not supported")
	}
	if strayDot.MatchString(trimmed) {
		return nil, invalidFormula("'.' is only allowed as a decimal point")
	}

	allowed := VariableNames()
	var uses []string
	for _, name := range identifier.FindAllString(trimmed, -1) {
		if !slices.Contains(allowed, name) {
			return nil, invalidFormula(fmt.Sprintf("unknown variable %q", name)).
				WithDetails(map[string]any{"allowed": allowed})
		}
		if !slices.Contains(uses, name) {
			uses = append(uses, name)
		}
	}

	program, err := expr.Compile(trimmed, expr.Env(formulaEnv()), expr.AsFloat64())
	if err != nil {
		return nil, invalidFormula("formula is not a valid arithmetic expression").
			WithDetails(map[string]any{"reason": err.Error()})
	}
	return &Formula{source: trimmed, uses: uses, program: program}, nil
}

func (f *Formula) String() string { return f.source }

// Evaluate computes the formula. Every referenced variable must have a value.
// Division by zero and other non-finite results are validation errors.
func (f *Formula) Evaluate(vars map[string]float64) (float64, error) {
	env := formulaEnv()
	for _, name := range f.uses {
		value, ok := vars[name]
		if !ok {
			return 0, invalidFormula(fmt.Sprintf("variable %q has no value", name))
		}
		env[name] = value
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return 0, invalidFormula("formula evaluation failed").
			WithDetails(map[string]any{"reason": err.Error()})
	}
	value, ok := out.(float64)
	if !ok {
		return 0, invalidFormula(fmt.Sprintf("formula produced %T, want a number", out))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalidFormula("division by zero or non-finite result")
	}
	return value, nil
}

func invalidFormula(msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
