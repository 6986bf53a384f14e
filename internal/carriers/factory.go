package carriers

import (
	"context"
	"fmt"

	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

// Breakers runs carrier calls through a named circuit breaker.
type Breakers interface {
	Register(name string)
	Execute(name string, fn func() (any, error)) (any, error)
}

// Info is the public listing of a carrier.
type Info struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Factory hands out breaker-wrapped adapters by carrier code.
type Factory struct {
	catalog  *Catalog
	adapters map[string]Adapter
	enabled  map[string]bool
	breakers Breakers
}

// NewFactory builds every carrier in the catalog. Carriers without a token
// are listed as disabled and cannot be used for shipments.
func NewFactory(cfg config.CarriersConfig, catalog *Catalog, breakers Breakers, opts ...Option) (*Factory, error) {
	if catalog == nil {
		return nil, fmt.Errorf("carrier catalog required")
	}
	f := &Factory{
		catalog:  catalog,
		adapters: map[string]Adapter{},
		enabled:  map[string]bool{},
		breakers: breakers,
	}
	for _, code := range catalog.Codes() {
		ccfg := cfg.For(code)
		adapter, err := build(code, ccfg, catalog, opts...)
		if err != nil {
			return nil, err
		}
		f.Add(adapter, ccfg.Enabled())
	}
	return f, nil
}

func build(code string, cfg config.CarrierConfig, catalog *Catalog, opts ...Option) (Adapter, error) {
	switch code {
	case config.CarrierGHN:
		return NewGHN(cfg, catalog, opts...), nil
	case config.CarrierGHTK:
		return NewGHTK(cfg, catalog, opts...), nil
	case config.CarrierViettelPost:
		return NewViettelPost(cfg, catalog, opts...), nil
	case config.CarrierJT:
		return NewJT(cfg, catalog, opts...), nil
	case config.CarrierNinjaVan:
		return NewNinjaVan(cfg, catalog, opts...), nil
	}
	return nil, fmt.Errorf("no client for carrier %q", code)
}

// Add registers or replaces an adapter.
func (f *Factory) Add(adapter Adapter, enabled bool) {
	code := adapter.Code()
	if f.breakers != nil {
		f.breakers.Register(code)
		adapter = &guarded{Adapter: adapter, breakers: f.breakers}
	}
	f.adapters[code] = adapter
	f.enabled[code] = enabled
}

// Get returns the adapter for outbound calls. Unknown and unconfigured
// carriers are rejected.
func (f *Factory) Get(code string) (Adapter, error) {
	adapter, ok := f.adapters[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carrier not found").
			WithDetails(map[string]any{"carrier": code, "allowed": f.catalog.Codes()})
	}
	if !f.enabled[code] {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier is not configured").
			WithDetails(map[string]any{"carrier": code})
	}
	return adapter, nil
}

// Parser returns the adapter for webhook parsing, which needs no credentials.
func (f *Factory) Parser(code string) (Adapter, error) {
	adapter, ok := f.adapters[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carrier not found").
			WithDetails(map[string]any{"carrier": code})
	}
	return adapter, nil
}

func (f *Factory) List() []Info {
	out := make([]Info, 0, len(f.adapters))
	for _, code := range f.catalog.Codes() {
		entry, _ := f.catalog.Entry(code)
		out = append(out, Info{Code: code, Name: entry.Name, Enabled: f.enabled[code]})
	}
	return out
}

func (f *Factory) TrackingURL(code, tracking string) string {
	return f.catalog.TrackingURL(code, tracking)
}

// guarded routes outbound calls through the carrier's breaker. Webhook
// parsing is local and bypasses it.
type guarded struct {
	Adapter
	breakers Breakers
}

func (g *guarded) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	out, err := g.breakers.Execute(g.Code(), func() (any, error) {
		return g.Adapter.CreateShipment(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*ShipmentResult), nil
}

func (g *guarded) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	out, err := g.breakers.Execute(g.Code(), func() (any, error) {
		return g.Adapter.TrackShipment(ctx, tracking)
	})
	if err != nil {
		return nil, err
	}
	return out.(*TrackingResult), nil
}

func (g *guarded) CancelShipment(ctx context.Context, tracking string) error {
	_, err := g.breakers.Execute(g.Code(), func() (any, error) {
		return nil, g.Adapter.CancelShipment(ctx, tracking)
	})
	return err
}
