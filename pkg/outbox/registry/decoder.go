package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// ErrUnknownSchema means no decoder is registered for an event type and
// schema version pair.
var ErrUnknownSchema = errors.New("no decoder for event schema")

var payloadValidator = validator.New()

type schemaKey struct {
	event   enums.OutboxEventType
	version int
}

// Decoders turns envelope data into typed payloads for consumers. Each
// (event type, version) pair has exactly one decoder.
type Decoders struct {
	mu sync.RWMutex
	funcs map[schemaKey]func(json.RawMessage) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{funcs: make(map[schemaKey]func(json.RawMessage) (any, error))}
}

// Add registers fn. Registering the same pair twice panics.
func (d *Decoders) Add(event enums.OutboxEventType, version int, fn func(json.RawMessage) (any, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := schemaKey{event: event, version: version}
	if _, dup := d.funcs[key]; dup {
		panic(fmt.Sprintf("decoder for %s@v%d registered twice", event, version))
	}
	d.funcs[key] = fn
}

// AddJSON registers a decoder that unmarshals into *T and then checks T's
// validate tags.
func AddJSON[T any](d *Decoders, event enums.OutboxEventType, version int) {
	d.Add(event, version, func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		if err := payloadValidator.Struct(out); err != nil {
			return nil, fmt.Errorf("%s@v%d: %w", event, version, err)
		}
		return out, nil
	})
}

func (d *Decoders) Decode(event enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	d.mu.RLock()
	fn, ok := d.funcs[schemaKey{event: event, version: version}]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrUnknownSchema, event, version)
	}
	return fn(data)
}
