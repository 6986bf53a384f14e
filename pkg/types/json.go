package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores an arbitrary value as a JSON column (jsonb on Postgres, text on SQLite).
type JSON[T any] struct {
	V T
}

func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{V: v}
}

func (j JSON[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("json column: %w", err)
	}
	return string(raw), nil
}

func (j *JSON[T]) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("json column: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		var zero T
		j.V = zero
		return nil
	}
	return json.Unmarshal(raw, &j.V)
}

func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j *JSON[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}

// GormDataType keeps AutoMigrate on SQLite from guessing a column type.
func (JSON[T]) GormDataType() string {
	return "text"
}
