package models

import "github.com/google/uuid"

// ensureID assigns a v4 id before insert. Postgres tables also default to
// gen_random_uuid(), but SQLite test databases have no such function.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
