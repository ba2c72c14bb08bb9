package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the primary key has not been set by the caller.
// Postgres could default it with gen_random_uuid(), but sqlite cannot, so it is done in hooks.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
