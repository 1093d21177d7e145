package models

import "github.com/google/uuid"

// ensureID assigns a client-side UUID so inserts work on databases without
// gen_random_uuid (sqlite in tests); Postgres keeps its column default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
