package models

import "github.com/google/uuid"

// ensureID assigns a fresh id when the caller did not. Postgres has a column
// default too, but assigning here keeps ids known before insert returns.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
