package handlers

import (
	"fmt"

	"github.com/google/uuid"
)

func errNotFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s not found", kind, id)
}
