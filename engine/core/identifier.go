package core

import (
	"fmt"

	"github.com/google/uuid"
)

// DebugName returns a unique label for a GPU object, e.g. "resolve-9f0c...".
// Each recreation yields fresh names so generations can be told apart in logs.
func DebugName(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}
