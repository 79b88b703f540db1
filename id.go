package docmap

import "github.com/google/uuid"

// ID is the stable unique identifier of a reference-capable entity.
// Its canonical document form is the lowercase hyphenated UUID string.
type ID = uuid.UUID

// NilID is the zero identifier.
var NilID ID

// NewID returns a random identifier.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical string form of an identifier.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}
