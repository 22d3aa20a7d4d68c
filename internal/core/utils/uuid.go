package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string used to tag connections and node instances in logs.
func NewID() string {
	return uuid.New().String()
}

// ShortID returns the first block of a UUID string.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
