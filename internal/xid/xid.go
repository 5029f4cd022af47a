package xid

import "github.com/google/uuid"

// New returns a prefixed unique identifier, e.g. "sale-4f7c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
