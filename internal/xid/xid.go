package xid

import "github.com/google/uuid"

// New returns a random identifier, prefixed as "<prefix>-<uuid>" when a
// prefix is given.
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Valid reports whether id looks like something New produced for prefix.
// Inbound request IDs are only trusted when they pass this check.
func Valid(prefix, id string) bool {
	if prefix != "" {
		if len(id) <= len(prefix)+1 || id[:len(prefix)+1] != prefix+"-" {
			return false
		}
		id = id[len(prefix)+1:]
	}
	return uuid.Validate(id) == nil
}
