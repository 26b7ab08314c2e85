// Package idgen generates entity IDs in the engine's <prefix>_<uuid>
// form.
package idgen

import "github.com/google/uuid"

// Entity ID prefixes.
const (
	PrefixRecallSet   = "rs"
	PrefixRecallPoint = "rp"
	PrefixSession     = "sess"
	PrefixMessage     = "msg"
	PrefixRabbithole  = "rh"
	PrefixOutcome     = "out"
)

// Generator creates entity IDs. Production code uses UUIDGenerator;
// tests inject a Sequential generator for deterministic IDs.
type Generator interface {
	NewID(prefix string) string
}

// UUIDGenerator implements Generator using google/uuid.
type UUIDGenerator struct{}

// NewID returns "<prefix>_<uuid>".
func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
