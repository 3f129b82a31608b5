package config

import (
	"fmt"

	"github.com/keepstore/keep/internal/model"
)

// IdentityMismatchError is returned when the persisted embedding identity
// disagrees with the configured provider. It is never auto-repaired:
// vectors written by one model are meaningless to another.
type IdentityMismatchError struct {
	Stored  model.EmbeddingIdentity
	Current model.EmbeddingIdentity
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf(
		"embedding identity mismatch: store was indexed with %s but the configured provider is %s; "+
			"either restore the original provider or delete the store and re-index",
		e.Stored, e.Current)
}

// EnsureIdentity validates the current provider identity against the
// persisted one, recording it on first use. The configuration is saved to
// dir when the identity is first recorded.
func (c *Config) EnsureIdentity(dir string, current model.EmbeddingIdentity) error {
	if c.Identity == nil {
		id := current
		c.Identity = &id
		return Save(dir, c)
	}
	if !c.Identity.Equal(current) {
		return &IdentityMismatchError{Stored: *c.Identity, Current: current}
	}
	return nil
}
