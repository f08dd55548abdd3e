// Package cache stores solved layouts and rendered artifacts so repeated
// runs over the same input skip the solver.
//
// # Backends
//
//   - [NullCache] never stores anything (caching disabled)
//   - [FileCache] keeps entries as JSON files, used by the CLI
//   - [RedisCache] shares entries between server instances
//
// # Keys
//
// Keys are derived by a [Keyer] from a content hash of the input graph and
// every option that changes the result. [ScopedKeyer] prefixes keys to
// separate namespaces.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with optional expiry.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	LayoutTTL   = 7 * 24 * time.Hour
	ArtifactTTL = 24 * time.Hour
)

// LayoutKeyOpts lists everything besides the graph that determines a layout.
type LayoutKeyOpts struct {
	Mode       string `json:"mode"`
	Merger     string `json:"merger,omitempty"`
	Seed       uint64 `json:"seed"`
	ConfigHash string `json:"config"`
}

// ArtifactKeyOpts lists everything besides the layout that determines a
// rendered artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Labels bool   `json:"labels"`
}

// Keyer derives cache keys.
type Keyer interface {
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayoutKey returns "layout:<sha256>".
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// ArtifactKey returns "artifact:<sha256>".
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}
