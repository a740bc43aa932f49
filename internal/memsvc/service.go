// Package memsvc is the in-process memory service the bridge multiplexes
// requests onto. The bridge treats it as an opaque, expensive-to-construct
// dependency reached through a fixed capability surface: a constructor,
// Memorize, ListCategories, and Probe.
package memsvc

import (
	"context"
	"strings"
	"time"
)

// Version is the service's reported library version.
const Version = "1.2.0"

// MemorizeParams identifies a persisted conversation resource to ingest.
type MemorizeParams struct {
	ResourceURL string `json:"resource_url"`
	Modality    string `json:"modality"`
	User        string `json:"user,omitempty"`
}

// MemorizeResult reports what a Memorize call stored.
type MemorizeResult struct {
	ResourceURL string   `json:"resource_url"`
	ItemIDs     []string `json:"item_ids"`
	Categories  []string `json:"categories"`
	UserID      string   `json:"user_id,omitempty"`
}

// Category is one row of the category listing.
type Category struct {
	Name      string    `json:"name"`
	UserID    string    `json:"user_id,omitempty"`
	Items     int       `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryFilter optionally scopes a category listing.
type CategoryFilter struct {
	UserID string `json:"user_id,omitempty"`
}

// Service is the capability surface of one constructed memory service
// instance. Instances are stateful and live for the daemon process.
type Service interface {
	// Memorize ingests the conversation resource at p.ResourceURL into
	// categorized memory items.
	Memorize(ctx context.Context, p MemorizeParams) (*MemorizeResult, error)

	// ListCategories returns category rows with item counts, optionally
	// restricted to one user.
	ListCategories(ctx context.Context, where *CategoryFilter) ([]Category, error)

	// Probe performs a cheap read against the backing store.
	Probe(ctx context.Context) error
}

// Constructor builds a Service from a filtered configuration.
type Constructor func(Config) (Service, error)

// ConstructorFor selects the constructor matching a reported library
// version. Only the 1.2 line has a dedicated shim; anything else falls
// through to the current constructor. This keeps version-specific
// workarounds out of the call sites.
func ConstructorFor(version string) Constructor {
	for prefix, c := range shims {
		if strings.HasPrefix(version, prefix) {
			return c
		}
	}
	return New
}

var shims = map[string]Constructor{
	"1.2": New,
}
