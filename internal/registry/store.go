package registry

import (
	"context"
	"time"
)

// Store persists function descriptors. Identifiers are normalized with
// NormalizeID on both write and lookup.
type Store interface {
	Get(ctx context.Context, id string) (*Descriptor, error)
	List(ctx context.Context) ([]*Descriptor, error)
	Upsert(ctx context.Context, d *Descriptor) error
}

func stamp(d *Descriptor, now time.Time) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}
