package api

import (
	"time"

	"github.com/tradeops/desksync/internal/model"
)

// SnapshotResponse is the wire form of the full-snapshot endpoint.
type SnapshotResponse struct {
	AsOf     time.Time    `json:"as_of"`
	Entities []WireEntity `json:"entities"`
}

// WireEntity is one entity state on the wire.
type WireEntity struct {
	EntityID  string         `json:"entity_id"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ToSnapshots converts the wire response into the canonical form keyed
// by entity id.
func (r SnapshotResponse) ToSnapshots() map[string]model.Snapshot {
	out := make(map[string]model.Snapshot, len(r.Entities))
	for _, e := range r.Entities {
		fields := e.Fields
		if fields == nil {
			fields = make(map[string]any)
		}
		updatedAt := e.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = r.AsOf
		}
		out[e.EntityID] = model.Snapshot{
			EntityID:  e.EntityID,
			Fields:    fields,
			UpdatedAt: updatedAt,
		}
	}
	return out
}
