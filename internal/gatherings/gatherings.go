// Package gatherings manages scheduled course gatherings: creation and
// editing by course admins, draft/publish state, and the published listing
// students see.
package gatherings

import (
	"context"

	"github.com/mtanaka/courseforge/internal/gatherings/storage"
	"github.com/mtanaka/courseforge/internal/platform/requestctx"
)

// StudentURL is the student-facing gatherings page, referenced by news
// items when a gathering is first published.
const StudentURL = "/gatherings"

// DefaultTitle seeds newly created gatherings.
const DefaultTitle = "New Gathering"

// ResourceKey returns the stable news resource key for one gathering.
func ResourceKey(id string) string {
	return "gathering:" + id
}

// CanView reports whether the requester may view gatherings at all.
// Everyone may; drafts are filtered separately.
func CanView(context.Context) bool {
	return true
}

// CanEdit reports whether the requester may manage gatherings.
func CanEdit(ctx context.Context) bool {
	return requestctx.UserFromContext(ctx).Admin
}

// CanDelete reports whether the requester may delete gatherings.
func CanDelete(ctx context.Context) bool {
	return CanEdit(ctx)
}

// CanAdd reports whether the requester may create gatherings.
func CanAdd(ctx context.Context) bool {
	return CanEdit(ctx)
}

// ApplyRights filters out gatherings the requester cannot see. Editors see
// everything; everyone else sees only published entries.
func ApplyRights(ctx context.Context, items []storage.Gathering) []storage.Gathering {
	if CanEdit(ctx) {
		return items
	}
	allowed := make([]storage.Gathering, 0, len(items))
	for _, item := range items {
		if !item.IsDraft {
			allowed = append(allowed, item)
		}
	}
	return allowed
}
