// Package editor keeps the autosave slot for each platform on top of a
// key-value repository.
package editor

import (
	"context"

	"github.com/debemdeboas/draftroom/internal/model"
)

const DefaultNamespace = "@drafts:autosave"

// Repository is the slot contract the autosave scheduler and draft service use.
type Repository interface {
	Save(ctx context.Context, draft *model.AutosaveDraft) error
	Load(ctx context.Context, platform model.PlatformID) (*model.AutosaveDraft, error)
	Clear(ctx context.Context, platform model.PlatformID) error
}

// Key returns the storage key of a platform slot.
func Key(namespace string, platform model.PlatformID) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + string(platform)
}
