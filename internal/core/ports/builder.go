package ports

import (
	"context"
	"io"
)

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage clones a repository and builds a Docker image from it.
	// Build output is written to progress when it is not nil.
	// It returns the tag of the built image or an error.
	BuildImage(ctx context.Context, repoURL string, imageName string, progress io.Writer) (string, error)
}

// SourceUpdater fast-forwards a local checkout, used for panel self-update.
type SourceUpdater interface {
	// Pull updates the repository at path from remote and returns the new HEAD.
	Pull(ctx context.Context, path string, remote string) (string, error)
}
