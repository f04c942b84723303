package artifacts

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider prepares an artifact root so the tracking backend can write to
// it immediately.
type Provider interface {
	Ensure(ctx context.Context, artifactRoot string) error
}

// FilesystemProvider creates local artifact roots.
type FilesystemProvider struct{}

// NewFilesystemProvider creates the local provider.
func NewFilesystemProvider() *FilesystemProvider {
	return &FilesystemProvider{}
}

// Ensure implements Provider.
func (p *FilesystemProvider) Ensure(ctx context.Context, artifactRoot string) error {
	root := strings.TrimPrefix(artifactRoot, "file://")
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create artifact root: %w", err)
	}
	return nil
}

// Selector routes each artifact root to the provider for its scheme.
type Selector struct {
	filesystem Provider
	s3         Provider
}

// NewSelector creates a selector. s3Provider may be nil when no object
// storage is configured; s3:// roots then fail with a clear error.
func NewSelector(s3Provider Provider) *Selector {
	return &Selector{
		filesystem: NewFilesystemProvider(),
		s3:         s3Provider,
	}
}

// Ensure implements Provider.
func (s *Selector) Ensure(ctx context.Context, artifactRoot string) error {
	if strings.HasPrefix(artifactRoot, "s3://") {
		if s.s3 == nil {
			return fmt.Errorf("artifact root %q requires object storage, which is not configured", artifactRoot)
		}
		return s.s3.Ensure(ctx, artifactRoot)
	}
	return s.filesystem.Ensure(ctx, artifactRoot)
}
