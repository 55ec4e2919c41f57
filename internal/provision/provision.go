// Package provision hands finished deliverables to their long-term
// location: a local directory tree or an S3 bucket.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/me/cnvkit/pkg/model"
)

// WorkflowName is the directory automatic output is filed under.
const WorkflowName = "cnvkit"

// Provisioner copies deliverables to a destination and reports where each
// one ended up.
type Provisioner interface {
	Provision(ctx context.Context, runID string, files []model.Deliverable) ([]model.Deliverable, error)
}

// putFunc stores one file and returns its destination and size.
type putFunc func(ctx context.Context, src, key, contentType string) (dest string, size int64, err error)

// Key returns the destination of a deliverable relative to the provisioner
// base. Manual output goes directly under the base; automatic output is
// filed per workflow and run.
func Key(runID string, d model.Deliverable) string {
	name := filepath.Base(d.Path)
	if d.Manual {
		return name
	}
	return path.Join(WorkflowName, runID, name)
}

// provisionAll runs put for every deliverable concurrently. The first
// failure cancels the others.
func provisionAll(ctx context.Context, logger *slog.Logger, runID string, files []model.Deliverable, put putFunc) ([]model.Deliverable, error) {
	out := make([]model.Deliverable, len(files))
	copy(out, files)

	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		d := &out[i]
		g.Go(func() error {
			dest, size, err := put(gctx, d.Path, Key(runID, *d), d.Type)
			if err != nil {
				return fmt.Errorf("provision %s: %w", d.Path, err)
			}
			d.Destination = dest
			d.SizeBytes = size
			logger.Info("deliverable provisioned", "run_id", runID, "path", d.Path, "destination", dest, "bytes", size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseDestination returns the provisioner for dest: an s3://bucket/prefix
// URI or a local directory.
func ParseDestination(ctx context.Context, dest string, logger *slog.Logger) (Provisioner, error) {
	if rest, ok := strings.CutPrefix(dest, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid s3 destination %q: missing bucket", dest)
		}
		return NewS3(ctx, bucket, prefix, logger)
	}
	if strings.Contains(dest, "://") {
		return nil, fmt.Errorf("unsupported destination scheme in %q", dest)
	}
	if dest == "" {
		return nil, fmt.Errorf("empty destination")
	}
	return NewLocal(dest, logger), nil
}
