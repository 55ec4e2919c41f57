package provision

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/me/cnvkit/pkg/model"
)

// Local provisions deliverables by copying them under a base directory.
type Local struct {
	base   string
	logger *slog.Logger
}

// NewLocal creates a local provisioner rooted at base.
func NewLocal(base string, logger *slog.Logger) *Local {
	return &Local{base: base, logger: logger.With("component", "provision", "kind", "local")}
}

// Provision implements Provisioner.
func (l *Local) Provision(ctx context.Context, runID string, files []model.Deliverable) ([]model.Deliverable, error) {
	return provisionAll(ctx, l.logger, runID, files, l.put)
}

func (l *Local) put(ctx context.Context, src, key, _ string) (string, int64, error) {
	dst := filepath.Join(l.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		out.Close()
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}
	return dst, n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
