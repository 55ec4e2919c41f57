// Package collect packages a finished working directory into the run's
// deliverables: a gzip-compressed tar bundle of everything the analysis
// produced, plus the segment table promoted on its own.
package collect

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/me/cnvkit/pkg/model"
)

// BundleName is the file name of the bundle in the output directory.
const BundleName = "model-fit.tar.gz"

// BundlePrefix is the directory every bundle entry is stored under.
const BundlePrefix = "model-fit"

// Options controls one collection.
type Options struct {
	WorkDir   string
	OutputDir string
	// Summary is promoted to OutputDir and left out of the bundle.
	Summary string
	// Required files must exist before anything is written.
	Required []string
	Logger   *slog.Logger
}

// Result describes what Collect wrote.
type Result struct {
	Bundle     string   `json:"bundle"`
	BundleSize int64    `json:"bundle_size"`
	Summary    string   `json:"summary"`
	Entries    []string `json:"entries"`
}

// Collect writes {OutputDir}/model-fit.tar.gz and {OutputDir}/{basename of
// Summary}. Entries are added in lexical order. Intermediate files are
// left in place.
func Collect(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "collect")

	if opts.WorkDir == "" || opts.OutputDir == "" || opts.Summary == "" {
		return nil, &model.ArtifactCollectionError{Path: opts.WorkDir, Err: fmt.Errorf("work dir, output dir and summary are required")}
	}
	for _, path := range append([]string{opts.Summary}, opts.Required...) {
		if err := requireFile(path); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, &model.ArtifactCollectionError{Path: opts.OutputDir, Err: err}
	}

	bundle := filepath.Join(opts.OutputDir, BundleName)
	entries, size, err := writeBundle(ctx, opts, bundle)
	if err != nil {
		return nil, err
	}
	logger.Info("bundle written", "path", bundle, "entries", len(entries), "bytes", size)

	summary := filepath.Join(opts.OutputDir, filepath.Base(opts.Summary))
	if err := copyFile(opts.Summary, summary); err != nil {
		return nil, &model.ArtifactCollectionError{Path: opts.Summary, Err: err}
	}
	logger.Info("summary promoted", "path", summary)

	return &Result{
		Bundle:     bundle,
		BundleSize: size,
		Summary:    summary,
		Entries:    entries,
	}, nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &model.ArtifactCollectionError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &model.ArtifactCollectionError{Path: path, Err: fmt.Errorf("not a regular file")}
	}
	return nil
}

// writeBundle archives the working directory into a temporary file next to
// dest and renames it into place once complete.
func writeBundle(ctx context.Context, opts Options, dest string) ([]string, int64, error) {
	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: opts.WorkDir, Err: err}
	}
	summary, err := filepath.Abs(opts.Summary)
	if err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: opts.Summary, Err: err}
	}
	outDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: opts.OutputDir, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".model-fit-*.tar.gz")
	if err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	zw := gzip.NewWriter(tmp)
	tw := tar.NewWriter(zw)

	var entries []string
	// WalkDir visits entries in lexical order.
	walkErr := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == outDir {
				return filepath.SkipDir
			}
			return nil
		}
		if path == summary || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		name := BundlePrefix + "/" + filepath.ToSlash(rel)
		if err := addFile(tw, path, name); err != nil {
			return err
		}
		entries = append(entries, name)
		return nil
	})
	if walkErr != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: opts.WorkDir, Err: walkErr}
	}

	if err := tw.Close(); err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}
	if err := zw.Close(); err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, 0, &model.ArtifactCollectionError{Path: dest, Err: err}
	}
	return entries, info.Size(), nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("header for %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(out.Name())

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(out.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(out.Name(), dst)
}

// List returns the entry names of a bundle in archive order.
func List(bundle string) ([]string, error) {
	f, err := os.Open(bundle)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", bundle, err)
	}
	defer zr.Close()

	var names []string
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", bundle, err)
		}
		if !strings.HasPrefix(hdr.Name, BundlePrefix+"/") {
			return nil, fmt.Errorf("entry %q outside %s/", hdr.Name, BundlePrefix)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}
