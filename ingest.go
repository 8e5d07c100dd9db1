package hpak

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/hpak/internal/platform"
)

// MetadataSuffix is appended to a file's name to form its metadata sidecar.
const MetadataSuffix = ".meta"

// ingestWindow scales the worker count to the number of files compressed
// ahead of the sequential commit.
const ingestWindow = 4

// IngestReport summarizes AddPathsFromDir.
type IngestReport struct {
	// Added lists the normalized paths added, in lexical order.
	Added []string

	// Failed lists files that were skipped.
	Failed []*EntryError
}

// Err joins the per-file failures, or returns nil if there were none.
func (r *IngestReport) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// prepared is the outcome of compressing one ingested file.
type prepared struct {
	block *block
	err   error
}

// AddPathsFromDir adds every regular file under dir that has a metadata
// sidecar named by appending MetadataSuffix. Sidecars themselves and
// symbolic links are skipped. Paths are relative to dir.
//
// Files that cannot be added (missing sidecar, unreadable, duplicate path)
// are recorded in the report and the walk continues. Walk errors, context
// cancellation, hash collisions and spool failures stop ingestion and are
// returned with the report built so far.
//
// Files are compressed in parallel (see WithConcurrency) and committed in
// lexical path order.
func (w *Writer) AddPathsFromDir(ctx context.Context, dir string) (*IngestReport, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	w.log().Info("ingesting directory", "dir", dir, "concurrency", w.cfg.concurrency)
	w.reportProgress(StageEnumerating, "", 0, 0, 0)

	paths, err := w.enumerate(ctx, root)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{}
	window := w.cfg.concurrency * ingestWindow
	for start := 0; start < len(paths); start += window {
		batch := paths[start:min(start+window, len(paths))]
		results, err := w.prepareBatch(ctx, root, batch)
		if err != nil {
			return report, err
		}
		for i, res := range results {
			if err := w.commitIngested(report, batch[i], res); err != nil {
				return report, err
			}
			w.reportProgress(StageCompressing, batch[i], uint64(w.spoolSize), start+i+1, len(paths)) //nolint:gosec // spool size is never negative
		}
	}

	w.log().Info("directory ingested", "dir", dir, "added", len(report.Added), "failed", len(report.Failed))
	return report, nil
}

// enumerate lists candidate data files in lexical order.
func (w *Writer) enumerate(ctx context.Context, root *os.Root) ([]string, error) {
	var paths []string
	err := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			w.log().Debug("skipped symlink", "path", path)
			return nil
		case !d.Type().IsRegular():
			w.log().Debug("skipped irregular file", "path", path, "type", d.Type().String())
			return nil
		case strings.HasSuffix(path, MetadataSuffix):
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func (w *Writer) prepareBatch(ctx context.Context, root *os.Root, paths []string) ([]prepared, error) {
	results := make([]prepared, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].block, results[i].err = w.prepareFile(root, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// prepareFile opens a data file and its sidecar and compresses both.
func (w *Writer) prepareFile(root *os.Root, path string) (*block, error) {
	name, err := ValidatePath(path)
	if err != nil {
		return nil, err
	}

	meta, err := platform.OpenRegular(root, filepath.FromSlash(path+MetadataSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingMetadata
		}
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer meta.Close()

	data, err := platform.OpenRegular(root, filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer data.Close()

	return w.prepare(name, meta, data, w.dataCompression(name, nil))
}

// commitIngested commits a prepared file, recording recoverable failures in
// report. The returned error is fatal.
func (w *Writer) commitIngested(report *IngestReport, path string, res prepared) error {
	if res.err == nil {
		err := w.commit(res.block)
		if err == nil {
			report.Added = append(report.Added, res.block.path)
			return nil
		}
		if !errors.Is(err, ErrDuplicatePath) && !errors.Is(err, ErrPathConflict) {
			return err
		}
		res.err = err
	}

	var entryErr *EntryError
	if !errors.As(res.err, &entryErr) {
		name := NormalizePath(path)
		entryErr = &EntryError{Op: "ingest", Path: name, Hash: w.hash(name), Err: res.err}
	}
	report.Failed = append(report.Failed, entryErr)
	w.log().Warn("skipped file", "path", path, "error", res.err)
	return nil
}
