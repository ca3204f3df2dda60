// Package runfile persists a pipeline run as a TSV file and a TREC run file side by side.
package runfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// Options control how rankings are rendered.
type Options struct {
	K              int    // entries written per query
	RunID          string // last TREC column; defaults to the output name
	StripPassageID bool   // TREC only
}

// Writer appends rankings to temp files and moves them into place on a committed Close.
// Safe for concurrent use; rankings are written in call order.
type Writer struct {
	opts     Options
	resolver ranking.ContentResolver

	tsvPath  string
	trecPath string

	mu     sync.Mutex
	tsv    *os.File
	trec   *os.File
	closed bool
}

// Create opens <dir>/<year>/<name>.tsv and .trec for writing via temp files
// and writes the TSV header. resolver fills missing content at write time and may be nil.
func Create(dir, year, name string, opts Options, resolver ranking.ContentResolver) (*Writer, error) {
	if name == "" {
		return nil, errors.New("output name is required")
	}
	if opts.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", opts.K)
	}
	if opts.RunID == "" {
		opts.RunID = name
	}

	outDir := filepath.Join(dir, year)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	w := &Writer{
		opts:     opts,
		resolver: resolver,
		tsvPath:  filepath.Join(outDir, name+".tsv"),
		trecPath: filepath.Join(outDir, name+".trec"),
	}

	var err error
	if w.tsv, err = os.CreateTemp(outDir, name+".tsv.*.tmp"); err != nil {
		return nil, fmt.Errorf("create tsv temp file: %w", err)
	}
	if w.trec, err = os.CreateTemp(outDir, name+".trec.*.tmp"); err != nil {
		w.discard()
		return nil, fmt.Errorf("create trec temp file: %w", err)
	}

	var header bytes.Buffer
	cw := ranking.NewTSVWriter(&header)
	_ = cw.Write(ranking.TSVHeader)
	cw.Flush()
	if _, err := w.tsv.Write(header.Bytes()); err != nil {
		w.discard()
		return nil, fmt.Errorf("write tsv header: %w", err)
	}
	return w, nil
}

// Paths returns the final TSV and TREC paths.
func (w *Writer) Paths() (tsv, trec string) { return w.tsvPath, w.trecPath }

// Write renders the top k of r in both formats and appends them.
// Nothing is appended when resolving or rendering fails.
func (w *Writer) Write(ctx context.Context, r *ranking.Ranking, queryText string) error {
	top := ranking.FromEntries(r.QueryID(), r.TopK(w.opts.K))
	if w.resolver != nil {
		resolved, err := ranking.Resolve(ctx, top, w.resolver)
		if err != nil {
			return fmt.Errorf("resolve %s for output: %w", r.QueryID(), err)
		}
		top = resolved
	}

	var tsvBuf, trecBuf bytes.Buffer
	cw := ranking.NewTSVWriter(&tsvBuf)
	if err := top.WriteTSV(cw, queryText, w.opts.K); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("render tsv %s: %w", r.QueryID(), err)
	}
	if err := top.WriteTREC(&trecBuf, w.opts.RunID, w.opts.K, w.opts.StripPassageID); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("run file already closed")
	}
	if _, err := w.tsv.Write(tsvBuf.Bytes()); err != nil {
		return fmt.Errorf("append tsv %s: %w", r.QueryID(), err)
	}
	if _, err := w.trec.Write(trecBuf.Bytes()); err != nil {
		return fmt.Errorf("append trec %s: %w", r.QueryID(), err)
	}
	return nil
}

// Close finishes the run. With commit both files are synced and renamed into
// place; otherwise the temp files are removed and no output appears.
func (w *Writer) Close(commit bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if !commit {
		w.discard()
		return nil
	}

	for _, f := range []*os.File{w.tsv, w.trec} {
		if err := f.Sync(); err != nil {
			w.discard()
			return fmt.Errorf("sync %s: %w", f.Name(), err)
		}
	}
	tsvTmp, trecTmp := w.tsv.Name(), w.trec.Name()
	if err := errors.Join(w.tsv.Close(), w.trec.Close()); err != nil {
		_ = os.Remove(tsvTmp)
		_ = os.Remove(trecTmp)
		return fmt.Errorf("close run files: %w", err)
	}

	if err := os.Rename(tsvTmp, w.tsvPath); err != nil {
		_ = os.Remove(tsvTmp)
		_ = os.Remove(trecTmp)
		return fmt.Errorf("publish tsv: %w", err)
	}
	if err := os.Rename(trecTmp, w.trecPath); err != nil {
		_ = os.Remove(trecTmp)
		return fmt.Errorf("publish trec: %w", err)
	}
	return nil
}

func (w *Writer) discard() {
	for _, f := range []*os.File{w.tsv, w.trec} {
		if f == nil {
			continue
		}
		_ = f.Close()
		_ = os.Remove(f.Name())
	}
}
