// Package rewrites reads precomputed query rewrites ("query_id<TAB>rewrite" per line).
package rewrites

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/castrank/internal/domain"
)

// LoadFile reads a rewrite table from disk.
func LoadFile(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open rewrites: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f, path)
}

// Load parses the table. An optional "query_id<TAB>query" header is skipped and
// later lines win over earlier ones with the same id.
func Load(r io.Reader, source string) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	out := make(map[string]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, domain.NewFormatError(source, line, err.Error())
		}
		line, _ := cr.FieldPos(0)

		if len(rec) != 2 {
			return nil, domain.NewFormatError(source, line, fmt.Sprintf("expected 2 columns, got %d", len(rec)))
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, domain.NewFormatError(source, line, "empty query id")
		}
		if len(out) == 0 && id == "query_id" {
			continue
		}
		out[id] = strings.TrimSpace(rec[1])
	}
	return out, nil
}
