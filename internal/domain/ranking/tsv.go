package ranking

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kailas-cloud/castrank/internal/domain"
)

// TSVHeader is the first row of every TSV run file.
var TSVHeader = []string{"query_id", "query", "passage_id", "passage", "label"}

// RowWriter receives TSV rows. *csv.Writer satisfies it.
type RowWriter interface {
	Write(record []string) error
}

// NewTSVWriter returns a tab-separated writer with CRLF row terminators,
// the layout downstream evaluation tooling expects.
func NewTSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	cw.UseCRLF = true
	return cw
}

// WriteTSV writes one row (query_id, query, passage_id, passage, label) for each of the top k entries.
// The label is the raw score, empty for unscored entries. Unresolved content is a resolution error.
func (r *Ranking) WriteTSV(w RowWriter, queryText string, k int) error {
	for _, e := range r.TopK(k) {
		content, ok := e.Content()
		if !ok {
			return domain.NewResolutionError(e.DocID())
		}
		label := ""
		if s, ok := e.Score(); ok {
			label = FormatScore(s)
		}
		if err := w.Write([]string{r.QueryID(), queryText, e.DocID(), content, label}); err != nil {
			return fmt.Errorf("write tsv row %s/%s: %w", r.QueryID(), e.DocID(), err)
		}
	}
	return nil
}

// LoadTSV parses a TSV run written by WriteTSV and groups rows by query id.
// The header row is optional. Any malformed row fails the whole load.
func LoadTSV(r io.Reader) (*Run, error) {
	return loadTSV(r, "tsv")
}

// LoadTSVFile opens path and parses it with LoadTSV.
func LoadTSVFile(path string) (*Run, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open tsv run: %w", err)
	}
	defer func() { _ = f.Close() }()

	return loadTSV(f, path)
}

func loadTSV(r io.Reader, source string) (*Run, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(TSVHeader)
	cr.ReuseRecord = true

	run := NewRun()
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, domain.NewFormatError(source, pe.Line, pe.Err.Error())
			}
			return nil, fmt.Errorf("read tsv run %s: %w", source, err)
		}
		if line == 1 && record[0] == TSVHeader[0] && record[2] == TSVHeader[2] {
			continue
		}

		queryID, question, docID, content, label := record[0], record[1], record[2], record[3], record[4]
		if queryID == "" || docID == "" {
			return nil, domain.NewFormatError(source, line, "empty query_id or passage_id")
		}

		entry := Unscored(docID).WithContent(content)
		if label != "" {
			score, err := strconv.ParseFloat(label, 64)
			if err != nil {
				return nil, domain.NewFormatError(source, line, fmt.Sprintf("invalid label %q", label))
			}
			entry = entry.WithScore(score)
		}

		run.ranking(queryID).Add(entry)
		if _, ok := run.questions[queryID]; !ok {
			run.questions[queryID] = question
		}
	}

	return run, nil
}
