package ranking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kailas-cloud/castrank/internal/domain"
)

const trecColumns = 6

// WriteTREC writes the top k entries as "<qid> Q0 <doc_id> <rank> <score> <run_id>" lines.
// Ranks start at 1 for every ranking. stripPassageID applies StripPassageID to each doc id.
//
// Unscored entries are written below every scored one: each gets
// min(0, lowest written score) minus its position among the unscored entries,
// so tools that re-sort by score keep the ranking's order.
func (r *Ranking) WriteTREC(w io.Writer, runID string, k int, stripPassageID bool) error {
	top := r.TopK(k)

	floor := 0.0
	for _, e := range top {
		if s, ok := e.Score(); ok && s < floor {
			floor = s
		}
	}

	bw := bufio.NewWriter(w)
	unscored := 0
	for i, e := range top {
		docID := e.DocID()
		if stripPassageID {
			docID = StripPassageID(docID)
		}

		score, ok := e.Score()
		if !ok {
			unscored++
			score = floor - float64(unscored)
		}

		if _, err := fmt.Fprintf(bw, "%s Q0 %s %d %s %s\n",
			r.QueryID(), docID, i+1, FormatScore(score), runID); err != nil {
			return fmt.Errorf("write trec line %s/%s: %w", r.QueryID(), docID, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush trec run: %w", err)
	}
	return nil
}

// ContentResolver fetches passage text for document ids, in the order requested.
type ContentResolver interface {
	MGet(ctx context.Context, docIDs []string) ([]string, error)
}

// LoadTRECRun parses a 6-column TREC run ("qid Q0 docid rank score runid").
// Entries are added in file order with their scores. When resolver is non-nil,
// content is resolved eagerly per query; a resolver failure fails the load.
// A malformed line fails the whole load.
func LoadTRECRun(ctx context.Context, r io.Reader, resolver ContentResolver) (*Run, error) {
	return loadTRECRun(ctx, r, resolver, "trec")
}

// LoadTRECRunFile opens path and parses it with LoadTRECRun.
func LoadTRECRunFile(ctx context.Context, path string, resolver ContentResolver) (*Run, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open trec run: %w", err)
	}
	defer func() { _ = f.Close() }()

	return loadTRECRun(ctx, f, resolver, path)
}

func loadTRECRun(ctx context.Context, r io.Reader, resolver ContentResolver, source string) (*Run, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	run := NewRun()
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != trecColumns {
			return nil, domain.NewFormatError(source, line,
				fmt.Sprintf("expected %d columns, got %d", trecColumns, len(fields)))
		}
		if _, err := strconv.Atoi(fields[3]); err != nil {
			return nil, domain.NewFormatError(source, line, fmt.Sprintf("invalid rank %q", fields[3]))
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, domain.NewFormatError(source, line, fmt.Sprintf("invalid score %q", fields[4]))
		}

		run.ranking(fields[0]).Add(Scored(fields[2], score))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trec run %s: %w", source, err)
	}

	if resolver == nil {
		return run, nil
	}

	for _, qid := range run.order {
		resolved, err := Resolve(ctx, run.rankings[qid], resolver)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", qid, err)
		}
		run.rankings[qid] = resolved
	}
	return run, nil
}
