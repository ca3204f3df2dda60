package pool

import (
	"sort"
	"sync"
	"testing"

	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

func turn(qid string, ids ...string) *ranking.Ranking {
	r := ranking.New(qid)
	for i, id := range ids {
		r.Add(ranking.Scored(id, float64(10-i)))
	}
	return r
}

func idSet(r *ranking.Ranking) []string {
	ids := r.DocIDs()
	sort.Strings(ids)
	return ids
}

func assertSet(t *testing.T, got *ranking.Ranking, want ...string) {
	t.Helper()
	ids := idSet(got)
	sort.Strings(want)
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

// step runs one successful turn: pool, then record.
func step(c *CachedRanking, topic string, r *ranking.Ranking) *ranking.Ranking {
	out := c.Expand(topic, r)
	c.Commit(topic, r)
	return out
}

func TestExpand_WindowTwoKeepsBothPreviousTurns(t *testing.T) {
	c := New(2)

	assertSet(t, step(c, "T", turn("T_1", "d1", "d2")), "d1", "d2")
	assertSet(t, step(c, "T", turn("T_2", "d3")), "d1", "d2", "d3")
	assertSet(t, step(c, "T", turn("T_3", "d4")), "d1", "d2", "d3", "d4")
}

func TestExpand_WindowOneTruncates(t *testing.T) {
	c := New(1)

	step(c, "T", turn("T_1", "d1", "d2"))
	assertSet(t, step(c, "T", turn("T_2", "d3")), "d1", "d2", "d3")
	assertSet(t, step(c, "T", turn("T_3", "d4")), "d3", "d4")
}

func TestExpand_WindowTwoEvictsOldest(t *testing.T) {
	c := New(2)

	step(c, "T", turn("T_1", "d1"))
	step(c, "T", turn("T_2", "d2"))
	step(c, "T", turn("T_3", "d3"))
	assertSet(t, step(c, "T", turn("T_4", "d4")), "d2", "d3", "d4")
}

func TestExpand_TopicsAreIndependent(t *testing.T) {
	c := New(2)

	step(c, "A", turn("A_1", "a1"))
	assertSet(t, step(c, "B", turn("B_1", "b1")), "b1")
	assertSet(t, step(c, "A", turn("A_2", "a2")), "a1", "a2")
	if c.Topics() != 2 {
		t.Errorf("expected 2 topics, got %d", c.Topics())
	}
}

func TestExpand_NoDuplicates(t *testing.T) {
	c := New(2)

	step(c, "T", turn("T_1", "d1", "d2"))
	out := step(c, "T", turn("T_2", "d2", "d3", "d3"))
	assertSet(t, out, "d1", "d2", "d3")
}

func TestExpand_CurrentScoresKeptPooledUnscored(t *testing.T) {
	c := New(1)
	step(c, "T", turn("T_1", "old"))

	cur := ranking.New("T_2")
	cur.Add(ranking.Scored("new", 3).WithContent("text"))
	out := step(c, "T", cur)

	top := out.TopK(10)
	if top[0].DocID() != "new" {
		t.Fatalf("current doc should rank first, got %s", top[0].DocID())
	}
	if s, ok := top[0].Score(); !ok || s != 3 {
		t.Errorf("current score lost: %v %v", s, ok)
	}
	if c, ok := top[0].Content(); !ok || c != "text" {
		t.Errorf("current content lost: %q", c)
	}
	if _, ok := top[1].Score(); ok {
		t.Error("pooled doc should be unscored")
	}
	if out.QueryID() != "T_2" {
		t.Errorf("query id = %q", out.QueryID())
	}
}

func TestExpand_RecordsRawIDsNotPool(t *testing.T) {
	c := New(2)

	step(c, "T", turn("T_1", "d1"))
	step(c, "T", turn("T_2", "d2"))
	// window 2 after three turns holds turns 2 and 3 only
	step(c, "T", turn("T_3", "d3"))
	assertSet(t, step(c, "T", turn("T_4")), "d2", "d3")
}

func TestExpand_ZeroWindowPassThrough(t *testing.T) {
	c := New(0)
	step(c, "T", turn("T_1", "d1"))
	assertSet(t, step(c, "T", turn("T_2", "d2")), "d2")
	if c.Topics() != 0 {
		t.Error("zero window should keep no history")
	}
}

func TestReset(t *testing.T) {
	c := New(2)
	step(c, "T", turn("T_1", "d1"))
	c.Reset("T")
	assertSet(t, step(c, "T", turn("T_1", "d9")), "d9")
}

func TestExpand_InputNotMutated(t *testing.T) {
	c := New(1)
	step(c, "T", turn("T_1", "d1"))
	cur := turn("T_2", "d2")
	step(c, "T", cur)
	if cur.Len() != 1 {
		t.Errorf("input ranking modified, len %d", cur.Len())
	}
}

func TestExpand_ConcurrentTopics(t *testing.T) {
	c := New(3)
	var wg sync.WaitGroup
	for _, topic := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 5 {
				step(c, topic, turn(topic, topic+string(rune('0'+i))))
			}
		}()
	}
	wg.Wait()

	for _, topic := range []string{"A", "B", "C", "D"} {
		assertSet(t, step(c, topic, turn(topic)), topic+"2", topic+"3", topic+"4")
	}
}

func TestExpand_DoesNotRecord(t *testing.T) {
	c := New(2)

	c.Expand("T", turn("T_1", "d1"))
	assertSet(t, c.Expand("T", turn("T_2", "d2")), "d2")
	if c.Topics() != 0 {
		t.Errorf("expand without commit recorded %d topics", c.Topics())
	}
}

func TestCommit_SkippedTurnLeavesNoTrace(t *testing.T) {
	c := New(2)

	step(c, "T", turn("T_1", "a"))
	// T_2 fails after pooling and is never committed.
	assertSet(t, c.Expand("T", turn("T_2", "b")), "a", "b")
	assertSet(t, step(c, "T", turn("T_3", "c")), "a", "c")
}

func TestCommit_DeduplicatesIDs(t *testing.T) {
	c := New(1)
	c.Commit("T", turn("T_1", "d1", "d1", "d2"))

	out := c.Expand("T", turn("T_2"))
	if out.Len() != 2 {
		t.Errorf("pooled %v, want d1 d2 once", out.DocIDs())
	}
}
