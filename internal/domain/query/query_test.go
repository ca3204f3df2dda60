package query

import (
	"math"
	"testing"
)

func TestQuery_IDParts(t *testing.T) {
	tests := []struct {
		id                string
		topic, turn, leaf string
	}{
		{"81_1", "81", "1", ""},
		{"104_3", "104", "3", ""},
		{"132_2-1|5", "132", "2-1", "5"},
		{"noturn", "noturn", "", ""},
		{"a_b_c", "a", "b_c", ""},
	}
	for _, tc := range tests {
		q := New(tc.id, "x")
		if got := q.TopicID(); got != tc.topic {
			t.Errorf("TopicID(%q) = %q, want %q", tc.id, got, tc.topic)
		}
		if got := q.TurnID(); got != tc.turn {
			t.Errorf("TurnID(%q) = %q, want %q", tc.id, got, tc.turn)
		}
		if got := q.LeafID(); got != tc.leaf {
			t.Errorf("LeafID(%q) = %q, want %q", tc.id, got, tc.leaf)
		}
	}
}

func TestQuery_WithQuestionIsCopy(t *testing.T) {
	orig := New("81_2", "what about its cost?").WithTerms([]Term{{Text: "cost", Weight: 1}})
	rewritten := orig.WithQuestion("what is the cost of a bathroom remodel?")

	if orig.Question() != "what about its cost?" {
		t.Errorf("original mutated: %q", orig.Question())
	}
	if !orig.IsExpanded() {
		t.Error("original should keep its terms")
	}
	if rewritten.IsExpanded() {
		t.Error("rewritten query should drop stale terms")
	}
	if rewritten.ID() != "81_2" {
		t.Errorf("expected id preserved, got %q", rewritten.ID())
	}
}

func TestQuery_TermsAreCopied(t *testing.T) {
	terms := []Term{{Text: "a", Weight: 1}}
	q := New("1_1", "a").WithTerms(terms)
	terms[0].Weight = 42

	got := q.Terms()
	if got[0].Weight != 1 {
		t.Fatalf("terms aliased caller slice: %v", got)
	}
	got[0].Weight = 7
	if q.Terms()[0].Weight != 1 {
		t.Fatal("Terms() exposed internal slice")
	}
}

func TestQuery_TermWeights(t *testing.T) {
	q := New("1_1", "The cat and the hat")
	w := q.TermWeights()
	if math.Abs(w["the"]-0.4) > 1e-12 {
		t.Errorf("expected the=0.4, got %f", w["the"])
	}
	if math.Abs(w["cat"]-0.2) > 1e-12 {
		t.Errorf("expected cat=0.2, got %f", w["cat"])
	}

	expanded := q.WithTerms([]Term{{Text: "cat", Weight: 0.7}, {Text: "feline", Weight: 0.3}})
	w = expanded.TermWeights()
	if len(w) != 2 || w["feline"] != 0.3 {
		t.Errorf("expected expanded weights, got %v", w)
	}

	if len(New("1_1", "  ").TermWeights()) != 0 {
		t.Error("expected empty weights for blank question")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("What's the U.S. GDP, in 2019?")
	want := []string{"what", "s", "the", "u", "s", "gdp", "in", "2019"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestContext_AppendDoesNotAlias(t *testing.T) {
	var c Context
	c1 := c.Append(Exchange{Query: New("1_1", "first")})
	c2 := c1.Append(Exchange{Query: New("1_2", "second"), Documents: []string{"d"}})
	c3 := c1.Append(Exchange{Query: New("1_2", "other")})

	if len(c1) != 1 || len(c2) != 2 || len(c3) != 2 {
		t.Fatalf("unexpected lengths %d %d %d", len(c1), len(c2), len(c3))
	}
	if c2[1].Query.Question() != "second" {
		t.Errorf("c2 overwritten by sibling append: %q", c2[1].Query.Question())
	}
	qs := c2.Questions()
	if qs[0] != "first" || qs[1] != "second" {
		t.Errorf("unexpected questions %v", qs)
	}
	last, ok := c3.Last()
	if !ok || last.Query.Question() != "other" {
		t.Errorf("unexpected last exchange %+v", last)
	}
	if _, ok := c.Last(); ok {
		t.Error("empty context should have no last exchange")
	}
}
