package topic

import "testing"

func TestParseUtteranceKind(t *testing.T) {
	tests := []struct {
		in      string
		want    UtteranceKind
		wantErr bool
	}{
		{"", Raw, false},
		{"raw", Raw, false},
		{"manual", Manual, false},
		{"automatic", Automatic, false},
		{"canonical", "", true},
	}
	for _, tc := range tests {
		got, err := ParseUtteranceKind(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseUtteranceKind(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseUtteranceKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTurn_UtteranceFallback(t *testing.T) {
	turn := Turn{Number: 2, Raw: "what about it?", Manual: "what about the bronze age collapse?"}
	if got := turn.Utterance(Manual); got != turn.Manual {
		t.Errorf("manual: got %q", got)
	}
	if got := turn.Utterance(Automatic); got != turn.Raw {
		t.Errorf("automatic should fall back to raw, got %q", got)
	}
	if got := turn.Utterance(Raw); got != turn.Raw {
		t.Errorf("raw: got %q", got)
	}
}

func TestTopic_Queries(t *testing.T) {
	tp := Topic{ID: "31", Turns: []Turn{
		{Number: 1, Raw: "tell me about the bronze age collapse"},
		{Number: 2, Raw: "what caused it?", Manual: "what caused the bronze age collapse?"},
	}}
	qs := tp.Queries(Manual)
	if len(qs) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(qs))
	}
	if qs[0].ID() != "31_1" || qs[1].ID() != "31_2" {
		t.Errorf("unexpected ids %q %q", qs[0].ID(), qs[1].ID())
	}
	if qs[1].Question() != "what caused the bronze age collapse?" {
		t.Errorf("unexpected question %q", qs[1].Question())
	}
	if qs[1].TopicID() != "31" {
		t.Errorf("unexpected topic id %q", qs[1].TopicID())
	}
}
