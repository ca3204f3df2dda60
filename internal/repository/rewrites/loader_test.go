package rewrites

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/castrank/internal/domain"
)

func TestLoad(t *testing.T) {
	in := "query_id\tquery\n" +
		"81_1\tWhat is throat cancer?\n" +
		"81_2\tHow does \"throat cancer\" spread?\n" +
		"81_1\tWhat is laryngeal cancer?\n"

	got, err := Load(strings.NewReader(in), "rw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ids, got %v", got)
	}
	if got["81_1"] != "What is laryngeal cancer?" {
		t.Errorf("last line should win, got %q", got["81_1"])
	}
	if got["81_2"] != `How does "throat cancer" spread?` {
		t.Errorf("quotes mangled: %q", got["81_2"])
	}
}

func TestLoad_NoHeader(t *testing.T) {
	got, err := Load(strings.NewReader("1_1\tq\n"), "rw")
	if err != nil || got["1_1"] != "q" {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"one column":    "1_1\tq\n1_2\n",
		"three columns": "1_1\ta\tb\n",
		"empty id":      "\tq\n",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Load(strings.NewReader(in), "rw")
			if !errors.Is(err, domain.ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
			if got != nil {
				t.Error("expected no partial result")
			}
		})
	}
}
