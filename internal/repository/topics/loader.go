// Package topics reads CAsT topic files.
package topics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/topic"
)

type rawTopic struct {
	Number flexID    `json:"number"`
	Turns  []rawTurn `json:"turn"`
}

type rawTurn struct {
	Number            flexID `json:"number"`
	Raw               string `json:"raw_utterance"`
	Manual            string `json:"manual_rewritten_utterance"`
	Automatic         string `json:"automatic_rewritten_utterance"`
	CanonicalResultID string `json:"canonical_result_id"`
}

// flexID accepts both 31 and "31": topic files of different years disagree.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// LoadFile reads a topic file from disk.
func LoadFile(path string) ([]topic.Topic, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open topics: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f, path)
}

// Load parses a JSON array of topics. Topics keep file order, turns are sorted by number.
func Load(r io.Reader, source string) ([]topic.Topic, error) {
	var raw []rawTopic
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewFormatError(source, 0, fmt.Sprintf("decode topics: %v", err))
	}

	out := make([]topic.Topic, 0, len(raw))
	for i, rt := range raw {
		if rt.Number == "" {
			return nil, domain.NewFormatError(source, 0, fmt.Sprintf("topic #%d has no number", i+1))
		}

		t := topic.Topic{ID: string(rt.Number), Turns: make([]topic.Turn, 0, len(rt.Turns))}
		seen := make(map[int]bool, len(rt.Turns))
		for _, turn := range rt.Turns {
			n, err := strconv.Atoi(string(turn.Number))
			if err != nil || n < 1 {
				return nil, domain.NewFormatError(source, 0,
					fmt.Sprintf("topic %s: invalid turn number %q", t.ID, turn.Number))
			}
			if seen[n] {
				return nil, domain.NewFormatError(source, 0,
					fmt.Sprintf("topic %s: duplicate turn %d", t.ID, n))
			}
			seen[n] = true

			t.Turns = append(t.Turns, topic.Turn{
				Number:            n,
				Raw:               strings.TrimSpace(turn.Raw),
				Manual:            strings.TrimSpace(turn.Manual),
				Automatic:         strings.TrimSpace(turn.Automatic),
				CanonicalResultID: turn.CanonicalResultID,
			})
		}
		sort.Slice(t.Turns, func(a, b int) bool { return t.Turns[a].Number < t.Turns[b].Number })
		out = append(out, t)
	}
	return out, nil
}
