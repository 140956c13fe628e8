// Package corpus holds a labeled corpus of raw combat log lines shared by
// the engine tests.
package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// Expected outcomes of running a corpus line through the normalizer.
const (
	Kept      = "kept"
	Filtered  = "filtered"
	Malformed = "malformed"
)

// Expected row shapes for kept lines.
const (
	ShapeAura        = "aura"
	ShapePassthrough = "passthrough"
)

// CorpusEntry is a labeled raw line for normalizer validation.
type CorpusEntry struct {
	Raw             string `json:"raw"`
	ExpectedEvent   string `json:"expected_event"`
	ExpectedOutcome string `json:"expected_outcome"`
	ExpectedShape   string `json:"expected_shape"`
	Description     string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
