// Package normalizer implements stage 1 of the pipeline: it classifies raw
// combat log lines, drops metadata and uninteresting events, reshapes aura
// lifecycle events, and passes everything else through as a field vector.
package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crimson-sun/combatlog/internal/model"
)

// MinLineLength is the shortest trimmed line considered well formed.
const MinLineLength = 25

// payloadSeparator splits the timestamp from the event payload.
const payloadSeparator = "  "

// Aura payload columns (0 is the event type).
const (
	auraDestNameCol  = 6
	auraSpellIDCol   = 9
	auraSpellNameCol = 10
)

var (
	ErrLineTooShort = errors.New("line shorter than minimum length")
	ErrNoPayload    = errors.New("line has no timestamp/payload separator")
	ErrBadPayload   = errors.New("payload is not valid comma-separated data")
	ErrShortAura    = errors.New("aura event payload too short")
)

// floatPattern matches a decimal literal with a mandatory fractional part.
var floatPattern = regexp.MustCompile(`[-+]?[0-9]*\.[0-9]+`)

// Normalizer turns raw lines into stage-1 records. It holds no per-line
// state and is safe for concurrent use.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// ParseLine classifies a single raw line.
//
// Return values:
//   - (rec, nil): the line is kept
//   - (nil, nil): the line is well formed but filtered out
//   - (nil, err): the line is malformed and must be skipped
func (n *Normalizer) ParseLine(line string) (*model.NormalizedRecord, error) {
	line = strings.TrimSpace(line)
	if len(line) < MinLineLength {
		return nil, ErrLineTooShort
	}
	tsPart, payload, ok := strings.Cut(line, payloadSeparator)
	if !ok {
		return nil, ErrNoPayload
	}
	timestamp := strings.TrimSpace(tsPart)
	payload = strings.TrimSpace(payload)

	fields, err := splitPayload(payload)
	if err != nil {
		return nil, err
	}
	eventType := strings.TrimSpace(fields[0])

	switch {
	case model.IsExcluded(eventType):
		return nil, nil
	case model.IsAura(eventType):
		return auraRecord(timestamp, eventType, fields)
	case model.IsIncluded(eventType), floatPattern.MatchString(payload):
		return passthrough(timestamp, fields), nil
	}
	return nil, nil
}

// splitPayload parses the payload as one CSV record. Quoted fields may
// contain commas; stray quotes inside bare fields are tolerated.
func splitPayload(payload string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(payload))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if len(fields) == 0 {
		return nil, ErrBadPayload
	}
	return fields, nil
}

func auraRecord(timestamp, eventType string, fields []string) (*model.NormalizedRecord, error) {
	if len(fields) <= auraSpellNameCol {
		return nil, fmt.Errorf("%w: %s has %d fields", ErrShortAura, eventType, len(fields))
	}
	return &model.NormalizedRecord{Fields: []string{
		timestamp,
		eventType,
		unquote(fields[auraDestNameCol]),
		fields[auraSpellIDCol],
		unquote(fields[auraSpellNameCol]),
		fields[len(fields)-1],
	}}, nil
}

func passthrough(timestamp string, fields []string) *model.NormalizedRecord {
	out := make([]string, 0, len(fields)+1)
	out = append(out, timestamp)
	out = append(out, fields...)
	return &model.NormalizedRecord{Fields: out}
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
