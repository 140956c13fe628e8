package combatlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/crimson-sun/combatlog/internal/connector"
	"github.com/crimson-sun/combatlog/internal/engine"
	"github.com/crimson-sun/combatlog/internal/engine/normalizer"
	"github.com/crimson-sun/combatlog/internal/engine/segmenter"
	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
	"github.com/crimson-sun/combatlog/internal/pipeline"
)

// Summary reports what a run did.
type Summary struct {
	Lines             int // raw lines read
	Filtered          int // lines dropped by the event policy
	Malformed         int // lines that could not be parsed
	Records           int // canonical records written
	Encounters        int
	EncountersKept    int
	EncountersDropped int
	Deaths            int // tracked player deaths, including dropped encounters
}

var defaultNormalizer = normalizer.New()

// NormalizeLine applies the stage-1 filter to one raw line. It returns the
// intermediate fields and true when the line is kept, or nil and false when
// it is filtered out or malformed.
func NormalizeLine(line string) ([]string, bool) {
	rec, err := defaultNormalizer.ParseLine(line)
	if err != nil || rec == nil {
		return nil, false
	}
	return rec.Fields, true
}

// Process reads a raw combat log from r and writes the canonical CSV to w.
// Nothing is written until the whole log has been read; on a read error w
// is left untouched.
func Process(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (Summary, error) {
	o := resolve(opts)
	out := &csvOutput{w: csv.NewWriter(w), header: o.header}
	sum, err := run(ctx, r, out, o)
	if err != nil {
		return sum, err
	}
	if err := out.Close(); err != nil {
		return sum, fmt.Errorf("combatlog: %w", err)
	}
	return sum, nil
}

// Events reads a raw combat log from r and returns the canonical records.
func Events(ctx context.Context, r io.Reader, opts ...Option) ([]Event, Summary, error) {
	out := &collector{}
	sum, err := run(ctx, r, out, resolve(opts))
	if err != nil {
		return nil, sum, err
	}
	return out.events, sum, nil
}

func resolve(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func run(ctx context.Context, r io.Reader, out output.Output, o options) (Summary, error) {
	eng := engine.New(normalizer.New(), segmenter.Config{MinDuration: o.minDuration})
	p := pipeline.New(readerConnector{r: r}, eng, out)

	stats, seg, err := p.Run(ctx, connector.ConnectorConfig{Provider: "reader"})
	sum := Summary{
		Lines:             stats.Lines,
		Filtered:          stats.Filtered,
		Malformed:         stats.Malformed,
		Records:           seg.Written,
		Encounters:        seg.Encounters,
		EncountersKept:    seg.EncountersKept,
		EncountersDropped: seg.EncountersDropped,
		Deaths:            seg.Deaths,
	}
	if err != nil {
		return sum, fmt.Errorf("combatlog: %w", err)
	}
	return sum, nil
}

// readerConnector feeds an io.Reader to the pipeline.
type readerConnector struct {
	r io.Reader
}

func (c readerConnector) Read(ctx context.Context, _ connector.ConnectorConfig, fn func(model.RawLine) error) error {
	return connector.ScanLines(ctx, c.r, fn)
}

// csvOutput writes the canonical CSV. The header is written with the first
// record or on Close, whichever comes first.
type csvOutput struct {
	w      *csv.Writer
	header bool
	wrote  bool
}

func (o *csvOutput) writeHeader() error {
	if o.wrote {
		return nil
	}
	o.wrote = true
	if !o.header {
		return nil
	}
	return o.w.Write(output.CanonicalHeader)
}

func (o *csvOutput) Write(_ context.Context, rec model.CanonicalRecord) error {
	if err := o.writeHeader(); err != nil {
		return err
	}
	return o.w.Write(output.FormatRecord(rec))
}

func (o *csvOutput) Close() error {
	if err := o.writeHeader(); err != nil {
		return err
	}
	o.w.Flush()
	return o.w.Error()
}

// collector keeps records as public events.
type collector struct {
	events []Event
}

func (c *collector) Write(_ context.Context, rec model.CanonicalRecord) error {
	c.events = append(c.events, eventFromCanonical(rec))
	return nil
}

func (c *collector) Close() error { return nil }

// eventFromCanonical converts the internal CanonicalRecord to the public Event type.
func eventFromCanonical(rec model.CanonicalRecord) Event {
	return Event{
		Timestamp:         rec.Timestamp,
		EventType:         rec.EventType,
		DamageSource:      rec.DamageSource,
		SpellDestination:  rec.SpellDestination,
		SpellID:           rec.SpellID,
		SpellName:         rec.SpellName,
		X:                 rec.X,
		Y:                 rec.Y,
		Facing:            rec.Facing,
		AuraType:          rec.AuraType,
		MapID:             rec.MapID,
		EncounterName:     rec.EncounterName,
		EncounterID:       rec.EncounterID,
		Elapsed:           rec.Elapsed,
		RelativeFightTime: rec.RelativeTime(),
		UnitDiedSequence:  rec.UnitDiedSequence,
	}
}
