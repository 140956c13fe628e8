package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/combatlog/internal/canonical"
	"github.com/crimson-sun/combatlog/internal/connector"
	"github.com/crimson-sun/combatlog/internal/engine"
	"github.com/crimson-sun/combatlog/internal/engine/normalizer"
	"github.com/crimson-sun/combatlog/internal/engine/segmenter"
	"github.com/crimson-sun/combatlog/internal/intermediate"
	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
)

// RowWriter receives the rows produced by stage 1.
type RowWriter interface {
	Write(rec model.NormalizedRecord) error
}

// RowWriterFunc adapts a function to RowWriter.
type RowWriterFunc func(rec model.NormalizedRecord) error

func (f RowWriterFunc) Write(rec model.NormalizedRecord) error { return f(rec) }

// Stats counts what stage 1 did with each line.
type Stats struct {
	Lines       int // lines read from the source
	Emitted     int // rows handed to the next stage
	Filtered    int // lines dropped by the event policy
	Malformed   int // lines that could not be parsed
	AuraDropped int // aura lines too short to reshape, included in Malformed
}

// Pipeline connects a connector, engine, and output into a processing pipeline.
// The output may be nil for a pipeline that only normalizes.
type Pipeline struct {
	connector connector.Connector
	engine    *engine.Engine
	output    output.Output
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *engine.Engine, out output.Output) *Pipeline {
	return &Pipeline{
		connector: conn,
		engine:    eng,
		output:    out,
	}
}

// Normalize runs stage 1: every line of the source is classified and the
// kept rows are written to w in input order. Malformed lines are counted and
// skipped; only source and writer errors abort the run.
func (p *Pipeline) Normalize(ctx context.Context, cfg connector.ConnectorConfig, w RowWriter) (Stats, error) {
	var stats Stats
	err := p.connector.Read(ctx, cfg, func(raw model.RawLine) error {
		stats.Lines++
		rec, err := p.engine.Normalize(raw)
		switch {
		case errors.Is(err, normalizer.ErrShortAura):
			stats.Malformed++
			stats.AuraDropped++
			slog.Warn("aura line dropped", "line", raw.Number, "error", err)
			return nil
		case err != nil:
			stats.Malformed++
			slog.Debug("malformed line skipped", "line", raw.Number, "error", err)
			return nil
		case rec == nil:
			stats.Filtered++
			return nil
		}
		if err := w.Write(*rec); err != nil {
			return fmt.Errorf("pipeline write row: %w", err)
		}
		stats.Emitted++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("pipeline normalize: %w", err)
	}

	slog.Info("normalize complete",
		"lines", stats.Lines,
		"emitted", stats.Emitted,
		"filtered", stats.Filtered,
		"malformed", stats.Malformed,
	)
	return stats, nil
}

// Segment runs stage 2 over the intermediate file at path and writes the
// surviving canonical records to the output. A file that is already
// canonical, such as an earlier stage 2 output, is only filtered and
// renumbered again.
func (p *Pipeline) Segment(ctx context.Context, path string) (segmenter.Summary, error) {
	isCanonical, err := canonical.HasHeader(path)
	if err != nil {
		return segmenter.Summary{}, fmt.Errorf("pipeline segment: %w", err)
	}
	if isCanonical {
		records, err := canonical.ReadFile(ctx, path)
		if err != nil {
			return segmenter.Summary{}, fmt.Errorf("pipeline segment: %w", err)
		}
		records, summary := p.engine.Resegment(records)
		return p.write(ctx, records, summary)
	}

	seg := p.engine.NewSegmenter()
	err = intermediate.ScanFile(ctx, path, func(rec model.NormalizedRecord) error {
		seg.Add(rec)
		return nil
	})
	if err != nil {
		return segmenter.Summary{}, fmt.Errorf("pipeline segment: %w", err)
	}
	return p.flush(ctx, seg)
}

// Run performs both stages in one pass over the source, handing stage-1
// rows straight to the segmenter instead of through an intermediate file.
func (p *Pipeline) Run(ctx context.Context, cfg connector.ConnectorConfig) (Stats, segmenter.Summary, error) {
	seg := p.engine.NewSegmenter()
	stats, err := p.Normalize(ctx, cfg, RowWriterFunc(func(rec model.NormalizedRecord) error {
		seg.Add(rec)
		return nil
	}))
	if err != nil {
		return stats, segmenter.Summary{}, err
	}
	summary, err := p.flush(ctx, seg)
	return stats, summary, err
}

// flush finishes the segmenter and writes its records to the output.
func (p *Pipeline) flush(ctx context.Context, seg *segmenter.Segmenter) (segmenter.Summary, error) {
	records, summary := seg.Finish()
	return p.write(ctx, records, summary)
}

func (p *Pipeline) write(ctx context.Context, records []model.CanonicalRecord, summary segmenter.Summary) (segmenter.Summary, error) {
	if p.output == nil {
		return summary, fmt.Errorf("pipeline: no output configured")
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.output.Write(ctx, rec); err != nil {
			return summary, fmt.Errorf("pipeline output: %w", err)
		}
	}

	slog.Info("segment complete",
		"rows", summary.Rows,
		"records", summary.Written,
		"encounters", summary.Encounters,
		"kept", summary.EncountersKept,
		"dropped", summary.EncountersDropped,
		"deaths", summary.Deaths,
	)
	return summary, nil
}

// Close commits the output.
func (p *Pipeline) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}

// Abort discards whatever the output has buffered.
func (p *Pipeline) Abort() error {
	if p.output == nil {
		return nil
	}
	return output.Abort(p.output)
}
