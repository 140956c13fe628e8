package engine

import (
	"github.com/crimson-sun/combatlog/internal/engine/normalizer"
	"github.com/crimson-sun/combatlog/internal/engine/segmenter"
	"github.com/crimson-sun/combatlog/internal/model"
)

// Engine orchestrates the normalize → segment pipeline.
type Engine struct {
	normalizer *normalizer.Normalizer
	segment    segmenter.Config
}

// New creates an Engine with the provided components.
func New(n *normalizer.Normalizer, cfg segmenter.Config) *Engine {
	return &Engine{
		normalizer: n,
		segment:    cfg,
	}
}

// Normalize classifies a single raw line. See normalizer.ParseLine for the
// meaning of the return values.
func (e *Engine) Normalize(raw model.RawLine) (*model.NormalizedRecord, error) {
	return e.normalizer.ParseLine(raw.Text)
}

// NewSegmenter starts a stage-2 pass. Each run needs its own segmenter.
func (e *Engine) NewSegmenter() *segmenter.Segmenter {
	return segmenter.New(e.segment)
}

// Segment runs stage 2 over an already materialized row list.
func (e *Engine) Segment(rows []model.NormalizedRecord) ([]model.CanonicalRecord, segmenter.Summary) {
	return segmenter.Segment(rows, e.segment)
}

// Resegment re-applies stage 2 filtering to canonical records.
func (e *Engine) Resegment(records []model.CanonicalRecord) ([]model.CanonicalRecord, segmenter.Summary) {
	return segmenter.Resegment(records, e.segment)
}
