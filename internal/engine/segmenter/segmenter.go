// Package segmenter implements stage 2 of the pipeline. It splits the
// normalized row stream into encounters, tracks unit positions, rewrites rows
// into the canonical schema, and finally drops short encounters and
// renumbers the survivors.
package segmenter

import (
	"log/slog"
	"strings"
	"time"

	"github.com/crimson-sun/combatlog/internal/model"
)

// DefaultMinDuration is the encounter duration at or below which an
// encounter is discarded.
const DefaultMinDuration = 35 * time.Second

// realmSuffixes mark a UNIT_DIED destination as a tracked player.
var realmSuffixes = []string{"-EU", "-US"}

// Config controls segmentation.
type Config struct {
	MinDuration time.Duration // encounters lasting <= this are dropped
}

// Summary reports what a segmentation run did.
type Summary struct {
	Rows              int // rows consumed
	Records           int // canonical records emitted before filtering
	Written           int // canonical records surviving the filter
	Encounters        int // ENCOUNTER_START markers seen
	EncountersKept    int
	EncountersDropped int
	Deaths            int // tracked player deaths inside encounters, dropped ones included
}

// Segmenter holds the scan state of one run. It is not safe for concurrent
// use and is not reusable after Finish.
type Segmenter struct {
	cfg Config

	encounterID int // provisional id of the current encounter, 0 outside
	lastID      int
	mapID       string
	start       time.Time
	hasStart    bool
	deaths      int
	positions   positionCache

	durations map[int]time.Duration
	records   []model.CanonicalRecord
	summary   Summary
}

// New creates a Segmenter. A zero MinDuration selects DefaultMinDuration.
func New(cfg Config) *Segmenter {
	if cfg.MinDuration == 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	return &Segmenter{
		cfg:       cfg,
		positions: positionCache{},
		durations: make(map[int]time.Duration),
	}
}

// Segment runs a complete pass over rows.
func Segment(rows []model.NormalizedRecord, cfg Config) ([]model.CanonicalRecord, Summary) {
	s := New(cfg)
	for _, row := range rows {
		s.Add(row)
	}
	return s.Finish()
}

// Add consumes the next row in log order.
func (s *Segmenter) Add(row model.NormalizedRecord) {
	if len(row.Fields) < 2 {
		return
	}
	s.summary.Rows++

	eventType := row.EventType()
	eventTime, err := model.ParseTimestamp(strings.TrimSpace(row.Timestamp()))
	timeOK := err == nil

	switch eventType {
	case model.EncounterStart:
		s.startEncounter(row, eventTime, timeOK)
		return
	case model.EncounterEnd:
		s.endEncounter(row, eventTime, timeOK)
		return
	}

	mv, moving := movements[eventType]
	if moving {
		if p, ok := mv.position(row); ok {
			s.positions.set(row.Fields[mv.unitCol()], p)
		}
	}

	var elapsed time.Duration
	if s.encounterID != 0 && s.hasStart && timeOK {
		elapsed = eventTime.Sub(s.start)
	}

	switch {
	case eventType == model.UnitDied:
		s.unitDied(row, elapsed)
	case model.IsAura(eventType):
		s.aura(row, elapsed)
	case moving && mv.family == spellFamily:
		s.spell(row, mv, elapsed)
	case moving && mv.family == swingFamily:
		s.swing(row, mv, elapsed)
	}
}

func (s *Segmenter) startEncounter(row model.NormalizedRecord, eventTime time.Time, timeOK bool) {
	s.lastID++
	s.encounterID = s.lastID
	s.mapID = row.Field(encounterStartMapCol)
	s.start, s.hasStart = eventTime, timeOK
	s.deaths = 0
	s.positions = positionCache{}
	s.summary.Encounters++

	s.emit(model.CanonicalRecord{
		Timestamp:     row.Timestamp(),
		EventType:     row.EventType(),
		MapID:         s.mapID,
		EncounterName: row.Field(encounterNameCol),
	}, 0)
}

func (s *Segmenter) endEncounter(row model.NormalizedRecord, eventTime time.Time, timeOK bool) {
	var duration time.Duration
	if s.encounterID != 0 && s.hasStart && timeOK {
		// Filter on the value that is written, so a second pass over the
		// output keeps exactly the same encounters.
		duration = model.RoundSeconds(eventTime.Sub(s.start))
	}
	if s.encounterID != 0 {
		s.durations[s.encounterID] = duration
	}

	s.emit(model.CanonicalRecord{
		Timestamp:     row.Timestamp(),
		EventType:     row.EventType(),
		MapID:         s.mapID,
		EncounterName: row.Field(encounterNameCol),
	}, duration)

	s.encounterID = 0
	s.mapID = ""
	s.hasStart = false
}

// unitDied emits tracked player deaths. A row too short to name its
// destination is still emitted, with blank fields, so that it stays visible
// next to the counted deaths.
func (s *Segmenter) unitDied(row model.NormalizedRecord, elapsed time.Duration) {
	if len(row.Fields) <= destCol {
		slog.Debug("unit died row missing destination", "timestamp", row.Timestamp(), "fields", len(row.Fields))
		s.emit(model.CanonicalRecord{Timestamp: row.Timestamp(), EventType: row.EventType()}, elapsed)
		return
	}
	dest := row.Fields[destCol]
	if !hasRealmSuffix(dest) {
		return
	}
	s.deaths++
	if s.encounterID != 0 {
		s.summary.Deaths++
	}
	s.emit(model.CanonicalRecord{
		Timestamp:        row.Timestamp(),
		EventType:        row.EventType(),
		SpellDestination: dest,
		Position:         s.positions.get(dest),
	}, elapsed)
}

func (s *Segmenter) aura(row model.NormalizedRecord, elapsed time.Duration) {
	if len(row.Fields) <= auraTypeCol {
		slog.Debug("aura row too short", "timestamp", row.Timestamp(), "fields", len(row.Fields))
		return
	}
	dest := row.Fields[auraDestCol]
	s.emit(model.CanonicalRecord{
		Timestamp:        row.Timestamp(),
		EventType:        row.EventType(),
		SpellDestination: dest,
		SpellID:          row.Fields[auraSpellIDCol],
		SpellName:        row.Fields[auraSpellNameCol],
		Position:         s.positions.get(dest),
		AuraType:         row.Fields[auraTypeCol],
	}, elapsed)
}

func (s *Segmenter) spell(row model.NormalizedRecord, mv movement, elapsed time.Duration) {
	if len(row.Fields) <= mv.facingCol {
		slog.Debug("spell row too short", "event", row.EventType(), "timestamp", row.Timestamp(), "fields", len(row.Fields))
		return
	}
	s.emit(model.CanonicalRecord{
		Timestamp:        row.Timestamp(),
		EventType:        row.EventType(),
		DamageSource:     row.Fields[sourceCol],
		SpellDestination: row.Fields[destCol],
		SpellID:          row.Fields[spellIDCol],
		SpellName:        row.Fields[spellNameCol],
		Position:         model.Position{X: row.Fields[mv.x], Y: row.Fields[mv.y], Facing: row.Fields[mv.facingCol]},
	}, elapsed)
}

func (s *Segmenter) swing(row model.NormalizedRecord, mv movement, elapsed time.Duration) {
	if len(row.Fields) <= mv.facingCol {
		slog.Debug("swing row too short", "event", row.EventType(), "timestamp", row.Timestamp(), "fields", len(row.Fields))
		return
	}
	s.emit(model.CanonicalRecord{
		Timestamp:        row.Timestamp(),
		EventType:        row.EventType(),
		DamageSource:     row.Fields[sourceCol],
		SpellDestination: row.Fields[destCol],
		SpellID:          row.Fields[spellIDCol],
		Position:         model.Position{X: row.Fields[mv.x], Y: row.Fields[mv.y], Facing: row.Fields[mv.facingCol]},
	}, elapsed)
}

// emit stamps the record with the current encounter and death counter.
func (s *Segmenter) emit(rec model.CanonicalRecord, elapsed time.Duration) {
	rec.EncounterID = s.encounterID
	rec.Elapsed = elapsed
	rec.UnitDiedSequence = s.deaths
	s.records = append(s.records, rec)
	s.summary.Records++
}

// Finish applies the duration filter and dense renumbering and returns the
// surviving records in their original order.
func (s *Segmenter) Finish() ([]model.CanonicalRecord, Summary) {
	kept, mapping := survivors(s.durations, s.cfg.MinDuration)
	out := filterAndRenumber(s.records, mapping)

	s.summary.EncountersKept = len(kept)
	s.summary.EncountersDropped = s.summary.Encounters - len(kept)
	s.summary.Written = len(out)
	s.records = nil
	return out, s.summary
}

func hasRealmSuffix(unit string) bool {
	for _, suffix := range realmSuffixes {
		if strings.HasSuffix(unit, suffix) {
			return true
		}
	}
	return false
}
