package segmenter

import (
	"slices"
	"time"

	"github.com/crimson-sun/combatlog/internal/model"
)

// survivors returns the provisional ids whose duration exceeds floor, in
// ascending order, and their dense 1..N renumbering. Encounters that never
// recorded a duration are not in durations and therefore never survive.
func survivors(durations map[int]time.Duration, floor time.Duration) ([]int, map[int]int) {
	var kept []int
	for id, d := range durations {
		if id != 0 && d > floor {
			kept = append(kept, id)
		}
	}
	slices.Sort(kept)

	mapping := make(map[int]int, len(kept))
	for i, id := range kept {
		mapping[id] = i + 1
	}
	return kept, mapping
}

// filterAndRenumber keeps the records whose provisional encounter id is in
// mapping and rewrites each id to its final value. Order is preserved.
func filterAndRenumber(records []model.CanonicalRecord, mapping map[int]int) []model.CanonicalRecord {
	out := make([]model.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		final, ok := mapping[rec.EncounterID]
		if !ok {
			continue
		}
		rec.EncounterID = final
		out = append(out, rec)
	}
	return out
}

// Resegment applies the duration filter and renumbering to records that are
// already canonical, such as the output of an earlier run. Each encounter's
// duration is the relative time of its ENCOUNTER_END record; records are
// otherwise passed through untouched.
func Resegment(records []model.CanonicalRecord, cfg Config) ([]model.CanonicalRecord, Summary) {
	if cfg.MinDuration == 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	summary := Summary{Rows: len(records), Records: len(records)}
	durations := make(map[int]time.Duration)
	for _, rec := range records {
		switch rec.EventType {
		case model.EncounterStart:
			summary.Encounters++
		case model.EncounterEnd:
			if rec.EncounterID != 0 {
				durations[rec.EncounterID] = rec.Elapsed
			}
		case model.UnitDied:
			if rec.EncounterID != 0 && hasRealmSuffix(rec.SpellDestination) {
				summary.Deaths++
			}
		}
	}

	kept, mapping := survivors(durations, cfg.MinDuration)
	out := filterAndRenumber(records, mapping)
	summary.EncountersKept = len(kept)
	summary.EncountersDropped = max(summary.Encounters-len(kept), 0)
	summary.Written = len(out)
	return out, summary
}
