package output

import (
	"strconv"

	"github.com/crimson-sun/combatlog/internal/model"
)

// CanonicalHeader is the header row of the canonical CSV file. Downstream
// consumers key on these exact strings.
var CanonicalHeader = []string{
	"timestamp",
	"event type",
	"Damage source",
	"Spell destination",
	"spell id",
	"spell name",
	"X coord",
	"Y coord",
	"Facing direction",
	"Aura type",
	"map id",
	"encounter name",
	"encounter id",
	"relative fight time (s)",
	"unit died sequence",
}

// FormatRecord renders rec as the 15 canonical columns.
func FormatRecord(rec model.CanonicalRecord) []string {
	return []string{
		rec.Timestamp,
		rec.EventType,
		rec.DamageSource,
		rec.SpellDestination,
		rec.SpellID,
		rec.SpellName,
		rec.X,
		rec.Y,
		rec.Facing,
		rec.AuraType,
		rec.MapID,
		rec.EncounterName,
		strconv.Itoa(rec.EncounterID),
		rec.RelativeTime(),
		strconv.Itoa(rec.UnitDiedSequence),
	}
}

// JSONRecord is the JSON shape of a canonical record. Relative time is kept
// as its 3-decimal text so JSON and CSV agree exactly.
type JSONRecord struct {
	model.CanonicalRecord
	RelativeFightTime string `json:"relative_fight_time"`
}

// ToJSON wraps rec for JSON encoding.
func ToJSON(rec model.CanonicalRecord) JSONRecord {
	return JSONRecord{CanonicalRecord: rec, RelativeFightTime: rec.RelativeTime()}
}
