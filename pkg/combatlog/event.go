package combatlog

import "time"

// Event is one record of the canonical stream.
// It is the stable public shape; internal representations may change
// without breaking consumers.
type Event struct {
	Timestamp         string        `json:"timestamp"`                   // As written in the log
	EventType         string        `json:"event_type"`                  // ENCOUNTER_START, UNIT_DIED, SPELL_DAMAGE, ...
	DamageSource      string        `json:"damage_source,omitempty"`     // Spell and swing events
	SpellDestination  string        `json:"spell_destination,omitempty"` // Target unit
	SpellID           string        `json:"spell_id,omitempty"`
	SpellName         string        `json:"spell_name,omitempty"`
	X                 string        `json:"x"`
	Y                 string        `json:"y"`
	Facing            string        `json:"facing"`
	AuraType          string        `json:"aura_type,omitempty"` // BUFF or DEBUFF
	MapID             string        `json:"map_id,omitempty"`
	EncounterName     string        `json:"encounter_name,omitempty"`
	EncounterID       int           `json:"encounter_id"`        // 1..N over kept encounters
	Elapsed           time.Duration `json:"-"`                   // Since ENCOUNTER_START
	RelativeFightTime string        `json:"relative_fight_time"` // Elapsed in seconds, 3 decimals
	UnitDiedSequence  int           `json:"unit_died_sequence"`  // Deaths so far in the encounter
}
