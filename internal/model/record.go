package model

import "time"

// TimestampLayout parses combat log timestamps such as
// "10/19/2026 20:01:02.123456". Month, day and hour may be one or two
// digits; the fractional seconds are accepted after the seconds field.
const TimestampLayout = "1/2/2006 15:04:05"

// ParseTimestamp parses a combat log timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// IntermediateHeader is the header row of the stage-1 file. It describes the
// aura shape only; passthrough rows are wider and schema-less.
var IntermediateHeader = []string{"Timestamp", "Event Type", "Destination Player", "Spell ID", "Spell Name", "Aura Type"}

// NormalizedRecord is a stage-1 row. Fields[0] is the timestamp and
// Fields[1] the event type. Aura rows carry exactly six fields; passthrough
// rows carry the raw payload fields after the timestamp.
type NormalizedRecord struct {
	Fields []string
}

// Timestamp returns the row's timestamp column.
func (r NormalizedRecord) Timestamp() string { return r.Field(0) }

// EventType returns the row's event type column.
func (r NormalizedRecord) EventType() string { return r.Field(1) }

// Field returns column i, or "" if the row is too short.
func (r NormalizedRecord) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Position is a unit's last known location. Values are kept as the text
// found in the log so they round-trip byte for byte.
type Position struct {
	X      string `json:"x"`
	Y      string `json:"y"`
	Facing string `json:"facing"`
}

// CanonicalRecord is a stage-2 row in the fixed 15-column schema.
type CanonicalRecord struct {
	Timestamp        string `json:"timestamp"`
	EventType        string `json:"event_type"`
	DamageSource     string `json:"damage_source,omitempty"`
	SpellDestination string `json:"spell_destination,omitempty"`
	SpellID          string `json:"spell_id,omitempty"`
	SpellName        string `json:"spell_name,omitempty"`
	Position
	AuraType         string        `json:"aura_type,omitempty"`
	MapID            string        `json:"map_id,omitempty"`
	EncounterName    string        `json:"encounter_name,omitempty"`
	EncounterID      int           `json:"encounter_id"`
	Elapsed          time.Duration `json:"-"` // since the enclosing ENCOUNTER_START
	UnitDiedSequence int           `json:"unit_died_sequence"`
}

// RelativeTime renders Elapsed the way it appears in the canonical file.
func (r CanonicalRecord) RelativeTime() string {
	return FormatSeconds(r.Elapsed)
}
