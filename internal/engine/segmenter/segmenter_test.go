package segmenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/combatlog/internal/model"
)

var t0 = time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

func stamp(at time.Duration) string {
	return t0.Add(at).Format("01/02/2006 15:04:05.000000")
}

func row(fields ...string) model.NormalizedRecord {
	return model.NormalizedRecord{Fields: fields}
}

func startRow(at time.Duration) model.NormalizedRecord {
	return row(stamp(at), "ENCOUNTER_START", "2902", "Ulgrax the Devourer", "16", "20", "2657")
}

func endRow(at time.Duration) model.NormalizedRecord {
	return row(stamp(at), "ENCOUNTER_END", "2902", "Ulgrax the Devourer", "16", "20", "1", "300000")
}

// spellRow builds a 32-column advanced-logging spell event.
func spellRow(at time.Duration, event, source, dest, x, y, facing string) model.NormalizedRecord {
	f := make([]string, 32)
	for i := range f {
		f[i] = "0"
	}
	f[0], f[1] = stamp(at), event
	f[2], f[3] = "Player-1", source
	f[6], f[7] = "Player-2", dest
	f[10], f[11] = "1449", "Arcane Explosion"
	f[27], f[28], f[29], f[30] = x, y, "2657", facing
	return model.NormalizedRecord{Fields: f}
}

// swingRow builds a 29-column advanced-logging melee event.
func swingRow(at time.Duration, event, source, dest, x, y, facing string) model.NormalizedRecord {
	f := make([]string, 29)
	for i := range f {
		f[i] = "0"
	}
	f[0], f[1] = stamp(at), event
	f[2], f[3] = "Creature-1", source
	f[6], f[7] = "Player-2", dest
	f[10] = "1"
	f[24], f[25], f[26], f[27] = x, y, "2657", facing
	return model.NormalizedRecord{Fields: f}
}

func diedRow(at time.Duration, dest string) model.NormalizedRecord {
	return row(stamp(at), "UNIT_DIED", "0000000000000000", "nil", "0x80000000", "0x80000000", "Player-2", dest, "0x512", "0x0", "0")
}

func auraRow(at time.Duration, event, dest string) model.NormalizedRecord {
	return row(stamp(at), event, dest, "17", "Power Word: Shield", "BUFF")
}

func encounterIDs(records []model.CanonicalRecord) []int {
	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.EncounterID
	}
	return ids
}

func find(t *testing.T, records []model.CanonicalRecord, eventType string) model.CanonicalRecord {
	t.Helper()
	for _, r := range records {
		if r.EventType == eventType {
			return r
		}
	}
	t.Fatalf("no %s record in output", eventType)
	return model.CanonicalRecord{}
}

func TestSegmentKeepsLongEncounter(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		spellRow(10*time.Second, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "100.0", "200.0", "1.5"),
		diedRow(12*time.Second, "Alice-US"),
		endRow(40 * time.Second),
	}, Config{})

	require.Len(t, records, 4)
	assert.Equal(t, []int{1, 1, 1, 1}, encounterIDs(records))

	start := records[0]
	assert.Equal(t, "ENCOUNTER_START", start.EventType)
	assert.Equal(t, "2657", start.MapID)
	assert.Equal(t, "Ulgrax the Devourer", start.EncounterName)
	assert.Equal(t, "0.000", start.RelativeTime())
	assert.Equal(t, 0, start.UnitDiedSequence)

	cast := records[1]
	assert.Equal(t, "Alice-US", cast.DamageSource)
	assert.Equal(t, "1449", cast.SpellID)
	assert.Equal(t, "Arcane Explosion", cast.SpellName)
	assert.Equal(t, "10.000", cast.RelativeTime())

	death := records[2]
	assert.Equal(t, "Alice-US", death.SpellDestination)
	assert.Equal(t, model.Position{X: "100.0", Y: "200.0", Facing: "1.5"}, death.Position)
	assert.Equal(t, 1, death.UnitDiedSequence)
	assert.Equal(t, "12.000", death.RelativeTime())

	end := records[3]
	assert.Equal(t, "40.000", end.RelativeTime())
	assert.Equal(t, "2657", end.MapID)
	assert.Equal(t, 1, end.UnitDiedSequence)

	assert.Equal(t, Summary{
		Rows: 4, Records: 4, Written: 4,
		Encounters: 1, EncountersKept: 1, Deaths: 1,
	}, summary)
}

func TestSegmentDropsShortEncounterAndRenumbers(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		spellRow(10*time.Second, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "100.0", "200.0", "1.5"),
		diedRow(12*time.Second, "Alice-US"),
		endRow(20 * time.Second),
		startRow(100 * time.Second),
		spellRow(110*time.Second, "SPELL_CAST_SUCCESS", "Bob-EU", "nil", "1.0", "2.0", "3.0"),
		endRow(160 * time.Second),
	}, Config{})

	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 1, 1}, encounterIDs(records))
	assert.Equal(t, "Bob-EU", records[1].DamageSource)
	assert.Equal(t, "60.000", records[2].RelativeTime())
	assert.Equal(t, 2, summary.Encounters)
	assert.Equal(t, 1, summary.EncountersKept)
	assert.Equal(t, 1, summary.EncountersDropped)
	assert.Equal(t, 7, summary.Records)
	assert.Equal(t, 3, summary.Written)
}

func TestSegmentDurationFloorIsInclusive(t *testing.T) {
	t.Run("exactly 35s is dropped", func(t *testing.T) {
		records, _ := Segment([]model.NormalizedRecord{startRow(0), endRow(35 * time.Second)}, Config{})
		assert.Empty(t, records)
	})

	t.Run("just over 35s is kept", func(t *testing.T) {
		records, _ := Segment([]model.NormalizedRecord{startRow(0), endRow(35*time.Second + time.Millisecond)}, Config{})
		require.Len(t, records, 2)
		assert.Equal(t, "35.001", records[1].RelativeTime())
	})

	t.Run("custom floor", func(t *testing.T) {
		records, _ := Segment([]model.NormalizedRecord{startRow(0), endRow(20 * time.Second)}, Config{MinDuration: 10 * time.Second})
		assert.Len(t, records, 2)
	})
}

func TestSegmentEncounterWithoutEnd(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		spellRow(5*time.Second, "SPELL_DAMAGE", "Alice-US", "Boss", "1.0", "1.0", "0.5"),
		// restart without an ENCOUNTER_END
		startRow(60 * time.Second),
		spellRow(70*time.Second, "SPELL_DAMAGE", "Alice-US", "Boss", "1.0", "1.0", "0.5"),
		endRow(120 * time.Second),
		// trailing encounter that never ends
		startRow(200 * time.Second),
		diedRow(210*time.Second, "Alice-US"),
	}, Config{})

	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 1, 1}, encounterIDs(records))
	assert.Equal(t, "10.000", records[1].RelativeTime())
	assert.Equal(t, "60.000", records[2].RelativeTime())
	assert.Equal(t, 3, summary.Encounters)
	assert.Equal(t, 2, summary.EncountersDropped)
}

func TestSegmentDropsRowsOutsideEncounters(t *testing.T) {
	records, _ := Segment([]model.NormalizedRecord{
		spellRow(0, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "1.0", "2.0", "3.0"),
		diedRow(time.Second, "Alice-US"),
		startRow(10 * time.Second),
		endRow(60 * time.Second),
		spellRow(61*time.Second, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "1.0", "2.0", "3.0"),
		endRow(62 * time.Second),
	}, Config{})

	require.Len(t, records, 2)
	assert.Equal(t, "ENCOUNTER_START", records[0].EventType)
	assert.Equal(t, "ENCOUNTER_END", records[1].EventType)
	assert.Equal(t, "50.000", records[1].RelativeTime())
}

func TestSegmentDeathSequence(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		diedRow(time.Second, "Alice-US"),
		diedRow(2*time.Second, "Imp"), // not a player
		diedRow(3*time.Second, "Bob-EU"),
		spellRow(4*time.Second, "SPELL_HEAL", "Carol-EU", "Dave-EU", "1.0", "2.0", "3.0"),
		endRow(50 * time.Second),
		startRow(100 * time.Second),
		diedRow(101*time.Second, "Bob-EU"),
		endRow(150 * time.Second),
	}, Config{})

	var deaths []int
	var deathEncounters []int
	for _, r := range records {
		if r.EventType == "UNIT_DIED" {
			deaths = append(deaths, r.UnitDiedSequence)
			deathEncounters = append(deathEncounters, r.EncounterID)
		}
	}
	assert.Equal(t, []int{1, 2, 1}, deaths)
	assert.Equal(t, []int{1, 1, 2}, deathEncounters)
	assert.Equal(t, 3, summary.Deaths)

	heal := find(t, records, "SPELL_HEAL")
	assert.Equal(t, 2, heal.UnitDiedSequence)
	assert.Equal(t, 0, records[len(records)-3].UnitDiedSequence, "second ENCOUNTER_START resets the counter")
}

func TestSegmentMalformedDeathStillEmitted(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		row(stamp(time.Second), "UNIT_DIED", "0000000000000000", "nil"),
		endRow(40 * time.Second),
	}, Config{})

	require.Len(t, records, 3)
	died := records[1]
	assert.Equal(t, "UNIT_DIED", died.EventType)
	assert.Equal(t, "", died.SpellDestination)
	assert.Equal(t, model.Position{}, died.Position)
	assert.Equal(t, 0, died.UnitDiedSequence)
	assert.Equal(t, "1.000", died.RelativeTime())
	assert.Equal(t, 0, summary.Deaths)
}

func TestSegmentMalformedShapesDropped(t *testing.T) {
	short := spellRow(time.Second, "SPELL_DAMAGE", "Alice-US", "Boss", "1.0", "2.0", "3.0")
	short.Fields = short.Fields[:20]
	shortSwing := swingRow(time.Second, "SWING_DAMAGE", "Boss", "Alice-US", "1.0", "2.0", "3.0")
	shortSwing.Fields = shortSwing.Fields[:12]

	records, _ := Segment([]model.NormalizedRecord{
		startRow(0),
		short,
		shortSwing,
		row(stamp(2*time.Second), "SPELL_AURA_APPLIED", "Alice-US"),
		row(stamp(3*time.Second), "SPELL_ENERGIZE", "Player-1", "Alice-US", "1.5"),
		row("garbage"),
		endRow(40 * time.Second),
	}, Config{})

	require.Len(t, records, 2)
	assert.Equal(t, "ENCOUNTER_START", records[0].EventType)
	assert.Equal(t, "ENCOUNTER_END", records[1].EventType)
}

func TestSegmentPositionBackfill(t *testing.T) {
	records, _ := Segment([]model.NormalizedRecord{
		startRow(0),
		auraRow(time.Second, "SPELL_AURA_APPLIED", "Alice-US"),
		// destination-role event keys by destination
		spellRow(2*time.Second, "SPELL_DAMAGE", "Boss", "Alice-US", "10.5", "20.5", "0.25"),
		auraRow(3*time.Second, "SPELL_AURA_REFRESH", "Alice-US"),
		// invalid coordinates leave the cache alone
		spellRow(4*time.Second, "SPELL_PERIODIC_HEAL", "Bob-EU", "Alice-US", "nil", "20.5", "0.25"),
		auraRow(5*time.Second, "SPELL_AURA_REMOVED", "Alice-US"),
		// swing source updates the attacker, landed updates the target
		swingRow(6*time.Second, "SWING_DAMAGE", "Bob-EU", "Boss", "-1.0", "-2.0", "3.1"),
		swingRow(7*time.Second, "SWING_DAMAGE_LANDED", "Boss", "Carol-EU", "5.0", "6.0", "0.0"),
		diedRow(8*time.Second, "Bob-EU"),
		diedRow(9*time.Second, "Carol-EU"),
		endRow(40 * time.Second),
		startRow(100 * time.Second),
		diedRow(101*time.Second, "Alice-US"),
		endRow(150 * time.Second),
	}, Config{})

	var auras []model.Position
	var deaths []model.CanonicalRecord
	for _, r := range records {
		if model.IsAura(r.EventType) {
			auras = append(auras, r.Position)
			assert.Equal(t, "BUFF", r.AuraType)
			assert.Equal(t, "17", r.SpellID)
		}
		if r.EventType == "UNIT_DIED" {
			deaths = append(deaths, r)
		}
	}
	want := model.Position{X: "10.5", Y: "20.5", Facing: "0.25"}
	assert.Equal(t, []model.Position{{}, want, want}, auras)

	require.Len(t, deaths, 3)
	assert.Equal(t, model.Position{X: "-1.0", Y: "-2.0", Facing: "3.1"}, deaths[0].Position)
	assert.Equal(t, model.Position{X: "5.0", Y: "6.0", Facing: "0.0"}, deaths[1].Position)
	assert.Equal(t, model.Position{}, deaths[2].Position, "cache is cleared at ENCOUNTER_START")
}

func TestSegmentSpellAndSwingShapes(t *testing.T) {
	records, _ := Segment([]model.NormalizedRecord{
		startRow(0),
		spellRow(time.Second, "RANGE_DAMAGE", "Alice-US", "Boss", "1.0", "2.0", "3.0"),
		swingRow(2*time.Second, "SWING_DAMAGE_LANDED", "Boss", "Alice-US", "4.0", "5.0", "6.0"),
		endRow(40 * time.Second),
	}, Config{})

	require.Len(t, records, 4)
	assert.Equal(t, model.CanonicalRecord{
		Timestamp:        stamp(time.Second),
		EventType:        "RANGE_DAMAGE",
		DamageSource:     "Alice-US",
		SpellDestination: "Boss",
		SpellID:          "1449",
		SpellName:        "Arcane Explosion",
		Position:         model.Position{X: "1.0", Y: "2.0", Facing: "3.0"},
		EncounterID:      1,
		Elapsed:          time.Second,
	}, records[1])
	assert.Equal(t, model.CanonicalRecord{
		Timestamp:        stamp(2 * time.Second),
		EventType:        "SWING_DAMAGE_LANDED",
		DamageSource:     "Boss",
		SpellDestination: "Alice-US",
		SpellID:          "1",
		Position:         model.Position{X: "4.0", Y: "5.0", Facing: "6.0"},
		EncounterID:      1,
		Elapsed:          2 * time.Second,
	}, records[2])
}

func TestSegmentUnparseableTimestamps(t *testing.T) {
	bad := spellRow(0, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "1.0", "2.0", "3.0")
	bad.Fields[0] = "not a time"

	records, _ := Segment([]model.NormalizedRecord{
		startRow(0),
		bad,
		endRow(40 * time.Second),
	}, Config{})
	require.Len(t, records, 3)
	assert.Equal(t, "0.000", records[1].RelativeTime())
	assert.Equal(t, "not a time", records[1].Timestamp)

	t.Run("unparseable start yields zero duration", func(t *testing.T) {
		start := startRow(0)
		start.Fields[0] = "??"
		records, summary := Segment([]model.NormalizedRecord{start, endRow(400 * time.Second)}, Config{})
		assert.Empty(t, records)
		assert.Equal(t, 1, summary.EncountersDropped)
	})
}

func TestSegmentNormalizesUnitKeys(t *testing.T) {
	decomposed := "Zoe\u0308-EU"
	composed := "Zo\u00eb-EU"
	records, _ := Segment([]model.NormalizedRecord{
		startRow(0),
		spellRow(time.Second, "SPELL_CAST_SUCCESS", decomposed, "nil", "7.0", "8.0", "9.0"),
		diedRow(2*time.Second, composed),
		endRow(40 * time.Second),
	}, Config{})

	death := find(t, records, "UNIT_DIED")
	assert.Equal(t, composed, death.SpellDestination)
	assert.Equal(t, model.Position{X: "7.0", Y: "8.0", Facing: "9.0"}, death.Position)
}

func TestSegmentIDsAreDense(t *testing.T) {
	var rows []model.NormalizedRecord
	// Encounters alternate long/short; only the long ones survive.
	for i := 0; i < 6; i++ {
		base := time.Duration(i) * 10 * time.Minute
		length := 20 * time.Second
		if i%2 == 0 {
			length = 90 * time.Second
		}
		rows = append(rows, startRow(base), diedRow(base+time.Second, "Alice-US"), endRow(base+length))
	}

	records, summary := Segment(rows, Config{})
	assert.Equal(t, 3, summary.EncountersKept)
	seen := map[int]bool{}
	for _, r := range records {
		seen[r.EncounterID] = true
		assert.GreaterOrEqual(t, r.EncounterID, 1)
		assert.LessOrEqual(t, r.EncounterID, 3)
	}
	assert.Len(t, seen, 3)
}

func TestSegmentFiltersOnWrittenDuration(t *testing.T) {
	// 35.0004s is written as 35.000, which is not over the floor.
	records, _ := Segment([]model.NormalizedRecord{startRow(0), endRow(35*time.Second + 400*time.Microsecond)}, Config{})
	assert.Empty(t, records)

	records, _ = Segment([]model.NormalizedRecord{startRow(0), endRow(35*time.Second + 600*time.Microsecond)}, Config{})
	require.Len(t, records, 2)
	assert.Equal(t, "35.001", records[1].RelativeTime())
	assert.Equal(t, 35*time.Second+time.Millisecond, records[1].Elapsed)
}

func TestSegmentDeathsOutsideEncountersNotCounted(t *testing.T) {
	records, summary := Segment([]model.NormalizedRecord{
		diedRow(0, "Alice-US"),
		startRow(10 * time.Second),
		diedRow(11*time.Second, "Bob-EU"),
		endRow(60 * time.Second),
		diedRow(61*time.Second, "Carol-US"),
	}, Config{})

	assert.Equal(t, 1, summary.Deaths)
	died := find(t, records, "UNIT_DIED")
	assert.Equal(t, "Bob-EU", died.SpellDestination)
	assert.Equal(t, 1, died.UnitDiedSequence)
}

func TestResegmentIsIdempotent(t *testing.T) {
	first, summary := Segment([]model.NormalizedRecord{
		startRow(0),
		endRow(10 * time.Second),
		startRow(time.Minute),
		spellRow(time.Minute+10*time.Second, "SPELL_CAST_SUCCESS", "Alice-US", "nil", "100.0", "200.0", "1.5"),
		diedRow(time.Minute+12*time.Second, "Alice-US"),
		auraRow(time.Minute+15*time.Second, "SPELL_AURA_APPLIED", "Alice-US"),
		swingRow(time.Minute+16*time.Second, "SWING_DAMAGE", "Boss", "Alice-US", "5.0", "6.0", "0.5"),
		endRow(time.Minute + 40*time.Second + 250*time.Microsecond),
		startRow(3 * time.Minute),
		diedRow(3*time.Minute+time.Second, "Bob-EU"),
		endRow(4 * time.Minute),
	}, Config{})
	require.Equal(t, 1, summary.EncountersDropped)
	require.Len(t, first, 9)

	second, resummary := Resegment(first, Config{})
	assert.Equal(t, first, second)
	assert.Equal(t, 2, resummary.Encounters)
	assert.Equal(t, 2, resummary.EncountersKept)
	assert.Equal(t, 0, resummary.EncountersDropped)
	assert.Equal(t, 2, resummary.Deaths)
	assert.Equal(t, len(first), resummary.Written)
}

func TestResegmentFiltersAndRenumbers(t *testing.T) {
	records := []model.CanonicalRecord{
		{EventType: "ENCOUNTER_START", EncounterID: 1},
		{EventType: "ENCOUNTER_END", EncounterID: 1, Elapsed: 40 * time.Second},
		{EventType: "ENCOUNTER_START", EncounterID: 2},
		{EventType: "UNIT_DIED", EncounterID: 2, SpellDestination: "Alice-US", UnitDiedSequence: 1},
		{EventType: "ENCOUNTER_END", EncounterID: 2, Elapsed: 90 * time.Second},
		{EventType: "ENCOUNTER_START", EncounterID: 3},
	}

	out, summary := Resegment(records, Config{MinDuration: time.Minute})
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 1, 1}, encounterIDs(out))
	assert.Equal(t, "Alice-US", out[1].SpellDestination)
	assert.Equal(t, 3, summary.Encounters)
	assert.Equal(t, 1, summary.EncountersKept)
	assert.Equal(t, 2, summary.EncountersDropped)
}
