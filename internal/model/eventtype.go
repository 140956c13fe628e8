package model

// Event types named by the pipeline. Any other event type is carried
// opaquely and only survives stage 1 if its payload contains a decimal.
const (
	CombatLogVersion = "COMBAT_LOG_VERSION"
	MapChange        = "MAP_CHANGE"
	CombatantInfo    = "COMBATANT_INFO"

	EncounterStart = "ENCOUNTER_START"
	EncounterEnd   = "ENCOUNTER_END"
	UnitDied       = "UNIT_DIED"

	SpellAuraApplied = "SPELL_AURA_APPLIED"
	SpellAuraRemoved = "SPELL_AURA_REMOVED"
	SpellAuraRefresh = "SPELL_AURA_REFRESH"

	SpellCastSuccess    = "SPELL_CAST_SUCCESS"
	SpellDamage         = "SPELL_DAMAGE"
	SpellPeriodicDamage = "SPELL_PERIODIC_DAMAGE"
	SpellHeal           = "SPELL_HEAL"
	SpellPeriodicHeal   = "SPELL_PERIODIC_HEAL"
	RangeDamage         = "RANGE_DAMAGE"
	SwingDamage         = "SWING_DAMAGE"
	SwingDamageLanded   = "SWING_DAMAGE_LANDED"
)

// IsExcluded reports whether the event type is log metadata that never
// leaves stage 1.
func IsExcluded(eventType string) bool {
	switch eventType {
	case CombatLogVersion, MapChange, CombatantInfo:
		return true
	}
	return false
}

// IsAura reports whether the event type is an aura lifecycle event.
func IsAura(eventType string) bool {
	switch eventType {
	case SpellAuraApplied, SpellAuraRemoved, SpellAuraRefresh:
		return true
	}
	return false
}

// IsIncluded reports whether stage 1 keeps the event type regardless of
// payload content.
func IsIncluded(eventType string) bool {
	switch eventType {
	case EncounterStart, EncounterEnd, UnitDied:
		return true
	}
	return IsAura(eventType)
}
