package segmenter

import (
	"strconv"
	"strings"

	"github.com/crimson-sun/combatlog/internal/model"
	"golang.org/x/text/unicode/norm"
)

// Columns of a passthrough row; column 0 is the timestamp.
const (
	sourceCol    = 3
	destCol      = 7
	spellIDCol   = 10
	spellNameCol = 11

	encounterNameCol     = 3
	encounterStartMapCol = 6 // instance id; ENCOUNTER_END does not carry it

	auraDestCol      = 2
	auraSpellIDCol   = 3
	auraSpellNameCol = 4
	auraTypeCol      = 5
)

// family groups event types that share an output shape and coordinate layout.
type family int

const (
	spellFamily family = iota + 1 // casts, heals, spell and ranged damage
	swingFamily                   // melee swings, no spell name
)

// role says which unit of the event the coordinates belong to.
type role int

const (
	sourceRole role = iota + 1
	destinationRole
)

// movement describes where a movement-bearing event carries its unit's
// position.
type movement struct {
	family    family
	role      role
	x, y      int
	facingCol int
}

var (
	spellCoords = movement{family: spellFamily, x: 27, y: 28, facingCol: 30}
	swingCoords = movement{family: swingFamily, x: 24, y: 25, facingCol: 27}
)

func (m movement) as(r role) movement {
	m.role = r
	return m
}

// movements maps every movement-bearing event type to its layout. New event
// types that carry coordinates are added here and nowhere else.
var movements = map[string]movement{
	model.SpellCastSuccess:    spellCoords.as(sourceRole),
	model.RangeDamage:         spellCoords.as(destinationRole),
	model.SpellDamage:         spellCoords.as(destinationRole),
	model.SpellPeriodicDamage: spellCoords.as(destinationRole),
	model.SpellHeal:           spellCoords.as(destinationRole),
	model.SpellPeriodicHeal:   spellCoords.as(destinationRole),
	model.SwingDamage:         swingCoords.as(sourceRole),
	model.SwingDamageLanded:   swingCoords.as(destinationRole),
}

// unitCol returns the column naming the unit the coordinates belong to.
func (m movement) unitCol() int {
	if m.role == sourceRole {
		return sourceCol
	}
	return destCol
}

// position extracts the row's coordinates. ok is false when the row is too
// short or x/y are not numeric.
func (m movement) position(row model.NormalizedRecord) (model.Position, bool) {
	if len(row.Fields) <= m.facingCol || len(row.Fields) <= m.unitCol() {
		return model.Position{}, false
	}
	p := model.Position{X: row.Fields[m.x], Y: row.Fields[m.y], Facing: row.Fields[m.facingCol]}
	if !numeric(p.X) || !numeric(p.Y) {
		return model.Position{}, false
	}
	return p, true
}

func numeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// positionCache holds the last known position of each unit within the
// current encounter. Keys are NFC-normalized unit names.
type positionCache map[string]model.Position

func (c positionCache) set(unit string, p model.Position) {
	c[norm.NFC.String(unit)] = p
}

// get returns the unit's last position, or an empty triple.
func (c positionCache) get(unit string) model.Position {
	return c[norm.NFC.String(unit)]
}
