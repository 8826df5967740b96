package audit

import (
	"strconv"
	"strings"
)

// Action identifies a governed mutation. The set is closed.
type Action string

const (
	ActionSector0     Action = "SECTOR_0"
	ActionSector1     Action = "SECTOR_1"
	ActionSector2     Action = "SECTOR_2"
	ActionSector3     Action = "SECTOR_3"
	ActionSector4     Action = "SECTOR_4"
	ActionSector5     Action = "SECTOR_5"
	ActionReadState   Action = "READ_STATE"
	ActionResetEngine Action = "RESET_ENGINE"
)

// NoPreset is recorded for actions that do not select a sector.
const NoPreset = -1

const sectorPrefix = "SECTOR_"

var permitted = []Action{
	ActionSector0, ActionSector1, ActionSector2,
	ActionSector3, ActionSector4, ActionSector5,
	ActionReadState, ActionResetEngine,
}

// Permitted lists every action a controller accepts, in display order.
func Permitted() []Action {
	out := make([]Action, len(permitted))
	copy(out, permitted)
	return out
}

func (a Action) Valid() bool {
	for _, p := range permitted {
		if a == p {
			return true
		}
	}
	return false
}

// Sector returns the sector index a SECTOR_n action selects.
func (a Action) Sector() (int, bool) {
	s, ok := strings.CutPrefix(string(a), sectorPrefix)
	if !ok || !a.Valid() {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SectorAction returns SECTOR_i. It does not check the range.
func SectorAction(i int) Action {
	return Action(sectorPrefix + strconv.Itoa(i))
}
