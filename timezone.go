package firebird

import (
	"fmt"
	"sync"
)

// Time zone ids delivered in TIME/TIMESTAMP WITH TIME ZONE values are
// either a displacement or a reference into the server's zone table.
// Displacements occupy [offsetZoneBase-offsetZoneMaxMinutes,
// offsetZoneBase+offsetZoneMaxMinutes] with the base meaning +00:00;
// named zones are allocated downwards from 65535.
const (
	offsetZoneBase       = 1439
	offsetZoneMaxMinutes = 1439
)

var (
	timeZoneMu sync.RWMutex

	// timeZoneNames maps server zone ids to their names. The built-in
	// set covers the head of the server's table; ids for the remaining
	// region-based names depend on the server build and can be added
	// with RegisterTimeZone.
	timeZoneNames = map[int]string{
		65535: "GMT",
		65534: "ACT",
		65533: "AET",
		65532: "AGT",
		65531: "ART",
		65530: "AST",
	}
)

// RegisterTimeZone adds or replaces a zone id to name mapping used when
// rendering WITH TIME ZONE values in zone-name mode.
func RegisterTimeZone(id int, name string) {
	timeZoneMu.Lock()
	timeZoneNames[id] = name
	timeZoneMu.Unlock()
}

// renderOffset formats a displacement in minutes as "+HH:MM"/"-HH:MM".
func renderOffset(minutes int) string {
	sign := byte('+')
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	hours := minutes / 60
	minutes -= hours * 60
	return fmt.Sprintf("%c%02d:%02d", sign, hours, minutes)
}

// lookupTimeZone resolves a zone id to its display form: an offset
// string for displacement ids, the zone name for known named ids, and
// an "unexpected time_zone value" marker otherwise.
func lookupTimeZone(id int) string {
	if id >= offsetZoneBase-offsetZoneMaxMinutes && id <= offsetZoneBase+offsetZoneMaxMinutes {
		return renderOffset(id - offsetZoneBase)
	}

	timeZoneMu.RLock()
	name, ok := timeZoneNames[id]
	timeZoneMu.RUnlock()
	if ok {
		return name
	}

	return fmt.Sprintf("unexpected time_zone value %d", id)
}

// formatTimeZone renders the zone part of an extended WITH TIME ZONE
// value. In zone-name mode the id is resolved as the server would show
// it; otherwise the server-computed displacement is shown numerically.
// Engine displacements never exceed 14 hours.
func formatTimeZone(id int, extOffset int, zoneNames bool) string {
	if zoneNames {
		return lookupTimeZone(id)
	}
	if extOffset > 14*60 || extOffset < -14*60 {
		extOffset = 0
	}
	return renderOffset(extOffset)
}
