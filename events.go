package rvlink

// EventType is the "type" field of an envelope.
type EventType string

// Event types sent by the vehicle server.
const (
	EventThermostat  EventType = "thermostat"
	EventLight       EventType = "light"
	EventEnergy      EventType = "energy"
	EventWater       EventType = "water"
	EventAirQuality  EventType = "airquality"
	EventTempHumid   EventType = "temphumid"
	EventGPSPosition EventType = "latlon"
	EventGPSAltitude EventType = "alt"
	EventGNSSDetails EventType = "gnss_details"
	EventLevel       EventType = "level"
)

var eventAliases = map[string]EventType{
	"thermostat-state":           EventThermostat,
	"light-state":                EventLight,
	"energy-state":               EventEnergy,
	"water-state":                EventWater,
	"air-quality-state":          EventAirQuality,
	"temperature-humidity-state": EventTempHumid,
	"gps-position":               EventGPSPosition,
	"gps-altitude":               EventGPSAltitude,
	"gnss-details":               EventGNSSDetails,
	"trailer-level":              EventLevel,
}

// EventTypes lists every known event type.
func EventTypes() []EventType {
	return []EventType{
		EventThermostat,
		EventLight,
		EventEnergy,
		EventWater,
		EventAirQuality,
		EventTempHumid,
		EventGPSPosition,
		EventGPSAltitude,
		EventGNSSDetails,
		EventLevel,
	}
}

// ParseEventType resolves a wire name or one of its descriptive aliases (such as "water-state") to a known
// EventType.
func ParseEventType(s string) (EventType, bool) {
	for _, t := range EventTypes() {
		if string(t) == s {
			return t, true
		}
	}
	t, ok := eventAliases[s]
	return t, ok
}
