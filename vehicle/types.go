// Package vehicle holds the latest known state of an RV as reported by its telemetry server.
package vehicle

type ThermostatMode string

const (
	ModeHeat ThermostatMode = "heat"
	ModeCool ThermostatMode = "cool"
	ModeAuto ThermostatMode = "auto"
	ModeOff  ThermostatMode = "off"
)

type Thermostat struct {
	TargetTemp float64        `json:"targetTemp"`
	Mode       ThermostatMode `json:"mode"`
}

type Light struct {
	ID         int    `json:"id"`
	DocID      string `json:"_id,omitempty"`
	Name       string `json:"name,omitempty"`
	State      int    `json:"state"`      // 0 or 1
	Brightness int    `json:"brightness"` // 0-100
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func (l Light) On() bool {
	return l.State != 0
}

// TrailerLevel is the tilt of the trailer in degrees.
type TrailerLevel struct {
	DocID      string  `json:"_id,omitempty"`
	FrontBack  float64 `json:"frontBack"`
	SideToSide float64 `json:"sideToSide"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

type ChargeType string

const (
	ChargeFloat      ChargeType = "float"
	ChargeBulk       ChargeType = "bulk"
	ChargeAbsorption ChargeType = "absorption"
	ChargeEqualize   ChargeType = "equalize"
)

type Energy struct {
	SolarWatts     float64    `json:"solarWatts"`
	BatteryPercent float64    `json:"batteryPercent"`
	BatteryVoltage float64    `json:"batteryVoltage"`
	ChargeType     ChargeType `json:"chargeType"`
	// TimeRemainingMinutes is nil when the battery is not discharging
	TimeRemainingMinutes *int `json:"timeRemainingMinutes"`
}

// Water holds tank levels in percent.
type Water struct {
	Fresh     float64 `json:"fresh"`
	Grey      float64 `json:"grey"`
	Black     float64 `json:"black"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

type AirQuality struct {
	IAQIndex float64 `json:"iaqIndex"`
	CO2PPM   float64 `json:"co2Ppm"`
}

type TempHumid struct {
	TempInC  float64 `json:"tempInC"`
	TempInF  float64 `json:"tempInF"`
	Humidity float64 `json:"humidity"`
}

type GPSPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GPSAltitude struct {
	AltitudeInMeters float64 `json:"altitudeInMeters"`
	AltitudeFeet     float64 `json:"altitudeFeet"`
}

type GNSSDetails struct {
	NumberOfSatellites int     `json:"numberOfSatellites"`
	SpeedOverGround    float64 `json:"speedOverGround"`
	CourseOverGround   float64 `json:"courseOverGround"`
	GNSSMode           *int    `json:"gnssMode,omitempty"`
}

// Snapshot is a copy of everything the Store knows. Pointer fields are nil until the first event of that kind.
type Snapshot struct {
	Connected    bool
	Thermostat   *Thermostat
	CurrentTemp  *float64
	Lights       []Light
	TrailerLevel *TrailerLevel
	Energy       *Energy
	Water        *Water
	AirQuality   *AirQuality
	TempHumid    *TempHumid
	GPSPosition  *GPSPosition
	GPSAltitude  *GPSAltitude
	GNSSDetails  *GNSSDetails
}
