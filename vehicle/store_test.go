package vehicle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshafer/rvlink"
)

func event(t *testing.T, eventType rvlink.EventType, data string) rvlink.Event {
	t.Helper()
	ev, ok := rvlink.DecodeEnvelope([]byte(`{"type":"` + string(eventType) + `","data":` + data + `}`))
	require.True(t, ok)
	return ev
}

func TestStore_Apply(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Apply(event(t, rvlink.EventThermostat, `{"targetTemp":72,"mode":"heat"}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventEnergy,
		`{"solarWatts":310.5,"batteryPercent":87,"batteryVoltage":13.2,"chargeType":"bulk","timeRemainingMinutes":null}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventWater, `{"fresh":80,"grey":40,"black":10}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventAirQuality, `{"iaqIndex":42,"co2Ppm":610}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventGPSPosition, `{"latitude":44.05,"longitude":-121.31}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventGPSAltitude, `{"altitudeInMeters":1100,"altitudeFeet":3609}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventGNSSDetails,
		`{"numberOfSatellites":9,"speedOverGround":0.2,"courseOverGround":181,"gnssMode":3}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventLevel, `{"frontBack":0.5,"sideToSide":-1.25}`)))

	snap := store.Snapshot()
	assert.Equal(t, &Thermostat{TargetTemp: 72, Mode: ModeHeat}, snap.Thermostat)
	require.NotNil(t, snap.Energy)
	assert.Equal(t, ChargeBulk, snap.Energy.ChargeType)
	assert.Nil(t, snap.Energy.TimeRemainingMinutes)
	assert.Equal(t, &Water{Fresh: 80, Grey: 40, Black: 10}, snap.Water)
	assert.Equal(t, &AirQuality{IAQIndex: 42, CO2PPM: 610}, snap.AirQuality)
	assert.Equal(t, &GPSPosition{Latitude: 44.05, Longitude: -121.31}, snap.GPSPosition)
	assert.Equal(t, &GPSAltitude{AltitudeInMeters: 1100, AltitudeFeet: 3609}, snap.GPSAltitude)
	require.NotNil(t, snap.GNSSDetails)
	require.NotNil(t, snap.GNSSDetails.GNSSMode)
	assert.Equal(t, 3, *snap.GNSSDetails.GNSSMode)
	assert.Equal(t, &TrailerLevel{FrontBack: 0.5, SideToSide: -1.25}, snap.TrailerLevel)
	assert.Nil(t, snap.TempHumid)
	assert.Nil(t, snap.CurrentTemp)
}

func TestStore_TempHumidSetsCurrentTemp(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Apply(event(t, rvlink.EventTempHumid, `{"tempInC":21.5,"tempInF":70.7,"humidity":45}`)))

	snap := store.Snapshot()
	assert.Equal(t, &TempHumid{TempInC: 21.5, TempInF: 70.7, Humidity: 45}, snap.TempHumid)
	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 70.7, *snap.CurrentTemp)
}

func TestStore_AcceptsAliases(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Apply(event(t, "water-state", `{"fresh":80,"grey":40,"black":10}`)))
	assert.Equal(t, &Water{Fresh: 80, Grey: 40, Black: 10}, store.Snapshot().Water)
}

func TestStore_LightUpdate(t *testing.T) {
	store := NewStore()
	store.SetLights([]Light{
		{ID: 1, Name: "Porch", State: 0, Brightness: 0},
		{ID: 2, Name: "Kitchen", State: 1, Brightness: 100},
	})

	require.NoError(t, store.Apply(event(t, rvlink.EventLight, `{"id":1,"state":1,"brightness":60,"name":"ignored"}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventLight, `{"id":9,"state":1,"brightness":10}`)))

	lights := store.Snapshot().Lights
	require.Len(t, lights, 2)
	assert.Equal(t, Light{ID: 1, Name: "Porch", State: 1, Brightness: 60}, lights[0])
	assert.True(t, lights[0].On())
	assert.Equal(t, Light{ID: 2, Name: "Kitchen", State: 1, Brightness: 100}, lights[1])
}

func TestStore_AddUnknownLights(t *testing.T) {
	store := NewStore()
	store.AddUnknownLights = true

	require.NoError(t, store.Apply(event(t, rvlink.EventLight, `{"id":9,"state":1,"brightness":10}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventLight, `{"id":4,"state":0,"brightness":0}`)))
	require.NoError(t, store.Apply(event(t, rvlink.EventLight, `{"id":9,"state":0,"brightness":0}`)))

	assert.Equal(t, []Light{
		{ID: 9, State: 0, Brightness: 0},
		{ID: 4, State: 0, Brightness: 0},
	}, store.Snapshot().Lights)
}

func TestStore_UnknownEvent(t *testing.T) {
	store := NewStore()

	err := store.Apply(event(t, "tire-pressure", `{"psi":65}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "tire-pressure")
}

func TestStore_BadPayloadLeavesStateUntouched(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Apply(event(t, rvlink.EventWater, `{"fresh":80,"grey":40,"black":10}`)))

	err := store.Apply(event(t, rvlink.EventWater, `{"fresh":"full"}`))
	require.Error(t, err)
	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr)
	assert.Contains(t, err.Error(), "water")

	assert.Equal(t, &Water{Fresh: 80, Grey: 40, Black: 10}, store.Snapshot().Water)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.SetLights([]Light{{ID: 1, State: 1}})
	require.NoError(t, store.Apply(event(t, rvlink.EventEnergy, `{"chargeType":"float","timeRemainingMinutes":90}`)))

	snap := store.Snapshot()
	snap.Lights[0].State = 0
	*snap.Energy.TimeRemainingMinutes = 1
	snap.Energy.ChargeType = ChargeEqualize

	again := store.Snapshot()
	assert.Equal(t, 1, again.Lights[0].State)
	assert.Equal(t, 90, *again.Energy.TimeRemainingMinutes)
	assert.Equal(t, ChargeFloat, again.Energy.ChargeType)
}

func TestStore_OnChange(t *testing.T) {
	store := NewStore()

	var seen []Snapshot
	store.OnChange(func(s Snapshot) {
		// the lock is released, reading back must not deadlock
		_ = store.Snapshot()
		seen = append(seen, s)
	})

	store.SetConnected(true)
	require.NoError(t, store.Apply(event(t, rvlink.EventThermostat, `{"targetTemp":68,"mode":"off"}`)))
	assert.Error(t, store.Apply(event(t, "bogus", `{}`)))
	store.SetConnected(false)

	require.Len(t, seen, 3)
	assert.True(t, seen[0].Connected)
	assert.Nil(t, seen[0].Thermostat)
	assert.True(t, seen[1].Connected)
	assert.Equal(t, ModeOff, seen[1].Thermostat.Mode)
	assert.False(t, seen[2].Connected)
}

func TestStore_OnChangeCallsEveryObserver(t *testing.T) {
	store := NewStore()

	var calls []string
	store.OnChange(func(Snapshot) { calls = append(calls, "first") })
	store.OnChange(func(s Snapshot) {
		calls = append(calls, "second")
		assert.True(t, s.Connected)
	})

	store.SetConnected(true)
	assert.Equal(t, []string{"first", "second"}, calls)
}
