package vehicle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nshafer/rvlink"
)

// ErrUnknownEvent is returned by Apply for an event type the Store does not understand.
var ErrUnknownEvent = errors.New("unknown event type")

// Store applies events from a Channel to the latest Snapshot of the vehicle. It is safe for concurrent use.
type Store struct {
	// AddUnknownLights makes light events for an id that is not in the list yet append the light instead of
	// being ignored. Set it before the first Apply when the list is not seeded with SetLights.
	AddUnknownLights bool

	mu        sync.Mutex
	state     Snapshot
	observers []func(Snapshot)
}

func NewStore() *Store {
	return &Store{}
}

// OnChange registers fn to be called with a fresh Snapshot after every change. fn runs on the goroutine that
// made the change, after the Store's lock was released.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

// Apply decodes ev and updates the matching part of the state. A payload that cannot be decoded leaves the
// state untouched.
func (s *Store) Apply(ev rvlink.Event) error {
	eventType, ok := rvlink.ParseEventType(string(ev.Type))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	var apply func(*Snapshot)
	var err error
	switch eventType {
	case rvlink.EventThermostat:
		apply, err = set(ev.Data, func(st *Snapshot, v *Thermostat) { st.Thermostat = v })
	case rvlink.EventLight:
		apply, err = set(ev.Data, func(st *Snapshot, v *Light) { updateLight(st, v, s.AddUnknownLights) })
	case rvlink.EventEnergy:
		apply, err = set(ev.Data, func(st *Snapshot, v *Energy) { st.Energy = v })
	case rvlink.EventWater:
		apply, err = set(ev.Data, func(st *Snapshot, v *Water) { st.Water = v })
	case rvlink.EventAirQuality:
		apply, err = set(ev.Data, func(st *Snapshot, v *AirQuality) { st.AirQuality = v })
	case rvlink.EventTempHumid:
		apply, err = set(ev.Data, func(st *Snapshot, v *TempHumid) {
			st.TempHumid = v
			temp := v.TempInF
			st.CurrentTemp = &temp
		})
	case rvlink.EventGPSPosition:
		apply, err = set(ev.Data, func(st *Snapshot, v *GPSPosition) { st.GPSPosition = v })
	case rvlink.EventGPSAltitude:
		apply, err = set(ev.Data, func(st *Snapshot, v *GPSAltitude) { st.GPSAltitude = v })
	case rvlink.EventGNSSDetails:
		apply, err = set(ev.Data, func(st *Snapshot, v *GNSSDetails) { st.GNSSDetails = v })
	case rvlink.EventLevel:
		apply, err = set(ev.Data, func(st *Snapshot, v *TrailerLevel) { st.TrailerLevel = v })
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	s.update(apply)
	return nil
}

// SetLights replaces the list of lights, usually with what the REST API returned.
func (s *Store) SetLights(lights []Light) {
	lights = append([]Light(nil), lights...)
	s.update(func(st *Snapshot) { st.Lights = lights })
}

func (s *Store) SetConnected(connected bool) {
	s.update(func(st *Snapshot) { st.Connected = connected })
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

func (s *Store) update(apply func(*Snapshot)) {
	s.mu.Lock()
	apply(&s.state)
	snapshot := s.state.clone()
	observers := append([]func(Snapshot){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// set decodes data into a new T and returns a func that stores it with assign.
func set[T any](data json.RawMessage, assign func(*Snapshot, *T)) (func(*Snapshot), error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return func(st *Snapshot) { assign(st, v) }, nil
}

// updateLight changes state and brightness of the light with the same id. Lights that are not known yet are
// appended if add is set, ignored otherwise.
func updateLight(st *Snapshot, update *Light, add bool) {
	found := false
	for i := range st.Lights {
		if st.Lights[i].ID == update.ID {
			st.Lights[i].State = update.State
			st.Lights[i].Brightness = update.Brightness
			found = true
		}
	}
	if !found && add {
		st.Lights = append(st.Lights, *update)
	}
}

func (st Snapshot) clone() Snapshot {
	c := st
	c.Thermostat = clonePtr(st.Thermostat)
	c.CurrentTemp = clonePtr(st.CurrentTemp)
	c.TrailerLevel = clonePtr(st.TrailerLevel)
	c.Water = clonePtr(st.Water)
	c.AirQuality = clonePtr(st.AirQuality)
	c.TempHumid = clonePtr(st.TempHumid)
	c.GPSPosition = clonePtr(st.GPSPosition)
	c.GPSAltitude = clonePtr(st.GPSAltitude)
	if st.Energy != nil {
		c.Energy = clonePtr(st.Energy)
		c.Energy.TimeRemainingMinutes = clonePtr(st.Energy.TimeRemainingMinutes)
	}
	if st.GNSSDetails != nil {
		c.GNSSDetails = clonePtr(st.GNSSDetails)
		c.GNSSDetails.GNSSMode = clonePtr(st.GNSSDetails.GNSSMode)
	}
	if st.Lights != nil {
		c.Lights = append([]Light(nil), st.Lights...)
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
