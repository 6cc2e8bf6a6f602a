package emotion

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/reel/internal/errors"
)

// RequestContext is the optional situational input of a request. Empty
// fields are left at their clock-derived defaults and trigger no adjustment.
type RequestContext struct {
	TimeOfDay TimeOfDay `json:"time_of_day,omitempty" validate:"omitempty,oneof=morning afternoon evening night"`
	Device    Device    `json:"device,omitempty" validate:"omitempty,oneof=mobile tablet desktop tv"`
	Social    Social    `json:"social,omitempty" validate:"omitempty,oneof=alone partner family friends"`
}

type base struct {
	energy, valence, arousal, cc float64
	needs                        map[Need]float64
}

// bases holds the quiz lookup. Needs not listed default to 0.5.
var bases = map[Mood]map[Goal]base{
	MoodUnwind: {
		GoalLaugh: {0.3, 0.7, 0.4, 0.4, map[Need]float64{
			Comfort: 0.7, Joy: 0.9, Relaxation: 0.8, Escape: 0.6}},
		GoalFeel: {0.2, 0.5, 0.3, 0.6, map[Need]float64{
			Comfort: 0.8, Catharsis: 0.8, Meaning: 0.7, Relaxation: 0.9}},
		GoalThrill: {0.4, 0.3, 0.6, 0.5, map[Need]float64{
			Escape: 0.8, Stimulation: 0.7, Relaxation: 0.6}},
		GoalThink: {0.3, 0.4, 0.3, 0.7, map[Need]float64{
			Growth: 0.7, Meaning: 0.7, Relaxation: 0.7, Beauty: 0.6}},
	},
	MoodEngage: {
		GoalLaugh: {0.7, 0.8, 0.6, 0.6, map[Need]float64{
			Joy: 0.9, Connection: 0.7, Stimulation: 0.6}},
		GoalFeel: {0.6, 0.3, 0.6, 0.8, map[Need]float64{
			Catharsis: 0.9, Meaning: 0.8, Connection: 0.7}},
		GoalThrill: {0.8, 0.6, 0.9, 0.7, map[Need]float64{
			Stimulation: 0.9, Escape: 0.7, Joy: 0.7, Catharsis: 0.5}},
		GoalThink: {0.6, 0.4, 0.5, 0.9, map[Need]float64{
			Growth: 0.9, Stimulation: 0.7, Meaning: 0.8, Beauty: 0.6}},
	},
}

// Mapper converts quiz answers into a State.
type Mapper struct {
	now func() time.Time
}

// NewMapper returns a Mapper reading the wall clock for context defaults.
func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// WithClock returns a copy of m that reads time from now.
func (m *Mapper) WithClock(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// Map returns the base state for (mood, goal) with time, device and social
// adjustments applied in that order. It fails only on values outside the
// quiz vocabulary.
func (m *Mapper) Map(_ context.Context, mood Mood, goal Goal, rc *RequestContext) (State, error) {
	b, ok := bases[mood][goal]
	if !ok {
		return State{}, errors.NewInvalidRequest(fmt.Sprintf("unknown mood/goal combination: %s/%s", mood, goal))
	}

	s := State{
		Energy:            b.energy,
		Valence:           b.valence,
		Arousal:           b.arousal,
		CognitiveCapacity: b.cc,
		Context:           m.defaultContext(),
	}
	for i := range s.Needs {
		s.Needs[i] = 0.5
	}
	for need, v := range b.needs {
		s.Needs[need] = v
	}

	if rc == nil {
		return s.Clamped(), nil
	}
	if rc.TimeOfDay != "" {
		s = AdjustForTime(s, rc.TimeOfDay)
		if s.Context.TimeOfDay != rc.TimeOfDay {
			s.Context.Hour = representativeHour[rc.TimeOfDay]
		}
		s.Context.TimeOfDay = rc.TimeOfDay
	}
	if rc.Device != "" {
		s = AdjustForDevice(s, rc.Device)
		s.Context.Device = rc.Device
	}
	if rc.Social != "" {
		s = AdjustForSocial(s, rc.Social)
		s.Context.Social = rc.Social
	}
	return s, nil
}

func (m *Mapper) defaultContext() Context {
	now := m.now()
	day := now.Weekday()
	return Context{
		TimeOfDay: TimeOfDayForHour(now.Hour()),
		Hour:      now.Hour(),
		DayOfWeek: day,
		IsWeekend: day == time.Saturday || day == time.Sunday,
		Device:    Desktop,
		Social:    Alone,
	}
}

// AdjustForTime applies the time-of-day multipliers and clamps.
func AdjustForTime(s State, t TimeOfDay) State {
	switch t {
	case Morning:
		s.Energy *= 1.1
		s.CognitiveCapacity *= 1.1
	case Afternoon:
		s.CognitiveCapacity *= 0.9
	case Evening:
		s.Energy *= 0.8
		s.Needs[Relaxation] *= 1.2
	case Night:
		s.Energy *= 0.6
		s.CognitiveCapacity *= 0.7
		s.Needs[Relaxation] *= 1.3
		s.Needs[Escape] *= 1.1
	}
	return s.Clamped()
}

// AdjustForDevice applies the device multipliers and clamps.
func AdjustForDevice(s State, d Device) State {
	switch d {
	case Mobile:
		s.CognitiveCapacity *= 0.85
	case Tablet:
		s.CognitiveCapacity *= 0.95
	case TV:
		s.Needs[Relaxation] *= 1.1
		s.Needs[Comfort] *= 1.1
	}
	return s.Clamped()
}

// AdjustForSocial applies the social-context multipliers and clamps.
func AdjustForSocial(s State, so Social) State {
	switch so {
	case Alone:
		s.Needs[Escape] *= 1.1
	case Partner:
		s.Needs[Connection] *= 1.2
	case Family:
		s.CognitiveCapacity *= 0.9
		s.Needs[Connection] *= 1.3
		s.Needs[Comfort] *= 1.2
	case Friends:
		s.Needs[Connection] *= 1.2
		s.Needs[Joy] *= 1.2
	}
	return s.Clamped()
}
