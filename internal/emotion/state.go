// Package emotion maps a discrete mood/goal selection and optional viewing
// context onto a continuous emotional state.
package emotion

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Mood is the first quiz answer.
type Mood string

const (
	MoodUnwind Mood = "unwind"
	MoodEngage Mood = "engage"
)

// Goal is the second quiz answer.
type Goal string

const (
	GoalLaugh  Goal = "laugh"
	GoalFeel   Goal = "feel"
	GoalThrill Goal = "thrill"
	GoalThink  Goal = "think"
)

// TimeOfDay buckets the local hour.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// Device is the playback device.
type Device string

const (
	Mobile  Device = "mobile"
	Tablet  Device = "tablet"
	Desktop Device = "desktop"
	TV      Device = "tv"
)

// Social is who the user is watching with.
type Social string

const (
	Alone   Social = "alone"
	Partner Social = "partner"
	Family  Social = "family"
	Friends Social = "friends"
)

// Need is one entry of the fixed need vocabulary. The declaration order is
// significant: it is the vector slot order and the tie-break order.
type Need int

const (
	Comfort Need = iota
	Escape
	Stimulation
	Connection
	Growth
	Catharsis
	Joy
	Relaxation
	Meaning
	Beauty

	NumNeeds
)

var needNames = [NumNeeds]string{
	"comfort", "escape", "stimulation", "connection", "growth",
	"catharsis", "joy", "relaxation", "meaning", "beauty",
}

func (n Need) String() string {
	if n < 0 || n >= NumNeeds {
		return fmt.Sprintf("need(%d)", int(n))
	}
	return needNames[n]
}

// ParseNeed resolves a need name, case-insensitively.
func ParseNeed(s string) (Need, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range needNames {
		if name == s {
			return Need(i), true
		}
	}
	return 0, false
}

// Needs holds a strength in [0,1] per need. It is an array so that copying a
// State copies its needs.
type Needs [NumNeeds]float64

// Dominant returns the strongest need; ties go to the need declared first.
func (n Needs) Dominant() Need {
	best := Comfort
	for i := Need(1); i < NumNeeds; i++ {
		if n[i] > n[best] {
			best = i
		}
	}
	return best
}

// MarshalJSON encodes needs as a name-keyed object.
func (n Needs) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumNeeds)
	for i, v := range n {
		m[needNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a name-keyed object; unknown names are ignored.
func (n *Needs) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, v := range m {
		if need, ok := ParseNeed(name); ok {
			n[need] = v
		}
	}
	return nil
}

// Context is the situational part of a State.
type Context struct {
	TimeOfDay TimeOfDay    `json:"time_of_day"`
	Hour      int          `json:"hour"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	IsWeekend bool         `json:"is_weekend"`
	Device    Device       `json:"device"`
	Social    Social       `json:"social"`
}

// State is the continuous emotional state that drives a query. It is passed
// by value; adjustments return a new State.
type State struct {
	Energy            float64 `json:"energy"`
	Valence           float64 `json:"valence"`
	Arousal           float64 `json:"arousal"`
	CognitiveCapacity float64 `json:"cognitive_capacity"`
	Needs             Needs   `json:"needs"`
	Context           Context `json:"context"`
}

// NormalizedValence maps valence from [-1,1] to [0,1].
func (s State) NormalizedValence() float64 {
	return (s.Valence + 1) / 2
}

// MoodFromEnergy is "engage" above 0.5 energy, "unwind" otherwise.
func (s State) MoodFromEnergy() Mood {
	if s.Energy > 0.5 {
		return MoodEngage
	}
	return MoodUnwind
}

// Clamped returns s with every bounded field forced into range.
func (s State) Clamped() State {
	s.Energy = clamp(s.Energy, 0, 1)
	s.Valence = clamp(s.Valence, -1, 1)
	s.Arousal = clamp(s.Arousal, 0, 1)
	s.CognitiveCapacity = clamp(s.CognitiveCapacity, 0, 1)
	for i := range s.Needs {
		s.Needs[i] = clamp(s.Needs[i], 0, 1)
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// TimeOfDayForHour buckets a 0-23 hour: 5-11 morning, 12-16 afternoon,
// 17-21 evening, otherwise night.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// representativeHour is used when the caller names a time of day but the
// clock disagrees.
var representativeHour = map[TimeOfDay]int{
	Morning:   9,
	Afternoon: 14,
	Evening:   19,
	Night:     23,
}
