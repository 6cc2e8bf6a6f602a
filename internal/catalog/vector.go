package catalog

import (
	"math"

	"github.com/hpungsan/reel/internal/emotion"
)

// Dimensions is the query vector length.
const Dimensions = 768

// Vector slot layout shared by queries and items.
const (
	slotEnergy   = 0
	slotValence  = 1
	slotArousal  = 2
	slotCapacity = 3
	slotNeeds    = 4 // 4..13, emotion.Need order
	slotHour     = slotNeeds + int(emotion.NumNeeds)
	slotWeekend  = slotHour + 1
	slotDevice   = slotHour + 2
	slotSocial   = slotHour + 3
)

var deviceCode = map[emotion.Device]float32{
	emotion.Mobile:  0.25,
	emotion.Tablet:  0.5,
	emotion.Desktop: 0.75,
	emotion.TV:      1.0,
}

var socialCode = map[emotion.Social]float32{
	emotion.Alone:   0.25,
	emotion.Partner: 0.5,
	emotion.Friends: 0.75,
	emotion.Family:  1.0,
}

// Encode turns a state into an L2-normalized query vector. An all-zero state
// yields an all-zero vector.
func Encode(s emotion.State) []float32 {
	v := make([]float32, Dimensions)
	v[slotEnergy] = float32(s.Energy)
	v[slotValence] = float32(s.NormalizedValence())
	v[slotArousal] = float32(s.Arousal)
	v[slotCapacity] = float32(s.CognitiveCapacity)
	for i, n := range s.Needs {
		v[slotNeeds+i] = float32(n)
	}
	v[slotHour] = float32(s.Context.Hour) / 24
	if s.Context.IsWeekend {
		v[slotWeekend] = 1
	}
	v[slotDevice] = encodeDevice(s.Context.Device)
	v[slotSocial] = encodeSocial(s.Context.Social)
	normalize(v)
	return v
}

// ItemVector places a catalog item in the same space as Encode. Need slots
// carry the strongest satisfaction among the item's genres; context slots
// are neutral.
func ItemVector(it Item) []float32 {
	v := make([]float32, Dimensions)
	v[slotEnergy] = float32(it.Profile.Energy)
	v[slotValence] = float32((it.Profile.Valence + 1) / 2)
	v[slotArousal] = float32(it.Profile.Arousal)
	load := it.Profile.CognitiveLoad
	if load == 0 {
		load = EstimateCognitiveLoad(it.Genres)
	}
	v[slotCapacity] = float32(load)
	for _, g := range it.Genres {
		for need, sat := range NeedSatisfaction[NormalizeGenre(g)] {
			if f := float32(sat); f > v[slotNeeds+int(need)] {
				v[slotNeeds+int(need)] = f
			}
		}
	}
	v[slotHour] = 0.5
	v[slotWeekend] = 0.5
	v[slotDevice] = 0.5
	v[slotSocial] = 0.5
	normalize(v)
	return v
}

// encodeDevice leaves an unset device at 0 and maps unknown ones to 0.5.
func encodeDevice(d emotion.Device) float32 {
	if d == "" {
		return 0
	}
	if c, ok := deviceCode[d]; ok {
		return c
	}
	return 0.5
}

func encodeSocial(s emotion.Social) float32 {
	if s == "" {
		return 0
	}
	if c, ok := socialCode[s]; ok {
		return c
	}
	return 0.5
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// Cosine returns the cosine similarity of a and b, 0 if either is all-zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
