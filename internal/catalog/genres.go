package catalog

import "github.com/hpungsan/reel/internal/emotion"

// NeedSatisfaction maps a genre to how strongly it satisfies each need.
var NeedSatisfaction = map[string]map[emotion.Need]float64{
	"comedy":      {emotion.Joy: 0.9, emotion.Relaxation: 0.7},
	"drama":       {emotion.Catharsis: 0.8, emotion.Meaning: 0.7},
	"action":      {emotion.Stimulation: 0.9, emotion.Escape: 0.7},
	"thriller":    {emotion.Stimulation: 0.8, emotion.Escape: 0.6},
	"romance":     {emotion.Connection: 0.8, emotion.Beauty: 0.6},
	"documentary": {emotion.Growth: 0.9, emotion.Meaning: 0.8},
	"horror":      {emotion.Stimulation: 0.7, emotion.Catharsis: 0.5},
	"animation":   {emotion.Joy: 0.7, emotion.Comfort: 0.6},
	"family":      {emotion.Connection: 0.8, emotion.Comfort: 0.7},
	"scifi":       {emotion.Growth: 0.7, emotion.Stimulation: 0.6},
	"fantasy":     {emotion.Escape: 0.9, emotion.Beauty: 0.7},
	"biography":   {emotion.Growth: 0.7, emotion.Meaning: 0.6},
	"crime":       {emotion.Stimulation: 0.6, emotion.Meaning: 0.5},
	"mystery":     {emotion.Growth: 0.6, emotion.Stimulation: 0.7},
	"adventure":   {emotion.Escape: 0.8, emotion.Stimulation: 0.7},
	"music":       {emotion.Beauty: 0.8, emotion.Joy: 0.6},
}

// cognitiveLoad estimates how demanding a genre is to follow.
var cognitiveLoad = map[string]float64{
	"documentary": 0.8,
	"mystery":     0.8,
	"drama":       0.7,
	"thriller":    0.7,
	"history":     0.7,
	"scifi":       0.7,
	"biography":   0.6,
	"crime":       0.6,
	"war":         0.6,
	"fantasy":     0.5,
	"horror":      0.5,
	"action":      0.4,
	"adventure":   0.4,
	"music":       0.4,
	"romance":     0.4,
	"comedy":      0.3,
	"animation":   0.2,
	"family":      0.2,
}

// EstimateCognitiveLoad averages the genre loads, 0.5 when none are known.
func EstimateCognitiveLoad(genres []string) float64 {
	var sum float64
	var n int
	for _, g := range genres {
		if v, ok := cognitiveLoad[NormalizeGenre(g)]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}
