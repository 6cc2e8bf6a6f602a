package pipeline

import "github.com/hpungsan/reel/internal/catalog"

// SelectAlternatives picks up to quota candidates from ranked, which must be
// ordered best first. A first pass accepts a candidate when it brings a
// genre not seen among those already accepted (the first one is always
// accepted). If the quota is still open, the best remaining candidates fill
// it in score order, after the diverse picks. Duplicate ids are never returned.
func SelectAlternatives(ranked []catalog.Candidate, quota int) []catalog.Candidate {
	if quota <= 0 || len(ranked) == 0 {
		return nil
	}

	selected := make([]catalog.Candidate, 0, quota)
	taken := make(map[string]bool, quota)
	seenGenres := make(map[string]bool)

	for _, c := range ranked {
		if len(selected) == quota {
			break
		}
		if taken[c.Metadata.ID] {
			continue
		}
		novel := false
		for _, g := range c.Metadata.Genres {
			if !seenGenres[catalog.NormalizeGenre(g)] {
				novel = true
				break
			}
		}
		if !novel && len(selected) > 0 {
			continue
		}
		selected = append(selected, c)
		taken[c.Metadata.ID] = true
		for _, g := range c.Metadata.Genres {
			seenGenres[catalog.NormalizeGenre(g)] = true
		}
	}

	for _, c := range ranked {
		if len(selected) == quota {
			break
		}
		if taken[c.Metadata.ID] {
			continue
		}
		selected = append(selected, c)
		taken[c.Metadata.ID] = true
	}

	return selected
}
