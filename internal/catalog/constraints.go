package catalog

import "strings"

// Constraints narrow the candidate search. Zero values impose nothing.
type Constraints struct {
	MaxRuntime       int      `json:"max_runtime,omitempty" validate:"omitempty,gte=1,lte=600"`
	MinYear          int      `json:"min_year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	MaxYear          int      `json:"max_year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Languages        []string `json:"languages,omitempty"`
	ExcludeLanguages []string `json:"exclude_languages,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	ExcludeGenres    []string `json:"exclude_genres,omitempty"`
	ExcludeIDs       []string `json:"exclude_ids,omitempty"`
}

// IsZero reports whether c imposes no constraint.
func (c Constraints) IsZero() bool {
	return c.MaxRuntime == 0 && c.MinYear == 0 && c.MaxYear == 0 &&
		len(c.Languages) == 0 && len(c.ExcludeLanguages) == 0 &&
		len(c.Genres) == 0 && len(c.ExcludeGenres) == 0 && len(c.ExcludeIDs) == 0
}

// Merge returns c with o layered on top: non-zero scalars in o win and lists
// are unioned.
func (c Constraints) Merge(o Constraints) Constraints {
	if o.MaxRuntime != 0 {
		c.MaxRuntime = o.MaxRuntime
	}
	if o.MinYear != 0 {
		c.MinYear = o.MinYear
	}
	if o.MaxYear != 0 {
		c.MaxYear = o.MaxYear
	}
	c.Languages = union(c.Languages, o.Languages)
	c.ExcludeLanguages = union(c.ExcludeLanguages, o.ExcludeLanguages)
	c.Genres = union(c.Genres, o.Genres)
	c.ExcludeGenres = union(c.ExcludeGenres, o.ExcludeGenres)
	c.ExcludeIDs = union(c.ExcludeIDs, o.ExcludeIDs)
	return c
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// filter is one named predicate stage.
type filter struct {
	name string
	keep func(Metadata) bool
}

// filters returns the active predicates in evaluation order: runtime, year,
// language, included genres, excluded genres, excluded ids.
func (c Constraints) filters() []filter {
	var fs []filter
	if c.MaxRuntime > 0 {
		fs = append(fs, filter{"runtime", func(m Metadata) bool {
			return m.Runtime == 0 || m.Runtime <= c.MaxRuntime
		}})
	}
	if c.MinYear > 0 || c.MaxYear > 0 {
		fs = append(fs, filter{"year", func(m Metadata) bool {
			if m.Year == 0 {
				return true
			}
			if c.MinYear > 0 && m.Year < c.MinYear {
				return false
			}
			return c.MaxYear == 0 || m.Year <= c.MaxYear
		}})
	}
	if len(c.Languages) > 0 || len(c.ExcludeLanguages) > 0 {
		allow, deny := fold(c.Languages), fold(c.ExcludeLanguages)
		fs = append(fs, filter{"language", func(m Metadata) bool {
			lang := strings.ToLower(m.Language)
			if len(allow) > 0 && !allow[lang] {
				return false
			}
			return !deny[lang]
		}})
	}
	if len(c.Genres) > 0 {
		want := foldGenres(c.Genres)
		fs = append(fs, filter{"genres", func(m Metadata) bool {
			return anyGenre(m.Genres, want)
		}})
	}
	if len(c.ExcludeGenres) > 0 {
		deny := foldGenres(c.ExcludeGenres)
		fs = append(fs, filter{"exclude_genres", func(m Metadata) bool {
			return !anyGenre(m.Genres, deny)
		}})
	}
	if len(c.ExcludeIDs) > 0 {
		deny := make(map[string]bool, len(c.ExcludeIDs))
		for _, id := range c.ExcludeIDs {
			deny[id] = true
		}
		fs = append(fs, filter{"exclude_ids", func(m Metadata) bool {
			return !deny[m.ID]
		}})
	}
	return fs
}

// Allows reports whether m passes every constraint.
func (c Constraints) Allows(m Metadata) bool {
	for _, f := range c.filters() {
		if !f.keep(m) {
			return false
		}
	}
	return true
}

// Apply filters cands stage by stage, then drops anything under minSimilarity,
// then truncates to limit (limit <= 0 means no cap). Order is preserved.
func (c Constraints) Apply(cands []Candidate, minSimilarity float64, limit int) []Candidate {
	out := make([]Candidate, 0, len(cands))
	out = append(out, cands...)
	for _, f := range c.filters() {
		out = keep(out, func(cd Candidate) bool { return f.keep(cd.Metadata) })
	}
	out = keep(out, func(cd Candidate) bool { return cd.VectorSimilarity >= minSimilarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func keep(cands []Candidate, pred func(Candidate) bool) []Candidate {
	n := 0
	for _, cd := range cands {
		if pred(cd) {
			cands[n] = cd
			n++
		}
	}
	return cands[:n]
}

func fold(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m[s] = true
		}
	}
	return m
}

func foldGenres(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		if g := NormalizeGenre(s); g != "" {
			m[g] = true
		}
	}
	return m
}

func anyGenre(genres []string, set map[string]bool) bool {
	for _, g := range genres {
		if set[NormalizeGenre(g)] {
			return true
		}
	}
	return false
}
