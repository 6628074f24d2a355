package assistant

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var defaultGazetteer []byte

// Region groups recognised place names.
type Region struct {
	Name   string   `yaml:"name"`
	Cities []string `yaml:"cities"`
}

type gazetteerFile struct {
	Regions []Region `yaml:"regions"`
}

// Gazetteer is the lookup table of towns and terminals the assistant can
// resolve. Names are stored lower-cased in file order.
type Gazetteer struct {
	cities []string
	bases  []string
}

// LoadGazetteer reads a YAML gazetteer from path, or the embedded default
// when path is empty.
func LoadGazetteer(path string) (*Gazetteer, error) {
	raw := defaultGazetteer
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read gazetteer: %w", err)
		}
		raw = b
	}
	var f gazetteerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	var names []string
	for _, r := range f.Regions {
		names = append(names, r.Cities...)
	}
	g := NewGazetteer(names)
	if len(g.cities) == 0 {
		return nil, fmt.Errorf("gazetteer %q has no cities", path)
	}
	return g, nil
}

// NewGazetteer builds a gazetteer from names, dropping blanks and duplicates.
func NewGazetteer(names []string) *Gazetteer {
	g := &Gazetteer{}
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.Join(strings.Fields(strings.ToLower(n)), " ")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		g.cities = append(g.cities, n)
		g.bases = append(g.bases, baseName(n))
	}
	return g
}

// Len reports how many names are loaded.
func (g *Gazetteer) Len() int { return len(g.cities) }

type cityHit struct {
	start, end int
	city       string
}

// Extract returns the gazetteer names whose base name (the part before any
// parenthesis) appears in text as whole words. Overlapping hits keep the
// longest name; results are ordered by position and unique.
func (g *Gazetteer) Extract(text string) []string {
	text = strings.ToLower(text)
	var hits []cityHit
	for i, base := range g.bases {
		if base == "" {
			continue
		}
		for from := 0; from < len(text); {
			idx := strings.Index(text[from:], base)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(base)
			if wordBoundary(text, start-1) && wordBoundary(text, end) {
				hits = append(hits, cityHit{start: start, end: end, city: g.cities[i]})
			}
			from = start + 1
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		la, lb := hits[a].end-hits[a].start, hits[b].end-hits[b].start
		if la != lb {
			return la > lb
		}
		return hits[a].start < hits[b].start
	})
	var kept []cityHit
	for _, h := range hits {
		overlaps := false
		for _, k := range kept {
			if h.start < k.end && k.start < h.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, h)
		}
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].start < kept[b].start })

	out := []string{}
	seen := map[string]bool{}
	for _, k := range kept {
		if !seen[k.city] {
			seen[k.city] = true
			out = append(out, k.city)
		}
	}
	return out
}

// Match returns the first name containing fragment.
func (g *Gazetteer) Match(fragment string) (string, bool) {
	fragment = strings.Join(strings.Fields(strings.ToLower(fragment)), " ")
	if fragment == "" {
		return "", false
	}
	for _, c := range g.cities {
		if strings.Contains(c, fragment) {
			return c, true
		}
	}
	return "", false
}

func baseName(city string) string {
	if i := strings.Index(city, "("); i >= 0 {
		city = city[:i]
	}
	return strings.TrimSpace(city)
}

// wordBoundary reports whether position i of s is outside a word.
func wordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
