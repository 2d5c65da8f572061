package protocol

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"alcyxob/fitness-protocols/internal/domain"
)

// Transform is one named step of the exercise-name normalization pipeline.
type Transform struct {
	Name  string
	Apply func(string) string
}

// StopWords are prepositions and articles that never change exercise identity.
var StopWords = []string{
	"a", "o", "as", "os", "e", "com", "sem", "de", "da", "do", "das", "dos",
	"na", "no", "nas", "nos", "em", "para", "pra", "pelo", "pela", "um", "uma",
	"the", "with", "of", "on", "in", "to", "and", "an",
}

// EquipmentWords name implements whose presence does not change which movement is meant.
var EquipmentWords = []string{
	"barra", "barras", "halter", "halteres", "haltere", "cabo", "cabos", "polia",
	"polias", "maquina", "maquinas", "aparelho", "crossover", "smith", "anilha",
	"barbell", "dumbbell", "dumbbells", "cable", "cables", "pulley", "machine",
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	punctuationRe   = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

func lowerCase(s string) string { return strings.ToLower(s) }

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripParentheticals(s string) string { return parentheticalRe.ReplaceAllString(s, " ") }

func punctuationToSpace(s string) string { return punctuationRe.ReplaceAllString(s, " ") }

func dropWords(words []string) func(string) string {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(s string) string {
		fields := strings.Fields(s)
		kept := fields[:0]
		for _, f := range fields {
			if _, drop := set[f]; !drop {
				kept = append(kept, f)
			}
		}
		return strings.Join(kept, " ")
	}
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// DefaultTransforms returns the normalization pipeline in application order.
// Word lists are matched after diacritics are stripped, so they are stored unaccented.
func DefaultTransforms() []Transform {
	return []Transform{
		{Name: "lowercase", Apply: lowerCase},
		{Name: "strip_diacritics", Apply: stripDiacritics},
		{Name: "strip_parentheticals", Apply: stripParentheticals},
		{Name: "punctuation_to_space", Apply: punctuationToSpace},
		{Name: "drop_stop_words", Apply: dropWords(StopWords)},
		{Name: "drop_equipment_words", Apply: dropWords(EquipmentWords)},
		{Name: "collapse_whitespace", Apply: collapseWhitespace},
	}
}

// Normalizer applies an ordered list of transforms.
type Normalizer struct {
	transforms []Transform
}

func NewNormalizer(transforms ...Transform) *Normalizer {
	return &Normalizer{transforms: transforms}
}

func DefaultNormalizer() *Normalizer {
	return NewNormalizer(DefaultTransforms()...)
}

func (n *Normalizer) Normalize(s string) string {
	for _, t := range n.transforms {
		s = t.Apply(s)
	}
	return s
}

type indexedEntry struct {
	key string
	url string
}

// Matcher resolves free-text exercise names to catalog media. Build one per request;
// it is read-only after construction.
type Matcher struct {
	normalizer *Normalizer
	raw        map[string]string
	normalized map[string]string
	ordered    []indexedEntry
}

// NewMatcher indexes catalog. When two entries share a key the first one wins.
func NewMatcher(catalog []domain.CatalogEntry, n *Normalizer) *Matcher {
	if n == nil {
		n = DefaultNormalizer()
	}
	m := &Matcher{
		normalizer: n,
		raw:        make(map[string]string, len(catalog)),
		normalized: make(map[string]string, len(catalog)),
		ordered:    make([]indexedEntry, 0, len(catalog)),
	}
	for _, e := range catalog {
		if e.MediaURL == "" {
			continue
		}
		rawKey := strings.TrimSpace(strings.ToLower(e.CanonicalName))
		if rawKey == "" {
			continue
		}
		if _, dup := m.raw[rawKey]; !dup {
			m.raw[rawKey] = e.MediaURL
		}
		normKey := n.Normalize(e.CanonicalName)
		if normKey == "" {
			continue
		}
		if _, dup := m.normalized[normKey]; !dup {
			m.normalized[normKey] = e.MediaURL
		}
		m.ordered = append(m.ordered, indexedEntry{key: normKey, url: e.MediaURL})
	}
	return m
}

// Match tries, in order: raw lower-cased exact, normalized exact, then normalized
// substring containment in either direction (first catalog hit wins).
func (m *Matcher) Match(name string) (string, bool) {
	rawKey := strings.TrimSpace(strings.ToLower(name))
	if rawKey == "" {
		return "", false
	}
	if url, ok := m.raw[rawKey]; ok {
		return url, true
	}
	normKey := m.normalizer.Normalize(name)
	if normKey == "" {
		return "", false
	}
	if url, ok := m.normalized[normKey]; ok {
		return url, true
	}
	for _, e := range m.ordered {
		if strings.Contains(e.key, normKey) || strings.Contains(normKey, e.key) {
			return e.url, true
		}
	}
	return "", false
}

// Match is a one-shot convenience over a fresh Matcher with the default pipeline.
func Match(name string, catalog []domain.CatalogEntry) (string, bool) {
	return NewMatcher(catalog, nil).Match(name)
}

// MediaStore recognises URLs served from our own media bucket.
type MediaStore interface {
	Owns(url string) bool
}

// URLPrefixStore owns every URL starting with one of its prefixes.
type URLPrefixStore []string

func (p URLPrefixStore) Owns(url string) bool {
	for _, prefix := range p {
		if prefix != "" && strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// EnrichStats summarises one enrichment pass.
type EnrichStats struct {
	Exercises int `json:"exercises"`
	Matched   int `json:"matched"`
	Skipped   int `json:"skipped"` // Already pointing at our store
	Unmatched int `json:"unmatched"`
}

// Enricher attaches catalog media to every exercise of a workout document.
type Enricher struct {
	matcher *Matcher
	store   MediaStore
}

func NewEnricher(matcher *Matcher, store MediaStore) *Enricher {
	if store == nil {
		store = URLPrefixStore(nil)
	}
	return &Enricher{matcher: matcher, store: store}
}

// Enrich mutates doc in place. Exercises whose mediaUrl already points at our store
// are left alone, so running it twice changes nothing.
func (e *Enricher) Enrich(doc Document) EnrichStats {
	var stats EnrichStats
	sessions, _ := objects(doc, "sessions")
	for _, s := range sessions {
		exercises, _ := objects(s, "exercises")
		for _, ex := range exercises {
			stats.Exercises++
			if current := stringField(ex, "mediaUrl"); current != "" && e.store.Owns(current) {
				stats.Skipped++
				continue
			}
			url, ok := e.matcher.Match(textField(ex, "name"))
			if !ok {
				stats.Unmatched++
				continue
			}
			ex["mediaUrl"] = url
			stats.Matched++
		}
	}
	return stats
}
