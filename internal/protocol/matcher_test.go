package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-protocols/internal/domain"
)

const mediaBase = "https://media.example.com/exercises/"

func testCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{CanonicalName: "Supino Reto", MediaURL: mediaBase + "supino-reto.gif"},
		{CanonicalName: "Supino Inclinado", MediaURL: mediaBase + "supino-inclinado.gif"},
		{CanonicalName: "Desenvolvimento", MediaURL: mediaBase + "desenvolvimento.gif"},
		{CanonicalName: "Remada Curvada", MediaURL: mediaBase + "remada-curvada.gif"},
		{CanonicalName: "Agachamento Livre", MediaURL: mediaBase + "agachamento.gif"},
		{CanonicalName: "Leg Press 45", MediaURL: ""},
	}
}

func TestDefaultTransforms_StepByStep(t *testing.T) {
	steps := map[string]func(string) string{}
	for _, tr := range DefaultTransforms() {
		steps[tr.Name] = tr.Apply
	}
	require.Len(t, steps, 7)

	assert.Equal(t, "supino reto", steps["lowercase"]("Supino RETO"))
	assert.Equal(t, "elevacao lateral", steps["strip_diacritics"]("elevação lateral"))
	assert.Equal(t, "remada  ", steps["strip_parentheticals"]("remada (pegada)"))
	assert.Equal(t, "remada  ", steps["strip_parentheticals"]("remada [v2]"))
	assert.Equal(t, "pull up ", steps["punctuation_to_space"]("pull-up!"))
	assert.Equal(t, "supino reto barra", steps["drop_stop_words"]("supino reto com a barra"))
	assert.Equal(t, "supino reto", steps["drop_equipment_words"]("supino reto barra"))
	assert.Equal(t, "a b", steps["collapse_whitespace"]("  a \t b  "))
}

func TestNormalize(t *testing.T) {
	n := DefaultNormalizer()
	assert.Equal(t, "supino reto", n.Normalize("Supino Reto com Barra"))
	assert.Equal(t, "supino reto", n.Normalize("  supino   reto "))
	assert.Equal(t, "elevacao lateral", n.Normalize("Elevação Lateral com Halteres (sentado)"))
	assert.Equal(t, "bench press", n.Normalize("Barbell Bench-Press"))
	assert.Equal(t, "", n.Normalize("com a barra"))
}

func TestMatch_EquivalentNamesResolveToSameEntry(t *testing.T) {
	catalog := testCatalog()
	a, okA := Match("Supino Reto com Barra", catalog)
	b, okB := Match("supino reto", catalog)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, mediaBase+"supino-reto.gif", a)
	assert.Equal(t, a, b)
}

func TestMatch_Tiers(t *testing.T) {
	m := NewMatcher(testCatalog(), nil)

	url, ok := m.Match("REMADA CURVADA")
	require.True(t, ok, "raw exact")
	assert.Equal(t, mediaBase+"remada-curvada.gif", url)

	url, ok = m.Match("Desenvolvimento com Halteres")
	require.True(t, ok, "normalized exact")
	assert.Equal(t, mediaBase+"desenvolvimento.gif", url)

	url, ok = m.Match("Agachamento")
	require.True(t, ok, "query contained in key")
	assert.Equal(t, mediaBase+"agachamento.gif", url)

	url, ok = m.Match("Remada Curvada Unilateral")
	require.True(t, ok, "key contained in query")
	assert.Equal(t, mediaBase+"remada-curvada.gif", url)
}

func TestMatch_SubstringTakesFirstCatalogHit(t *testing.T) {
	url, ok := Match("Supino", testCatalog())
	require.True(t, ok)
	assert.Equal(t, mediaBase+"supino-reto.gif", url)
}

func TestMatch_Misses(t *testing.T) {
	m := NewMatcher(testCatalog(), nil)
	for _, name := range []string{"", "   ", "Leg Press 45", "Burpee", "com a barra"} {
		_, ok := m.Match(name)
		assert.False(t, ok, name)
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	_, ok := Match("Supino Reto", nil)
	assert.False(t, ok)
}

func TestEnrich_AttachesMediaAndIsIdempotent(t *testing.T) {
	doc := mustParse(t, validWorkoutJSON)
	e := NewEnricher(NewMatcher(testCatalog(), nil), URLPrefixStore{mediaBase})

	stats := e.Enrich(doc)
	assert.Equal(t, EnrichStats{Exercises: 3, Matched: 3}, stats)
	assert.Equal(t, mediaBase+"supino-reto.gif", firstExercise(t, doc)["mediaUrl"])

	before := doc.JSON()
	stats = e.Enrich(doc)
	assert.Equal(t, EnrichStats{Exercises: 3, Skipped: 3}, stats)
	assert.Equal(t, before, doc.JSON())
}

func TestEnrich_PreservesCuratedOverrides(t *testing.T) {
	doc := mustParse(t, validWorkoutJSON)
	curated := mediaBase + "custom/coach-demo.mp4"
	firstExercise(t, doc)["mediaUrl"] = curated

	stats := NewEnricher(NewMatcher(testCatalog(), nil), URLPrefixStore{mediaBase}).Enrich(doc)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, curated, firstExercise(t, doc)["mediaUrl"])
}

func TestEnrich_ReplacesForeignMedia(t *testing.T) {
	doc := mustParse(t, validWorkoutJSON)
	firstExercise(t, doc)["mediaUrl"] = "https://youtube.example/watch?v=1"

	NewEnricher(NewMatcher(testCatalog(), nil), URLPrefixStore{mediaBase}).Enrich(doc)
	assert.Equal(t, mediaBase+"supino-reto.gif", firstExercise(t, doc)["mediaUrl"])
}

func TestEnrich_UnmatchedLeftAlone(t *testing.T) {
	doc := Document{"sessions": []any{
		map[string]any{"name": "A", "exercises": []any{map[string]any{"name": "Burpee"}}},
	}}
	stats := NewEnricher(NewMatcher(testCatalog(), nil), nil).Enrich(doc)
	assert.Equal(t, EnrichStats{Exercises: 1, Unmatched: 1}, stats)
	_, has := doc["sessions"].([]any)[0].(map[string]any)["exercises"].([]any)[0].(map[string]any)["mediaUrl"]
	assert.False(t, has)
}
