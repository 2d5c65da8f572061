package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validWorkoutJSON = `{
  "title": "Hypertrophy Block A/B",
  "sessions": [
    {
      "name": "A", "focus": "Push", "durationMinutes": 60, "calories": 420,
      "exercises": [
        {"name": "Supino Reto com Barra", "sets": 4, "reps": "8-10", "rest": "90s",
         "technique": "Scapulae retracted, bar to lower chest", "initialLoad": "RPE 7"},
        {"name": "Desenvolvimento com Halteres", "sets": 3, "reps": 12, "rest": "60s",
         "technique": "Neutral spine", "initialLoad": "2x10kg"}
      ]
    },
    {
      "name": "B", "focus": "Pull", "durationMinutes": 55, "calories": 380,
      "exercises": [
        {"name": "Remada Curvada (pegada pronada)", "sets": 4, "reps": "10", "rest": "90s",
         "technique": "Hinge at hips", "initialLoad": "40kg"}
      ]
    }
  ],
  "weeklyVolume": {"chest": 12, "shoulders": 9, "back": 14},
  "progression": [
    {"week": 1, "deload": false, "description": "Base"},
    {"week": 2, "deload": false, "description": "+1 set"},
    {"week": 3, "deload": false, "description": "+load"},
    {"week": 4, "deload": true, "volumeReductionPercent": 35, "description": "Deload"}
  ],
  "rationale": {"volume": "Moderate", "split": "Push/pull", "progression": "Linear then deload"}
}`

const validNutritionJSON = `{
  "title": "Lean Gain Plan",
  "dailyTargets": {"calories": 2500, "protein": 170, "carbs": 280, "fat": 75},
  "meals": [
    {"name": "Breakfast", "time": "07:30", "role": "breakfast", "calories": 600, "protein": 40, "carbs": 70, "fat": 15},
    {"name": "Pre-workout", "time": "17:00", "role": "pre_workout", "calories": 400, "protein": 25, "carbs": 60, "fat": 5},
    {"name": "Post-workout", "time": "19:30", "role": "post_workout", "calories": 700, "protein": 50, "carbs": 90, "fat": 15},
    {"name": "Dinner", "time": "21:30", "role": "dinner", "calories": 800, "protein": 55, "carbs": 60, "fat": 40}
  ],
  "preSleepOptions": [{"name": "Greek yogurt"}, {"name": "Casein shake"}, {"name": "Cottage cheese"}],
  "dayVariants": {"training": {"calories": 2600}, "rest": {"calories": 2300}},
  "hydration": {"liters": 3.5},
  "shoppingList": ["oats", "chicken breast", "rice"],
  "substitutions": [{"from": "rice", "to": "potatoes"}]
}`

const validMindsetJSON = `{
  "title": "Resilience in Four Weeks",
  "focusAreas": ["consistency", "stress"],
  "dailyPractices": [
    {"name": "Box breathing", "durationMinutes": 5, "instructions": "4-4-4-4 for five rounds"}
  ],
  "weeklyThemes": [
    {"week": 1, "theme": "Awareness"}, {"week": 2, "theme": "Routine"},
    {"week": 3, "theme": "Setbacks"}, {"week": 4, "theme": "Identity"}
  ],
  "journalingPrompts": ["What went well?", "What drained you?", "What will you repeat?"],
  "rationale": "Habits first, identity last."
}`

func mustParse(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument(raw)
	require.NoError(t, err)
	return doc
}

func firstExercise(t *testing.T, doc Document) map[string]any {
	t.Helper()
	sessions, _ := objects(doc, "sessions")
	require.NotEmpty(t, sessions)
	exercises, _ := objects(sessions[0], "exercises")
	require.NotEmpty(t, exercises)
	return exercises[0]
}
