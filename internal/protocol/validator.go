package protocol

import (
	"fmt"
	"sort"
	"strings"

	"alcyxob/fitness-protocols/internal/domain"
)

// Checklist criterion names. They are sent back to the generator verbatim on
// correction attempts, so they read as requirements.
const (
	CriterionTitle = "title_present"

	CriterionWeeklyStructure      = "weekly_structure"
	CriterionSessionDetails       = "session_details"
	CriterionExercisesPresent     = "exercises_present"
	CriterionExercisePrescription = "exercise_prescription"
	CriterionTechniqueNotes       = "technique_notes"
	CriterionInitialLoad          = "initial_load"
	CriterionWeeklyVolume         = "weekly_volume"
	CriterionProgression          = "progression_four_stages"
	CriterionDeloadWeek           = "deload_week"
	CriterionRationale            = "rationale_present"

	CriterionDailyTargets       = "daily_targets"
	CriterionMealsPresent       = "meals_present"
	CriterionMacros             = "macros_daily_and_per_meal"
	CriterionPreWorkoutMeal     = "pre_workout_meal"
	CriterionPostWorkoutMeal    = "post_workout_meal"
	CriterionPreSleepOptions    = "pre_sleep_options"
	CriterionDayVariants        = "day_variants"
	CriterionHydration          = "hydration_target"
	CriterionShoppingList       = "shopping_list"
	CriterionSubstitutions      = "substitutions"
	CriterionScheduleConsistent = "schedule_consistent"

	CriterionFocusAreas           = "focus_areas"
	CriterionDailyPractices       = "daily_practices"
	CriterionPracticeInstructions = "practice_instructions"
	CriterionWeeklyThemes         = "weekly_themes"
	CriterionJournalingPrompts    = "journaling_prompts"

	CriterionProtocolType = "protocol_type"
)

const (
	progressionStages    = 4
	deloadMinReduction   = 30.0
	deloadMaxReduction   = 40.0
	preSleepAlternatives = 3
	minMeals             = 3
	mindsetThemeWeeks    = 4
	minJournalingPrompts = 3

	// Keeps correction prompts bounded for documents with hundreds of defects.
	maxDetailsPerCriterion = 5
)

// ValidationResult is the verdict for one document. Callers branch on Valid.
type ValidationResult struct {
	Valid          bool            `json:"valid"`
	Errors         []string        `json:"errors"`
	FailedCriteria []string        `json:"failedCriteria"`
	Criteria       map[string]bool `json:"criteria"`
}

type criterion struct {
	name  string
	check func(doc Document, sched *Schedule) []string
}

var checklists = map[domain.ProtocolType][]criterion{
	domain.ProtocolWorkout: {
		{CriterionTitle, checkTitle},
		{CriterionWeeklyStructure, checkWeeklyStructure},
		{CriterionSessionDetails, checkSessionDetails},
		{CriterionExercisesPresent, checkExercisesPresent},
		{CriterionExercisePrescription, checkExercisePrescription},
		{CriterionTechniqueNotes, exerciseTextCheck("technique", "technique note")},
		{CriterionInitialLoad, exerciseTextCheck("initialLoad", "initial load suggestion")},
		{CriterionWeeklyVolume, checkWeeklyVolume},
		{CriterionProgression, checkProgressionStages},
		{CriterionDeloadWeek, checkDeloadWeek},
		{CriterionRationale, checkWorkoutRationale},
	},
	domain.ProtocolNutrition: {
		{CriterionTitle, checkTitle},
		{CriterionDailyTargets, checkDailyTargets},
		{CriterionMealsPresent, checkMealsPresent},
		{CriterionMacros, checkMacros},
		{CriterionPreWorkoutMeal, mealRoleCheck(mealRolePreWorkout)},
		{CriterionPostWorkoutMeal, mealRoleCheck(mealRolePostWorkout)},
		{CriterionPreSleepOptions, checkPreSleepOptions},
		{CriterionDayVariants, checkDayVariants},
		{CriterionHydration, checkHydration},
		{CriterionShoppingList, nonEmptyListCheck("shoppingList", "weekly shopping list")},
		{CriterionSubstitutions, nonEmptyListCheck("substitutions", "substitution options")},
		{CriterionScheduleConsistent, checkSchedule},
	},
	domain.ProtocolMindset: {
		{CriterionTitle, checkTitle},
		{CriterionFocusAreas, checkFocusAreas},
		{CriterionDailyPractices, checkDailyPractices},
		{CriterionPracticeInstructions, checkPracticeInstructions},
		{CriterionWeeklyThemes, checkWeeklyThemes},
		{CriterionJournalingPrompts, checkJournalingPrompts},
		{CriterionRationale, checkMindsetRationale},
	},
}

// Checklist returns the criterion names evaluated for t, in evaluation order.
func Checklist(t domain.ProtocolType) []string {
	list := checklists[t]
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.name
	}
	return names
}

// Validate checks doc against the structural and business rules of t.
func Validate(doc Document, t domain.ProtocolType) ValidationResult {
	return ValidateWithSchedule(doc, t, nil)
}

// ValidateWithSchedule also checks meal timing against the user's day. A nil
// schedule makes the timing criterion pass.
func ValidateWithSchedule(doc Document, t domain.ProtocolType, sched *Schedule) ValidationResult {
	list, ok := checklists[t]
	if !ok {
		return ValidationResult{
			Valid:          false,
			Errors:         []string{fmt.Sprintf("%s: unsupported protocol type %q", CriterionProtocolType, t)},
			FailedCriteria: []string{CriterionProtocolType},
			Criteria:       map[string]bool{CriterionProtocolType: false},
		}
	}

	res := ValidationResult{
		Errors:         []string{},
		FailedCriteria: []string{},
		Criteria:       make(map[string]bool, len(list)),
	}
	for _, c := range list {
		details := c.check(doc, sched)
		passed := len(details) == 0
		res.Criteria[c.name] = passed
		if passed {
			continue
		}
		res.FailedCriteria = append(res.FailedCriteria, c.name)
		for i, d := range details {
			if i == maxDetailsPerCriterion {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: ... and %d more", c.name, len(details)-i))
				break
			}
			res.Errors = append(res.Errors, c.name+": "+d)
		}
	}
	res.Valid = len(res.FailedCriteria) == 0
	return res
}

func checkTitle(doc Document, _ *Schedule) []string {
	if doc.Title() == "" {
		return []string{"document has no title"}
	}
	return nil
}

// --- workout ---

func sessionsOf(doc Document) ([]map[string]any, []string) {
	sessions, all := objects(doc, "sessions")
	if len(sessions) == 0 {
		return nil, []string{"no training sessions defined"}
	}
	if !all {
		return sessions, []string{"sessions list contains non-object entries"}
	}
	return sessions, nil
}

func sessionLabel(i int, s map[string]any) string {
	if name := textField(s, "name"); name != "" {
		return fmt.Sprintf("session %q", name)
	}
	return fmt.Sprintf("session #%d", i+1)
}

func checkWeeklyStructure(doc Document, _ *Schedule) []string {
	sessions, problems := sessionsOf(doc)
	for i, s := range sessions {
		if textField(s, "name") == "" {
			problems = append(problems, fmt.Sprintf("session #%d has no name", i+1))
		}
	}
	return problems
}

func checkSessionDetails(doc Document, _ *Schedule) []string {
	sessions, problems := sessionsOf(doc)
	if len(sessions) == 0 {
		return problems
	}
	problems = nil
	for i, s := range sessions {
		label := sessionLabel(i, s)
		if textField(s, "focus") == "" {
			problems = append(problems, label+" has no focus area")
		}
		if d, ok := numberField(s, "durationMinutes"); !ok || d <= 0 {
			problems = append(problems, label+" has no estimated duration in minutes")
		}
		if c, ok := numberField(s, "calories"); !ok || c <= 0 {
			problems = append(problems, label+" has no calorie estimate")
		}
	}
	return problems
}

func checkExercisesPresent(doc Document, _ *Schedule) []string {
	sessions, problems := sessionsOf(doc)
	if len(sessions) == 0 {
		return problems
	}
	problems = nil
	for i, s := range sessions {
		exercises, all := objects(s, "exercises")
		if len(exercises) == 0 {
			problems = append(problems, sessionLabel(i, s)+" has no exercises")
		} else if !all {
			problems = append(problems, sessionLabel(i, s)+" has non-object exercise entries")
		}
	}
	return problems
}

// eachExercise visits every exercise object. It reports a problem when there is
// nothing to visit, so per-exercise criteria cannot pass vacuously.
func eachExercise(doc Document, visit func(label string, ex map[string]any)) []string {
	sessions, _ := objects(doc, "sessions")
	seen := 0
	for i, s := range sessions {
		exercises, _ := objects(s, "exercises")
		for j, ex := range exercises {
			seen++
			label := fmt.Sprintf("%s exercise #%d", sessionLabel(i, s), j+1)
			if name := textField(ex, "name"); name != "" {
				label = fmt.Sprintf("%s exercise %q", sessionLabel(i, s), name)
			}
			visit(label, ex)
		}
	}
	if seen == 0 {
		return []string{"no exercises to check"}
	}
	return nil
}

func checkExercisePrescription(doc Document, _ *Schedule) []string {
	var problems []string
	if p := eachExercise(doc, func(label string, ex map[string]any) {
		if textField(ex, "name") == "" {
			problems = append(problems, label+" has no name")
		}
		if sets, ok := numberField(ex, "sets"); !ok || sets <= 0 {
			problems = append(problems, label+" has no numeric set count")
		}
		if textField(ex, "reps") == "" {
			problems = append(problems, label+" has no reps")
		}
		if textField(ex, "rest") == "" {
			problems = append(problems, label+" has no rest interval")
		}
	}); p != nil {
		return p
	}
	return problems
}

func exerciseTextCheck(field, what string) func(Document, *Schedule) []string {
	return func(doc Document, _ *Schedule) []string {
		var problems []string
		if p := eachExercise(doc, func(label string, ex map[string]any) {
			if textField(ex, field) == "" {
				problems = append(problems, fmt.Sprintf("%s has no %s (%s)", label, what, field))
			}
		}); p != nil {
			return p
		}
		return problems
	}
}

func checkWeeklyVolume(doc Document, _ *Schedule) []string {
	volume, ok := mapField(doc, "weeklyVolume")
	if !ok || len(volume) == 0 {
		return []string{"weeklyVolume must map each muscle group to a weekly set count"}
	}
	groups := make([]string, 0, len(volume))
	for group := range volume {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	var problems []string
	for _, group := range groups {
		if n, ok := asNumber(volume[group]); !ok || n <= 0 {
			problems = append(problems, fmt.Sprintf("weeklyVolume[%q] is not a positive number of sets", group))
		}
	}
	return problems
}

func progressionOf(doc Document) ([]map[string]any, bool) {
	return objects(doc, "progression")
}

func checkProgressionStages(doc Document, _ *Schedule) []string {
	raw, _ := sliceField(doc, "progression")
	if len(raw) != progressionStages {
		return []string{fmt.Sprintf("progression must have exactly %d stages, found %d", progressionStages, len(raw))}
	}
	stages, all := progressionOf(doc)
	if !all {
		return []string{fmt.Sprintf("progression must have %d stage objects but contains non-object entries", progressionStages)}
	}
	var problems []string
	for i := 0; i < progressionStages-1; i++ {
		if boolField(stages[i], "deload") {
			problems = append(problems, fmt.Sprintf("week %d must be an overload week, not a deload", i+1))
		}
	}
	return problems
}

func checkDeloadWeek(doc Document, _ *Schedule) []string {
	stages, _ := progressionOf(doc)
	if len(stages) < progressionStages {
		return []string{"progression has no fourth (deload) stage"}
	}
	last := stages[progressionStages-1]
	var problems []string
	if !boolField(last, "deload") {
		problems = append(problems, "week 4 must be marked deload=true")
	}
	r, ok := numberField(last, "volumeReductionPercent")
	if !ok || r < deloadMinReduction || r > deloadMaxReduction {
		problems = append(problems, fmt.Sprintf("week 4 volumeReductionPercent must be between %.0f and %.0f", deloadMinReduction, deloadMaxReduction))
	}
	return problems
}

func checkWorkoutRationale(doc Document, _ *Schedule) []string {
	rationale, ok := mapField(doc, "rationale")
	if !ok {
		return []string{"rationale object with volume, split and progression explanations is missing"}
	}
	var problems []string
	for _, key := range []string{"volume", "split", "progression"} {
		if textField(rationale, key) == "" {
			problems = append(problems, fmt.Sprintf("rationale.%s is empty", key))
		}
	}
	return problems
}

// --- nutrition ---

const (
	mealRolePreWorkout  = "pre_workout"
	mealRolePostWorkout = "post_workout"
)

var macroKeys = []string{"calories", "protein", "carbs", "fat"}

func checkDailyTargets(doc Document, _ *Schedule) []string {
	targets, ok := mapField(doc, "dailyTargets")
	if !ok {
		return []string{"dailyTargets is missing"}
	}
	if kcal, ok := numberField(targets, "calories"); !ok || kcal <= 0 {
		return []string{"dailyTargets.calories must be a positive number"}
	}
	return nil
}

func mealsOf(doc Document) []map[string]any {
	meals, _ := objects(doc, "meals")
	return meals
}

func mealLabel(i int, m map[string]any) string {
	if name := textField(m, "name"); name != "" {
		return fmt.Sprintf("meal %q", name)
	}
	return fmt.Sprintf("meal #%d", i+1)
}

func checkMealsPresent(doc Document, _ *Schedule) []string {
	meals := mealsOf(doc)
	if len(meals) < minMeals {
		return []string{fmt.Sprintf("at least %d meals are required, found %d", minMeals, len(meals))}
	}
	var problems []string
	for i, m := range meals {
		if textField(m, "name") == "" {
			problems = append(problems, fmt.Sprintf("meal #%d has no name", i+1))
		}
	}
	return problems
}

func missingMacros(m map[string]any) []string {
	var missing []string
	for _, k := range macroKeys {
		if v, ok := numberField(m, k); !ok || v < 0 {
			missing = append(missing, k)
		}
	}
	return missing
}

func checkMacros(doc Document, _ *Schedule) []string {
	var problems []string
	targets, _ := mapField(doc, "dailyTargets")
	if missing := missingMacros(targets); len(missing) > 0 {
		problems = append(problems, "dailyTargets lacks "+strings.Join(missing, ", "))
	}
	meals := mealsOf(doc)
	if len(meals) == 0 {
		problems = append(problems, "no meals carry per-meal macros")
	}
	for i, m := range meals {
		if missing := missingMacros(m); len(missing) > 0 {
			problems = append(problems, mealLabel(i, m)+" lacks "+strings.Join(missing, ", "))
		}
	}
	return problems
}

func mealWithRole(doc Document, role string) (map[string]any, bool) {
	for _, m := range mealsOf(doc) {
		if strings.EqualFold(textField(m, "role"), role) {
			return m, true
		}
	}
	return nil, false
}

func mealRoleCheck(role string) func(Document, *Schedule) []string {
	return func(doc Document, _ *Schedule) []string {
		if _, ok := mealWithRole(doc, role); !ok {
			return []string{fmt.Sprintf("no meal has role %q", role)}
		}
		return nil
	}
}

func checkPreSleepOptions(doc Document, _ *Schedule) []string {
	options, all := objects(doc, "preSleepOptions")
	if !all || len(options) != preSleepAlternatives {
		return []string{fmt.Sprintf("preSleepOptions must offer exactly %d alternatives, found %d", preSleepAlternatives, len(options))}
	}
	var problems []string
	for i, o := range options {
		if textField(o, "name") == "" {
			problems = append(problems, fmt.Sprintf("pre-sleep option #%d has no name", i+1))
		}
	}
	return problems
}

func checkDayVariants(doc Document, _ *Schedule) []string {
	variants, ok := mapField(doc, "dayVariants")
	if !ok {
		return []string{"dayVariants with training and rest entries is missing"}
	}
	var problems []string
	for _, key := range []string{"training", "rest"} {
		v, ok := mapField(variants, key)
		if !ok {
			problems = append(problems, fmt.Sprintf("dayVariants.%s is missing", key))
			continue
		}
		if kcal, ok := numberField(v, "calories"); !ok || kcal <= 0 {
			problems = append(problems, fmt.Sprintf("dayVariants.%s.calories must be a positive number", key))
		}
	}
	return problems
}

func checkHydration(doc Document, _ *Schedule) []string {
	h, _ := mapField(doc, "hydration")
	if liters, ok := numberField(h, "liters"); !ok || liters <= 0 {
		return []string{"hydration.liters must be a positive number"}
	}
	return nil
}

func nonEmptyListCheck(field, what string) func(Document, *Schedule) []string {
	return func(doc Document, _ *Schedule) []string {
		items, ok := sliceField(doc, field)
		if !ok || len(items) == 0 {
			return []string{fmt.Sprintf("%s (%s) is empty", what, field)}
		}
		return nil
	}
}

func checkSchedule(doc Document, sched *Schedule) []string {
	if sched == nil {
		return nil
	}
	var problems []string
	for i, m := range mealsOf(doc) {
		raw := textField(m, "time")
		t, ok := parseClock(raw)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s has no HH:MM time", mealLabel(i, m)))
			continue
		}
		if !sched.awake(t) {
			problems = append(problems, fmt.Sprintf("%s at %s falls outside the waking window %s-%s",
				mealLabel(i, m), raw, formatClock(sched.Wake), formatClock(sched.Sleep)))
		}
		if !sched.HasTraining {
			continue
		}
		switch strings.ToLower(textField(m, "role")) {
		case mealRolePreWorkout:
			if !sched.before(t, sched.Training) {
				problems = append(problems, fmt.Sprintf("pre-workout %s at %s is not before training at %s",
					mealLabel(i, m), raw, formatClock(sched.Training)))
			}
		case mealRolePostWorkout:
			if !sched.before(sched.Training, t) {
				problems = append(problems, fmt.Sprintf("post-workout %s at %s is not after training at %s",
					mealLabel(i, m), raw, formatClock(sched.Training)))
			}
		}
	}
	return problems
}

// --- mindset ---

func checkFocusAreas(doc Document, _ *Schedule) []string {
	items, _ := sliceField(doc, "focusAreas")
	n := 0
	for _, it := range items {
		if asText(it) != "" {
			n++
		}
	}
	if n == 0 {
		return []string{"focusAreas must list at least one area"}
	}
	return nil
}

func practicesOf(doc Document) []map[string]any {
	p, _ := objects(doc, "dailyPractices")
	return p
}

func checkDailyPractices(doc Document, _ *Schedule) []string {
	practices := practicesOf(doc)
	if len(practices) == 0 {
		return []string{"dailyPractices is empty"}
	}
	var problems []string
	for i, p := range practices {
		if textField(p, "name") == "" {
			problems = append(problems, fmt.Sprintf("practice #%d has no name", i+1))
		}
		if d, ok := numberField(p, "durationMinutes"); !ok || d <= 0 {
			problems = append(problems, fmt.Sprintf("practice #%d has no duration in minutes", i+1))
		}
	}
	return problems
}

func checkPracticeInstructions(doc Document, _ *Schedule) []string {
	practices := practicesOf(doc)
	if len(practices) == 0 {
		return []string{"no practices to check"}
	}
	var problems []string
	for i, p := range practices {
		if textField(p, "instructions") == "" {
			problems = append(problems, fmt.Sprintf("practice #%d has no instructions", i+1))
		}
	}
	return problems
}

func checkWeeklyThemes(doc Document, _ *Schedule) []string {
	themes, all := objects(doc, "weeklyThemes")
	if !all || len(themes) != mindsetThemeWeeks {
		return []string{fmt.Sprintf("weeklyThemes must have exactly %d weeks, found %d", mindsetThemeWeeks, len(themes))}
	}
	var problems []string
	for i, th := range themes {
		if textField(th, "theme") == "" {
			problems = append(problems, fmt.Sprintf("week %d has no theme", i+1))
		}
	}
	return problems
}

func checkJournalingPrompts(doc Document, _ *Schedule) []string {
	items, _ := sliceField(doc, "journalingPrompts")
	n := 0
	for _, it := range items {
		if asText(it) != "" {
			n++
		}
	}
	if n < minJournalingPrompts {
		return []string{fmt.Sprintf("at least %d journaling prompts are required, found %d", minJournalingPrompts, n)}
	}
	return nil
}

func checkMindsetRationale(doc Document, _ *Schedule) []string {
	if textField(doc, "rationale") != "" {
		return nil
	}
	if m, ok := mapField(doc, "rationale"); ok && len(m) > 0 {
		return nil
	}
	return []string{"rationale is missing"}
}
