package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"alcyxob/fitness-protocols/internal/domain"
)

// DefaultMaxDocumentBytes bounds the document embedded in correction and audit prompts.
const DefaultMaxDocumentBytes = 12000

const truncationMarker = "\n...[truncated]"

// PromptBuilder produces the opaque system and user prompts for one protocol type.
type PromptBuilder interface {
	Build(t domain.ProtocolType, uc UserContext, adjustments string) (system, user string, err error)
}

const workoutSystemPrompt = `You are a strength and conditioning coach writing a four-week training block.

You MUST output ONLY a JSON object with this shape:
{
  "title": "...",
  "sessions": [
    {
      "name": "A", "focus": "...", "durationMinutes": 60, "calories": 400,
      "exercises": [
        {"name": "...", "sets": 4, "reps": "8-10", "rest": "90s",
         "technique": "...", "initialLoad": "..."}
      ]
    }
  ],
  "weeklyVolume": {"chest": 12, "back": 14},
  "progression": [
    {"week": 1, "deload": false, "description": "..."},
    {"week": 2, "deload": false, "description": "..."},
    {"week": 3, "deload": false, "description": "..."},
    {"week": 4, "deload": true, "volumeReductionPercent": 35, "description": "..."}
  ],
  "rationale": {"volume": "...", "split": "...", "progression": "..."}
}

Every exercise needs a technique note and an initial load suggestion.`

const nutritionSystemPrompt = `You are a sports nutritionist writing a daily meal plan.

You MUST output ONLY a JSON object with this shape:
{
  "title": "...",
  "dailyTargets": {"calories": 2400, "protein": 160, "carbs": 260, "fat": 70},
  "meals": [
    {"name": "...", "time": "07:30", "role": "breakfast|pre_workout|post_workout|...",
     "calories": 500, "protein": 35, "carbs": 60, "fat": 12, "foods": ["..."]}
  ],
  "preSleepOptions": [{"name": "..."}, {"name": "..."}, {"name": "..."}],
  "dayVariants": {"training": {"calories": 2500}, "rest": {"calories": 2200}},
  "hydration": {"liters": 3},
  "shoppingList": ["..."],
  "substitutions": [{"from": "...", "to": "..."}]
}

Meal times must fit the user's wake, training and sleep times.`

const mindsetSystemPrompt = `You are a performance psychologist writing a four-week mindset program.

You MUST output ONLY a JSON object with this shape:
{
  "title": "...",
  "focusAreas": ["..."],
  "dailyPractices": [{"name": "...", "durationMinutes": 10, "instructions": "..."}],
  "weeklyThemes": [{"week": 1, "theme": "..."}, {"week": 2, "theme": "..."},
                   {"week": 3, "theme": "..."}, {"week": 4, "theme": "..."}],
  "journalingPrompts": ["...", "...", "..."],
  "rationale": "..."
}`

const userPromptTemplate = `Intake answers:
{{.Context}}
{{- if .Adjustments}}

Adjustments requested by the coach:
{{.Adjustments}}
{{- end}}`

const correctionPromptTemplate = `{{.Original}}

Your previous answer failed these checks:
{{range .Failed}}- {{.}}
{{end}}
Details:
{{range .Errors}}- {{.}}
{{end}}
Previous answer:
{{.Document}}

Return a COMPLETE replacement JSON document that fixes every failed check. Do not return a diff.`

const auditSystemPrompt = `You are a senior reviewer grading a {{.Type}} protocol that has already been delivered.

You MUST output ONLY a JSON object:
{"criteria": {"<criterion>": true|false}, "issues": ["..."], "correctionsApplied": ["..."]}

Grade exactly these criteria:
{{range .Criteria}}- {{.Name}}: {{.Description}}
{{end}}`

const auditUserPromptTemplate = `Intake answers:
{{.Context}}

Protocol:
{{.Document}}`

var (
	userTmpl        = template.Must(template.New("user").Parse(userPromptTemplate))
	correctionTmpl  = template.Must(template.New("correction").Parse(correctionPromptTemplate))
	auditSystemTmpl = template.Must(template.New("audit_system").Parse(auditSystemPrompt))
	auditUserTmpl   = template.Must(template.New("audit_user").Parse(auditUserPromptTemplate))
)

// TemplatePrompts renders a fixed system prompt per type and a shared user template.
type TemplatePrompts struct {
	system map[domain.ProtocolType]string
}

func NewTemplatePrompts() *TemplatePrompts {
	return &TemplatePrompts{system: map[domain.ProtocolType]string{
		domain.ProtocolWorkout:   workoutSystemPrompt,
		domain.ProtocolNutrition: nutritionSystemPrompt,
		domain.ProtocolMindset:   mindsetSystemPrompt,
	}}
}

func (p *TemplatePrompts) Build(t domain.ProtocolType, uc UserContext, adjustments string) (string, string, error) {
	system, ok := p.system[t]
	if !ok {
		return "", "", fmt.Errorf("no prompt for protocol type %q", t)
	}
	user, err := render(userTmpl, map[string]any{
		"Context":     contextJSON(uc),
		"Adjustments": strings.TrimSpace(adjustments),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// CorrectionPrompt asks for a full replacement of doc, listing what failed.
func CorrectionPrompt(original string, doc Document, res ValidationResult, maxBytes int) string {
	out, err := render(correctionTmpl, map[string]any{
		"Original": original,
		"Failed":   res.FailedCriteria,
		"Errors":   res.Errors,
		"Document": Truncate(doc.JSON(), maxBytes),
	})
	if err != nil {
		// The template only ranges over strings; fall back to a flat message.
		return fmt.Sprintf("%s\n\nFix: %s\n\n%s", original, strings.Join(res.FailedCriteria, ", "), Truncate(doc.JSON(), maxBytes))
	}
	return out
}

func auditPrompts(t domain.ProtocolType, criteria []AuditCriterion, doc Document, uc UserContext, maxBytes int) (string, string, error) {
	system, err := render(auditSystemTmpl, map[string]any{"Type": t, "Criteria": criteria})
	if err != nil {
		return "", "", err
	}
	user, err := render(auditUserTmpl, map[string]any{
		"Context":  contextJSON(uc),
		"Document": Truncate(doc.JSON(), maxBytes),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Truncate cuts s to at most maxBytes without splitting a UTF-8 sequence.
// A non-positive maxBytes disables truncation.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

func contextJSON(uc UserContext) string {
	if len(uc) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(uc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
