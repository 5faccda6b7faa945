// Task 3.1: enhancement domain types.
// Target profiles and levels are closed sets defined here at compile time;
// each carries the free-text instruction blocks the composer assembles into
// the system prompt.
package enhance

import (
	"errors"
	"time"
)

// ===== ERRORS =====

var (
	// ErrEmptyPrompt is returned when the original prompt is blank. Input
	// validation happens before the backend is touched.
	ErrEmptyPrompt = errors.New("original prompt is empty")

	// ErrBackendNotReady is returned when the inference backend cannot reach
	// a ready state for this request.
	ErrBackendNotReady = errors.New("inference backend not ready")
)

// ===== TARGET PROFILES =====

// TargetProfile names the external AI system the enhanced prompt is tailored
// for. Each profile carries its own prompting-idiom hints.
type TargetProfile string

const (
	TargetClaude  TargetProfile = "claude"
	TargetGPT     TargetProfile = "gpt"
	TargetGemini  TargetProfile = "gemini"
	TargetLocal   TargetProfile = "local"
	TargetGeneric TargetProfile = "generic"
)

type targetMeta struct {
	display string
	hints   string
}

var targetProfiles = map[TargetProfile]targetMeta{
	TargetClaude: {
		display: "Claude",
		hints: `Claude responds well to XML-style tags for delimiting sections (e.g. <context>, <instructions>, <example>).
Prefer explicit role framing and step-by-step reasoning requests.
State constraints positively ("do X") rather than only negatively.`,
	},
	TargetGPT: {
		display: "GPT",
		hints: `GPT models follow system-style directives and markdown structure well.
Use numbered steps for multi-part tasks and name the desired output format explicitly.
Front-load the most important instruction.`,
	},
	TargetGemini: {
		display: "Gemini",
		hints: `Gemini benefits from concise, direct instructions with clear section headers.
Avoid deeply nested conditionals; flatten the task into an ordered list.
Specify tone and audience explicitly.`,
	},
	TargetLocal: {
		display: "Local model",
		hints: `Small local models need short, unambiguous instructions.
Avoid long preambles; keep the task statement within the first two sentences.
Prefer a single concrete deliverable over multi-part requests.`,
	},
	TargetGeneric: {
		display: "Generic",
		hints: `Use clear, assistant-agnostic phrasing.
State the task, the context, the constraints, and the desired output format in that order.`,
	},
}

// ParseTarget maps a string to a TargetProfile, defaulting to TargetGeneric
// for unknown or empty input.
func ParseTarget(s string) TargetProfile {
	t := TargetProfile(s)
	if _, ok := targetProfiles[t]; ok {
		return t
	}
	return TargetGeneric
}

// DisplayName returns the human-readable label for the profile.
func (t TargetProfile) DisplayName() string {
	if m, ok := targetProfiles[t]; ok {
		return m.display
	}
	return targetProfiles[TargetGeneric].display
}

// Hints returns the profile's prompting-idiom hint block.
func (t TargetProfile) Hints() string {
	if m, ok := targetProfiles[t]; ok {
		return m.hints
	}
	return targetProfiles[TargetGeneric].hints
}

// Valid reports whether t is a known profile.
func (t TargetProfile) Valid() bool {
	_, ok := targetProfiles[t]
	return ok
}

// ===== ENHANCEMENT LEVELS =====

// Level is the intensity of rewriting applied to the original prompt.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelBalanced Level = "balanced"
	LevelMaximum  Level = "maximum"
)

type levelMeta struct {
	label        string
	description  string
	instructions string
}

var levels = map[Level]levelMeta{
	LevelMinimal: {
		label:       "Minimal",
		description: "Light touch: fix clarity issues, keep wording close to the original.",
		instructions: `ENHANCEMENT INTENSITY: MINIMAL
Make only light edits. Fix ambiguity and grammar, tighten wording.
Do not restructure the prompt or add new sections.
Keep the result close in length to the original.`,
	},
	LevelBalanced: {
		label:       "Balanced",
		description: "Moderate rewrite: add structure and key constraints without changing intent.",
		instructions: `ENHANCEMENT INTENSITY: BALANCED
Improve clarity and add structure where it helps.
Add missing context, constraints, and an explicit output format when the task implies one.
Moderate expansion is acceptable.`,
	},
	LevelMaximum: {
		label:       "Maximum",
		description: "Aggressive rewrite: full restructuring with explicit constraints, format, and examples.",
		instructions: `ENHANCEMENT INTENSITY: MAXIMUM
Rewrite thoroughly. Restructure into clearly delimited sections.
Add explicit constraints, a specified output format, and illustrative examples where useful.
Significant expansion is expected as long as the original intent is preserved.`,
	},
}

// ParseLevel maps a string to a Level, defaulting to LevelBalanced for
// unknown or empty input.
func ParseLevel(s string) Level {
	l := Level(s)
	if _, ok := levels[l]; ok {
		return l
	}
	return LevelBalanced
}

// Label returns the human-readable label for the level.
func (l Level) Label() string {
	if m, ok := levels[l]; ok {
		return m.label
	}
	return levels[LevelBalanced].label
}

// Description returns the one-line description for the level.
func (l Level) Description() string {
	if m, ok := levels[l]; ok {
		return m.description
	}
	return levels[LevelBalanced].description
}

// Instructions returns the level's intensity instruction block.
func (l Level) Instructions() string {
	if m, ok := levels[l]; ok {
		return m.instructions
	}
	return levels[LevelBalanced].instructions
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levels[l]
	return ok
}

// ===== TEMPLATES =====

// Template is a reusable base prompt pattern for a task category. The
// enhancement flow only reads Name, Description and BasePrompt; lifecycle
// lives in the template service.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	BasePrompt  string    `json:"base_prompt"`
	UsageCount  int       `json:"usage_count"`
	BuiltIn     bool      `json:"built_in"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ===== REQUEST / RESULT =====

// Request is a single enhancement request. Zero values for Target and Level
// resolve to TargetGeneric and LevelBalanced.
type Request struct {
	OriginalPrompt    string        `json:"original_prompt"`
	Target            TargetProfile `json:"target,omitempty"`
	Level             Level         `json:"level,omitempty"`
	TemplateID        string        `json:"template_id,omitempty"`
	AdditionalContext string        `json:"additional_context,omitempty"`
	SourceApp         string        `json:"source_app,omitempty"`
}

// Normalize resolves defaulted fields and returns the effective request.
func (r Request) Normalize() Request {
	if !r.Target.Valid() {
		r.Target = TargetGeneric
	}
	if !r.Level.Valid() {
		r.Level = LevelBalanced
	}
	return r
}

// Result is the outcome of one successful enhancement. Immutable once
// constructed; the history service persists it on the caller's behalf.
type Result struct {
	ID             string        `json:"id"`
	OriginalPrompt string        `json:"original_prompt"`
	EnhancedPrompt string        `json:"enhanced_prompt"`
	Target         TargetProfile `json:"target"`
	Level          Level         `json:"level"`
	TemplateID     string        `json:"template_id,omitempty"`
	InferenceMs    int64         `json:"inference_ms"`
	Tokens         int           `json:"tokens"`
	Improvements   []string      `json:"improvements"`
	SourceApp      string        `json:"source_app,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TokensPerSecond derives throughput from the timing fields, 0 when no time
// elapsed.
func (r Result) TokensPerSecond() float64 {
	if r.InferenceMs <= 0 {
		return 0
	}
	return float64(r.Tokens) * 1000 / float64(r.InferenceMs)
}
