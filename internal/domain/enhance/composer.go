// Task 3.2: prompt composer.
// Pure functions that turn a structured enhancement request into the exact
// text sent to the inference backend. No side effects; deterministic for
// identical inputs.
package enhance

import "strings"

// corePrinciples is the fixed engineering block shared by every request.
const corePrinciples = `You are an expert prompt engineer. Rewrite the user's prompt so an AI assistant produces a better result.

Apply these principles:
- Specificity: replace vague requests with concrete, measurable asks.
- Structure: organize multi-part tasks into clear sections or steps.
- Context: include background the assistant needs but the user left implicit.
- Constraints: state what must and must not appear in the answer.
- Format: name the desired output format when the task implies one.
- Examples: add a short illustrative example when it clarifies the task.

Hard rules:
- Preserve the user's original intent exactly. Never change what is being asked for.
- Output ONLY the rewritten prompt. No meta-commentary, no explanation, no preamble.`

// ComposeSystem builds the system block from the fixed principles, the
// level's intensity instructions, the target's hints, and the optional
// template. Blank blocks are omitted; present blocks are joined with a blank
// line.
func ComposeSystem(target TargetProfile, level Level, tmpl *Template) string {
	blocks := []string{
		corePrinciples,
		level.Instructions(),
		targetBlock(target),
	}
	if tmpl != nil {
		blocks = append(blocks, templateBlock(tmpl))
	}
	return joinBlocks(blocks)
}

// ComposeFull appends the user's text to the system block with the literal
// section cues the model is trained to respect. The trailing "ENHANCED
// PROMPT:" cue signals the model to emit only the transformed text.
func ComposeFull(systemPrompt, originalPrompt, additionalContext string) string {
	blocks := []string{
		systemPrompt,
		"ORIGINAL PROMPT:\n" + originalPrompt,
	}
	if strings.TrimSpace(additionalContext) != "" {
		blocks = append(blocks, "ADDITIONAL CONTEXT:\n"+additionalContext)
	}
	blocks = append(blocks, "ENHANCED PROMPT:")
	return joinBlocks(blocks)
}

// Compose is the convenience composition of ComposeSystem and ComposeFull
// for a normalized request with an already resolved template.
func Compose(req Request, tmpl *Template) string {
	system := ComposeSystem(req.Target, req.Level, tmpl)
	return ComposeFull(system, req.OriginalPrompt, req.AdditionalContext)
}

func targetBlock(target TargetProfile) string {
	return "TARGET: " + target.DisplayName() + "\n" + target.Hints()
}

func templateBlock(tmpl *Template) string {
	var b strings.Builder
	b.WriteString("TEMPLATE: " + tmpl.Name)
	if strings.TrimSpace(tmpl.Description) != "" {
		b.WriteString("\n" + tmpl.Description)
	}
	if strings.TrimSpace(tmpl.BasePrompt) != "" {
		b.WriteString("\nBase pattern:\n" + tmpl.BasePrompt)
	}
	return b.String()
}

// joinBlocks joins non-blank blocks with a blank-line separator.
func joinBlocks(blocks []string) string {
	kept := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		if strings.TrimSpace(blk) == "" {
			continue
		}
		kept = append(kept, blk)
	}
	return strings.Join(kept, "\n\n")
}
