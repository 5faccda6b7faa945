package enhance

import (
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		raw    string
		target TargetProfile
		want   string
	}{
		{"trims whitespace", "  \n do the thing \n ", TargetGeneric, "do the thing"},
		{"strips prefix and quotes", `Enhanced prompt: "Do X."`, TargetGeneric, "Do X."},
		{"strips prefix case-insensitive", "HERE IS THE ENHANCED PROMPT: result", TargetGeneric, "result"},
		{"strips bolded prefix", "**Enhanced Prompt:** result", TargetGeneric, "result"},
		{"unwraps outer quotes", `"quoted prompt"`, TargetGeneric, "quoted prompt"},
		{"keeps interior quotes", `say "hello" and "bye"`, TargetGeneric, `say "hello" and "bye"`},
		{"claude tag spacing", "< instructions >do it< /instructions >", TargetClaude, "<instructions>do it</instructions>"},
		{"non-claude passes through", "a < b and b > a", TargetGeneric, "a < b and b > a"},
		{"clean text untouched", "already clean", TargetGeneric, "already clean"},
		{"empty input", "", TargetGeneric, ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tc.raw, tc.target); got != tc.want {
				t.Errorf("Clean(%q) = %q; want %q", tc.raw, got, tc.want)
			}
		})
	}
}

// Clean must be idempotent on already-clean text.
func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"write a short story",
		"multi\nline\ntext",
		`text with "interior" quotes`,
		"",
	}
	for _, x := range inputs {
		once := Clean(x, TargetGeneric)
		if twice := Clean(once, TargetGeneric); twice != once {
			t.Errorf("Clean not idempotent for %q: first %q then %q", x, once, twice)
		}
	}
}

func TestAnalyzeImprovements_IdenticalInputsEmpty(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"fix typo",
		"You must format this as JSON, for example: {}",
		"",
	}
	for _, x := range inputs {
		got := AnalyzeImprovements(x, x)
		if len(got) != 0 {
			t.Errorf("AnalyzeImprovements(%q, same) = %v; want empty", x, got)
		}
	}
}

func TestAnalyzeImprovements_ConstraintsAndExamples(t *testing.T) {
	t.Parallel()

	got := AnalyzeImprovements("fix typo", "You must fix this typo precisely, for example: ...")
	if !containsTag(got, tagConstraints) {
		t.Errorf("tags = %v; want %q included", got, tagConstraints)
	}
	if !containsTag(got, tagExamples) {
		t.Errorf("tags = %v; want %q included", got, tagExamples)
	}
}

func TestAnalyzeImprovements_Thresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		original string
		enhanced string
		want     []string
	}{
		{
			name:     "length exactly 1.5x is not detail",
			original: "1234",   // 4 chars
			enhanced: "123456", // 6 chars, not strictly greater than 1.5×4
			want:     []string{},
		},
		{
			name:     "length above 1.5x is detail",
			original: "1234",
			enhanced: "1234567",
			want:     []string{tagDetail},
		},
		{
			name:     "newline added is structure",
			original: "one line task",
			enhanced: "first line\nsecond",
			want:     []string{tagStructure},
		},
		{
			name:     "newline in both is not structure",
			original: "a\nb",
			enhanced: "c\nd",
			want:     []string{},
		},
		{
			name:     "equal constraint counts is not constraints",
			original: "you must do it",
			enhanced: "one must act now",
			want:     []string{},
		},
		{
			name:     "format words added",
			original: "list the cities please now",
			enhanced: "list the cities as bullets", // "bullet" substring match
			want:     []string{tagFormat},
		},
		{
			name:     "format word already present",
			original: "format the cities nicely",
			enhanced: "format the cities as json markdown",
			want:     []string{},
		},
		{
			name:     "example marker e.g.",
			original: "please name some common fruits",
			enhanced: "please name some fruits, e.g. apples",
			want:     []string{tagExamples},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := AnalyzeImprovements(tc.original, tc.enhanced)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("AnalyzeImprovements(%q, %q) = %v; want %v", tc.original, tc.enhanced, got, tc.want)
			}
		})
	}
}

// Tags come back in a fixed priority order regardless of text order.
func TestAnalyzeImprovements_FixedOrder(t *testing.T) {
	t.Parallel()

	original := "hi"
	enhanced := "Such as this, e.g. in json format, you must write:\na long structured answer"
	got := AnalyzeImprovements(original, enhanced)

	want := []string{tagDetail, tagStructure, tagConstraints, tagFormat, tagExamples}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v; want all five in priority order %v", got, want)
	}
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
