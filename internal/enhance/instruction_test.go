package enhance

import (
	"strings"
	"testing"
)

func TestBuildInstructionFaithfulnessBands(t *testing.T) {
	strict := BuildInstruction(Request{Faithfulness: 0.9})
	if !strings.Contains(strict, "only adjust lighting and background") {
		t.Fatalf("strict instruction = %q", strict)
	}
	mid := BuildInstruction(Request{Faithfulness: 0.5})
	if !strings.Contains(mid, "Preserve the product shape") {
		t.Fatalf("mid instruction = %q", mid)
	}
	loose := BuildInstruction(Request{Faithfulness: 0.1})
	if !strings.Contains(loose, "Creative restyling") {
		t.Fatalf("loose instruction = %q", loose)
	}
}

func TestBuildInstructionIncludesOptionalParts(t *testing.T) {
	got := BuildInstruction(Request{
		Prompt:         "Make it look festive",
		Style:          "neon",
		NegativePrompt: "people, hands",
		TextOverlay:    "SALE -30%",
		AspectRatio:    "9:16",
		Faithfulness:   0.5,
	})
	for _, want := range []string{"Make it look festive", "neon", "Avoid: people, hands.", "SALE -30%", "9:16"} {
		if !strings.Contains(got, want) {
			t.Fatalf("instruction %q missing %q", got, want)
		}
	}
}
