package generation

import (
	"strings"
	"testing"
)

func TestPrimaryPromptMaterialClause(t *testing.T) {
	plain := PrimaryPrompt("")
	if strings.Contains(plain, "Material reference") {
		t.Fatal("material clause present without a material")
	}
	withMaterial := PrimaryPrompt("leather-03")
	if !strings.Contains(withMaterial, "leather-03") {
		t.Fatal("material id missing from prompt")
	}
	if !strings.HasPrefix(withMaterial, plain) {
		t.Fatal("material clause must extend the base instruction")
	}
}

func TestComposedPromptAvoidsSourceVocabulary(t *testing.T) {
	got := strings.ToLower(ComposedPrompt("low-top silhouette with a gum sole", "mesh-21"))
	for _, banned := range []string{"sketch", "drawing", "illustration"} {
		if strings.Contains(got, banned) {
			t.Fatalf("composed prompt contains %q", banned)
		}
	}
	if !strings.Contains(got, "low-top silhouette with a gum sole") {
		t.Fatal("description missing from composed prompt")
	}
	if !strings.Contains(got, "mesh-21") {
		t.Fatal("material id missing from composed prompt")
	}
	if !strings.Contains(got, "white background") {
		t.Fatal("framing missing from composed prompt")
	}
}

func TestComposedPromptWithoutMaterial(t *testing.T) {
	got := ComposedPrompt("high-top boot", "")
	if strings.Contains(got, "material") {
		t.Fatalf("material clause present without a material: %q", got)
	}
}

func TestDescribeInstructionBansSourceVocabulary(t *testing.T) {
	if !strings.Contains(DescribeInstruction, "Do not use the words") {
		t.Fatal("instruction must ban source-artwork vocabulary")
	}
}
