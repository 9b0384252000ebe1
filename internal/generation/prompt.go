package generation

import (
	"fmt"
	"strings"
)

const primaryInstruction = `Transform the attached concept sketch into a photorealistic product photograph of a single shoe.
Show the same shoe in exactly three views arranged side by side: a three-quarter view, a frontal view and a lateral view.
Pure white background, studio lighting, catalog framing. No text, no watermark, no people.`

const primaryMaterialClause = `
Apply the material shown in the second attached image to the shoe upper. Material reference: %s.`

// DescribeInstruction is the vision instruction used on the fallback path.
// The downstream image model only ever sees the resulting text, so the
// description must read like a finished product, not like source artwork.
const DescribeInstruction = `You are looking at a concept image of a shoe.
Produce a precise technical description of the shoe: silhouette, toe shape, sole profile, panel layout, lacing, stitching and any visible material or texture.
Describe it as a finished physical product. Do not use the words sketch, drawing or illustration.
Respond with the description only, no preamble.`

// PrimaryPrompt builds the instruction for the single multimodal generation
// call. The material clause is only added when a material reference image
// accompanies the request.
func PrimaryPrompt(materialID string) string {
	if materialID == "" {
		return primaryInstruction
	}
	return primaryInstruction + fmt.Sprintf(primaryMaterialClause, materialID)
}

// ComposedPrompt combines the vision description with fixed framing for the
// text-only fallback generator. The static text deliberately avoids any
// source-artwork vocabulary so the second model renders a product photo.
func ComposedPrompt(description, materialID string) string {
	var b strings.Builder
	b.WriteString("A photorealistic catalog photograph of a single shoe with the following design: ")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\nShow the same shoe in exactly three views arranged side by side: a three-quarter view, a frontal view and a lateral view.")
	b.WriteString("\nPure white background, studio lighting, crisp product framing. No text, no watermark, no people.")
	if materialID != "" {
		fmt.Fprintf(&b, "\nThe shoe upper is finished in material %s.", materialID)
	}
	return b.String()
}
