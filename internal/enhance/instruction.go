package enhance

import (
	"fmt"
	"strings"
)

// BuildInstruction renders the request parameters as the editing instruction
// sent alongside the source image.
func BuildInstruction(req Request) string {
	parts := []string{}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		parts = append(parts, prompt)
	} else {
		parts = append(parts, "Edit this retail product photo into a polished story-ready shot.")
	}
	if style := strings.TrimSpace(req.Style); style != "" {
		parts = append(parts, "Visual style: "+style+".")
	}
	switch {
	case req.Faithfulness >= 0.75:
		parts = append(parts, "Keep the product exactly as photographed; only adjust lighting and background.")
	case req.Faithfulness >= 0.4:
		parts = append(parts, "Preserve the product shape and proportions while improving the scene.")
	default:
		parts = append(parts, "Creative restyling is allowed as long as the product stays recognizable.")
	}
	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		parts = append(parts, "Avoid: "+negative+".")
	}
	if overlay := strings.TrimSpace(req.TextOverlay); overlay != "" {
		parts = append(parts, fmt.Sprintf("Render the text %q as a clean overlay.", overlay))
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		parts = append(parts, "Compose for a "+aspect+" frame.")
	}
	parts = append(parts, "No blur, no artifacts, no distorted details.")
	return strings.Join(parts, " ")
}
