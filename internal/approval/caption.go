package approval

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storybot/internal/domain"
)

var titler = cases.Title(language.English)

// ComposeCaption builds the published story caption. An explicit caption on
// the item wins; otherwise one is assembled from the product descriptors.
func ComposeCaption(item *domain.QueueItem) string {
	if caption := strings.TrimSpace(item.Caption); caption != "" {
		return caption
	}
	parts := []string{}
	if product := strings.TrimSpace(item.Product); product != "" {
		parts = append(parts, titler.String(product))
	}
	if category := strings.TrimSpace(item.Category); category != "" {
		parts = append(parts, titler.String(category))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " · ")
}

// promptCaption is the reviewer-facing text on the approval photo.
func promptCaption(item *domain.QueueItem) string {
	var b strings.Builder
	b.WriteString("Story ready for review\n")
	if product := strings.TrimSpace(item.Product); product != "" {
		fmt.Fprintf(&b, "Product: %s\n", titler.String(product))
	}
	if category := strings.TrimSpace(item.Category); category != "" {
		fmt.Fprintf(&b, "Category: %s\n", titler.String(category))
	}
	fmt.Fprintf(&b, "Mode: %s\n", item.Mode)
	if item.Mode != domain.ModeImmediate && item.TargetAt != nil {
		fmt.Fprintf(&b, "Target: %s\n", item.TargetAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Item: %s", shortID(item.ID))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
