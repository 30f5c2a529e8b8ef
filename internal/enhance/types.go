// Package enhance is the boundary to the generative-image collaborator. The
// pipeline treats it as an opaque transform: image plus parameters in, image
// or error out.
package enhance

import "context"

// Request describes one enhancement call.
type Request struct {
	ItemID    string
	SourceURL string

	Prompt         string
	NegativePrompt string
	Style          string
	// Faithfulness in [0,1]: 1 keeps the product untouched, 0 allows free
	// restyling.
	Faithfulness float64
	AspectRatio  string
	TextOverlay  string
}

// Result is a stored, URL-addressable enhanced image.
type Result struct {
	URL  string
	MIME string
}

// Enhancer transforms a source image according to the request parameters.
type Enhancer interface {
	Enhance(ctx context.Context, req Request) (*Result, error)
}
