package ocr

import (
	"context"
	"fmt"
)

// Ref points at an image to extract text from.
type Ref struct {
	URL string
	Key string
}

// Result is the extraction outcome for a single image.
type Result struct {
	Text     string
	Provider string
	Failed   bool
}

// Unavailable is the deterministic placeholder used when no extraction
// provider is configured or every provider failed before producing text.
const Unavailable = "extraction unavailable: no provider configured"

// Provider converts one image into machine text.
type Provider interface {
	Name() string
	ExtractText(ctx context.Context, ref Ref) (string, error)
}

// FailureText renders a per-image failure sentinel so extraction never
// surfaces an error for a single bad image.
func FailureText(err error) string {
	if err == nil {
		return "extraction failed"
	}
	return fmt.Sprintf("extraction failed: %s", err.Error())
}
