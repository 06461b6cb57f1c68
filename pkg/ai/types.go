package ai

import "context"

// Backend is a text-completion service used to grade answers. It receives a
// grading prompt and returns the model's raw textual reply; parsing is the
// caller's concern.
type Backend interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}
