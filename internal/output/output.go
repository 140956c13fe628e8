package output

import (
	"context"

	"github.com/crimson-sun/combatlog/internal/model"
)

// Output defines the interface for canonical record destinations.
// Close commits everything written.
type Output interface {
	Write(ctx context.Context, rec model.CanonicalRecord) error
	Close() error
}

// Aborter is implemented by outputs that can discard what has been written
// instead of committing it.
type Aborter interface {
	Abort() error
}

// Abort discards o's pending output when it supports that, and otherwise
// closes it.
func Abort(o Output) error {
	if a, ok := o.(Aborter); ok {
		return a.Abort()
	}
	return o.Close()
}
