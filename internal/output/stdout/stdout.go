package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
)

// Output writes JSON-encoded canonical records, one per line.
type Output struct {
	enc *json.Encoder
}

// New creates a new stdout Output with optional pretty-printed JSON.
func New(pretty bool) *Output {
	return NewWriter(os.Stdout, pretty)
}

// NewWriter creates an Output that encodes to w instead of stdout.
func NewWriter(w io.Writer, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc}
}

func (o *Output) Write(_ context.Context, rec model.CanonicalRecord) error {
	if err := o.enc.Encode(output.ToJSON(rec)); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
