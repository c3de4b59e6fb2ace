package supabase

import (
	"fmt"
	"strings"
)

// Literal renders a vector in the bracketed text form PostgREST passes
// through to a pgvector column, e.g. "[0.10000000,-0.25000000]".
// Components are fixed to 8 decimal places so the same vector always
// produces the same literal.
func Literal(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec)*12 + 2)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.8f", v)
	}
	b.WriteByte(']')
	return b.String()
}
