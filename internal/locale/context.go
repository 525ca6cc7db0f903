package locale

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type ctxKey struct{}

// WithLanguage returns a context carrying tag for learner-facing text.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// FromContext returns the language stored in ctx, or Default.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return Default
}

// PrinterFor returns the catalog printer for the language in ctx.
func PrinterFor(ctx context.Context) *message.Printer {
	return Printer(FromContext(ctx))
}
