// Package engine defines the translation engine capability and its
// offline adapter. The engine is a black box: text in, translated text
// out, with a per-language-pair availability check. Nothing in this
// package knows about CSV rows, columns, or markup.
package engine

import (
	"context"
	"fmt"
)

// Engine is the translation capability. Implementations must be safe to
// use from a single worker goroutine; workers never share one instance.
type Engine interface {
	// Translate translates text from src to tgt. An error applies to this
	// call only; callers decide whether to retry, degrade, or abort.
	Translate(ctx context.Context, text, src, tgt string) (string, error)
}

// Factory creates one Engine instance. Each worker calls it lazily on its
// first batch and caches the result for the rest of the job.
type Factory func() (Engine, error)

// PairError reports that no model is installed for a language pair. This
// is fatal for the whole job: no row can be meaningfully processed.
type PairError struct {
	Src, Tgt string
}

func (e *PairError) Error() string {
	return fmt.Sprintf("translation unavailable: no installed model for %s -> %s", e.Src, e.Tgt)
}
