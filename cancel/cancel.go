// Package cancel implements generation-based cancellation for pipeline work.
//
// The shell bumps a shared Counter whenever the user supersedes an in-flight
// edit (a new slider value, a new file selected). Work started against the
// previous generation observes the bump at its next checkpoint and abandons
// itself, so stale renders never overwrite fresh ones.
package cancel

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by Token.Err when the work's generation has
// been superseded.
var ErrCancelled = errors.New("cancel: load cancelled")

// Counter is a monotonically increasing generation counter shared between
// the shell and in-flight pipeline work.
//
// Counter is safe for concurrent use. The zero value is ready to use.
type Counter struct {
	v atomic.Uint64
}

// Next advances the generation, invalidating all outstanding tokens, and
// returns a token bound to the new generation.
func (c *Counter) Next() Token {
	return Token{c: c, generation: c.v.Add(1)}
}

// Current returns a token bound to the current generation without
// advancing it.
func (c *Counter) Current() Token {
	return Token{c: c, generation: c.v.Load()}
}

// Token identifies one generation of work.
//
// The zero Token belongs to no counter and is never cancelled; stages that
// receive it simply run to completion.
type Token struct {
	c          *Counter
	generation uint64
}

// Err returns ErrCancelled if the token's generation has been superseded,
// nil otherwise. Stages call Err at checkpoints (between decode phases,
// per row chunk) and propagate the error up.
func (t Token) Err() error {
	if t.c == nil {
		return nil
	}
	if t.c.v.Load() != t.generation {
		return ErrCancelled
	}
	return nil
}

// Cancelled reports whether the token's generation has been superseded.
func (t Token) Cancelled() bool {
	return t.Err() != nil
}
