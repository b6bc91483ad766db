// Package captcha solves reCAPTCHA challenges through an external solving
// service.
package captcha

import (
	"context"
	"errors"
)

var (
	// ErrCaptchaUnsolved means the service gave up on the challenge or the
	// solve timed out. A later challenge may still succeed.
	ErrCaptchaUnsolved = errors.New("captcha: not solved")
	// ErrCaptchaAccount means the solver account cannot be used: bad key,
	// unknown key or no balance. Retrying will not help.
	ErrCaptchaAccount = errors.New("captcha: solver account rejected")
)

// Challenge identifies a reCAPTCHA v2 widget.
type Challenge struct {
	SiteKey string
	// PageURL is the page hosting the widget, usually the iframe's src.
	PageURL string
}

// Token is the g-recaptcha-response value proving a solve.
type Token string

// Solver solves a challenge. Implementations block until a token is
// available, the solve fails, or ctx is done.
type Solver interface {
	Solve(ctx context.Context, ch Challenge) (Token, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, ch Challenge) (Token, error)

func (f SolverFunc) Solve(ctx context.Context, ch Challenge) (Token, error) { return f(ctx, ch) }
