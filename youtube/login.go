package youtube

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"ytscrape/browser"
	"ytscrape/internal/retry"
)

// LoginState is a step of the sign-in flow.
type LoginState int

const (
	LoginIdle LoginState = iota
	LoginCredentials
	LoginAwaitingOperator
	LoginComplete
	LoginFailed
)

func (s LoginState) String() string {
	switch s {
	case LoginIdle:
		return "idle"
	case LoginCredentials:
		return "credentials"
	case LoginAwaitingOperator:
		return "awaiting-operator"
	case LoginComplete:
		return "complete"
	case LoginFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Credentials for the Google account used to sign in.
type Credentials struct {
	Email    string
	Password string
}

// Operator is the human who clears second-factor and bot checks.
type Operator interface {
	// Confirm blocks until the operator signals completion or ctx is done.
	Confirm(ctx context.Context, prompt string) error
}

// LineOperator prompts on Out and waits for a line on In.
type LineOperator struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan struct{}
	// err is set before lines is closed.
	err error
}

// Confirm writes prompt and waits for Enter. The reader is consumed by a
// single background goroutine so a canceled wait does not lose input.
func (o *LineOperator) Confirm(ctx context.Context, prompt string) error {
	o.once.Do(func() {
		o.lines = make(chan struct{})
		go func() {
			sc := bufio.NewScanner(o.In)
			for sc.Scan() {
				o.lines <- struct{}{}
			}
			o.err = sc.Err()
			if o.err == nil {
				o.err = io.EOF
			}
			close(o.lines)
		}()
	})
	if o.Out != nil {
		fmt.Fprint(o.Out, prompt+" ")
	}
	select {
	case _, ok := <-o.lines:
		if !ok {
			return o.err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OperatorFunc adapts a function to Operator.
type OperatorFunc func(ctx context.Context, prompt string) error

func (f OperatorFunc) Confirm(ctx context.Context, prompt string) error { return f(ctx, prompt) }

// LoginFlow signs a session in once. It is bound to a single session and is
// not safe for concurrent use.
type LoginFlow struct {
	Credentials Credentials
	// Operator confirms second-factor and bot checks. Run fails without one.
	Operator    Operator
	Policy      retry.Policy
	Logger      *slog.Logger

	state LoginState
}

// OperatorPrompt is shown while waiting for the operator.
const OperatorPrompt = "Press Enter once authentication is complete..."

// State reports where the flow is.
func (l *LoginFlow) State() LoginState { return l.state }

// LoggedIn reports whether the flow completed.
func (l *LoginFlow) LoggedIn() bool { return l.state == LoginComplete }

// Run signs in on drv unless this flow already completed. The page must
// show the site header (any youtube.com page does).
func (l *LoginFlow) Run(ctx context.Context, drv browser.Driver) error {
	if l.state == LoginComplete {
		return nil
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if l.Credentials.Email == "" || l.Credentials.Password == "" {
		l.state = LoginFailed
		return ErrNoCredentials
	}
	if l.Operator == nil {
		l.state = LoginFailed
		return fmt.Errorf("%w: no operator to confirm authentication", ErrLoginAborted)
	}

	l.state = LoginCredentials
	logger.Info("signing in")
	steps := []struct {
		name string
		sel  string
		text string
	}{
		{"click sign-in", SelSignInButton, ""},
		{"enter email", SelEmailInput, l.Credentials.Email},
		{"submit email", SelEmailNext, ""},
		{"enter password", SelPasswordInput, l.Credentials.Password},
		{"submit password", SelPasswordNext, ""},
	}
	for _, st := range steps {
		err := l.Policy.Do(ctx, st.name, func(ctx context.Context) error {
			el, err := drv.WaitClickable(ctx, st.sel)
			if err != nil {
				return err
			}
			if st.text != "" {
				return el.SendKeys(ctx, st.text)
			}
			return el.Click(ctx)
		})
		if err != nil {
			l.state = LoginFailed
			return fmt.Errorf("%w: %s: %w", ErrLoginFailed, st.name, err)
		}
	}

	l.state = LoginAwaitingOperator
	logger.Info("waiting for operator to finish authentication")
	if err := l.Operator.Confirm(ctx, OperatorPrompt); err != nil {
		l.state = LoginFailed
		return fmt.Errorf("%w: %w", ErrLoginAborted, err)
	}

	l.state = LoginComplete
	logger.Info("signed in")
	return nil
}
