package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ytscrape/browser"
	"ytscrape/captcha"
	"ytscrape/internal/retry"
)

// DefaultSiteKey is the public reCAPTCHA site key of the email reveal widget.
const DefaultSiteKey = "6Lf39AMTAAAAALPbLZdcrWDa8Ygmgk_fmGmrlRog"

// Details is the outcome of reading a channel's About panel.
type Details struct {
	ContactInfo
	// EmailRevealed is set when the reveal flow ran and its captcha was solved.
	EmailRevealed bool
	// Warnings lists non-fatal problems, such as an unsolved captcha.
	Warnings []string
}

// DetailsExtractor reads contact info from the channel page currently loaded.
type DetailsExtractor struct {
	// Solver handles the captcha gating the email address. Nil skips the
	// reveal and records a warning.
	Solver  captcha.Solver
	SiteKey string
	Policy  retry.Policy
	Logger  *slog.Logger
}

// Extract opens the About panel, reveals the email when offered, and parses
// the info table. A failed captcha is reported in Warnings, never as an error.
func (x *DetailsExtractor) Extract(ctx context.Context, drv browser.Driver) (*Details, error) {
	logger := x.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := x.click(ctx, drv, "open about panel", SelDescriptionMore); err != nil {
		return nil, err
	}

	out := &Details{}
	revealed, warn, err := x.revealEmail(ctx, drv, logger)
	if err != nil {
		return nil, err
	}
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
	}

	html, err := retry.Value(ctx, x.Policy, "read info table", func(ctx context.Context) (string, error) {
		el, err := drv.WaitPresent(ctx, SelAdditionalInfo)
		if err != nil {
			return "", err
		}
		return el.OuterHTML(ctx)
	})
	if err != nil {
		return nil, err
	}

	info, err := ParseContactTable(html, revealed)
	switch {
	case errors.Is(err, ErrNoContactInfo):
		out.Warnings = append(out.Warnings, err.Error())
	case err != nil:
		return nil, err
	}
	out.ContactInfo = info
	out.EmailRevealed = revealed && info.Email != ""
	return out, nil
}

// revealEmail runs the "View email address" flow when the button exists.
// revealed reports whether the captcha token was injected and submitted.
func (x *DetailsExtractor) revealEmail(ctx context.Context, drv browser.Driver, logger *slog.Logger) (revealed bool, warning string, err error) {
	if err := x.click(ctx, drv, "view email", SelViewEmail); err != nil {
		if errors.Is(err, browser.ErrElementTimeout) {
			logger.Debug("no email reveal offered")
			return false, "", nil
		}
		return false, "", err
	}

	frame, err := retry.Value(ctx, x.Policy, "find captcha", func(ctx context.Context) (browser.Element, error) {
		return drv.WaitPresent(ctx, SelRecaptchaFrame)
	})
	if err != nil {
		if errors.Is(err, browser.ErrElementTimeout) {
			return false, fmt.Sprintf("%v: widget not found", captcha.ErrCaptchaUnsolved), nil
		}
		return false, "", err
	}
	pageURL, _, err := frame.Attribute(ctx, "src")
	if err != nil {
		return false, "", err
	}

	if x.Solver == nil {
		return false, fmt.Sprintf("%v: no solver configured", captcha.ErrCaptchaUnsolved), nil
	}
	siteKey := x.SiteKey
	if siteKey == "" {
		siteKey = DefaultSiteKey
	}

	solved := true
	tok, err := x.Solver.Solve(ctx, captcha.Challenge{SiteKey: siteKey, PageURL: pageURL})
	if err != nil {
		if ctx.Err() != nil {
			return false, "", fmt.Errorf("%w: %w", browser.ErrSessionTerminated, err)
		}
		logger.Warn("captcha not solved", slog.Any("error", err))
		warning = fmt.Sprintf("%v", err)
		if !errors.Is(err, captcha.ErrCaptchaUnsolved) {
			warning = fmt.Sprintf("%v: %v", captcha.ErrCaptchaUnsolved, err)
		}
		solved = false
	} else {
		err = x.Policy.Do(ctx, "inject captcha token", func(ctx context.Context) error {
			return drv.SetValue(ctx, SelRecaptchaAnswer, string(tok))
		})
		if err != nil {
			return false, "", err
		}
	}

	// The form is submitted either way; an unanswered widget leaves the
	// address hidden but the rest of the table readable.
	if err := x.click(ctx, drv, "submit reveal", SelSubmitButton); err != nil {
		if solved || !errors.Is(err, browser.ErrElementTimeout) {
			return false, warning, err
		}
	}
	return solved, warning, nil
}

func (x *DetailsExtractor) click(ctx context.Context, drv browser.Driver, name, sel string) error {
	return x.Policy.Do(ctx, name, func(ctx context.Context) error {
		el, err := drv.WaitClickable(ctx, sel)
		if err != nil {
			return err
		}
		return el.Click(ctx)
	})
}
