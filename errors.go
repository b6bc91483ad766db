package ytscrape

import (
	"errors"

	"ytscrape/browser"
	"ytscrape/captcha"
	"ytscrape/harvest"
	ythttp "ytscrape/http"
	"ytscrape/internal/retry"
	"ytscrape/storage"
	"ytscrape/youtube"
)

// Error handling types exported for library users.
//
// Exported error types from sub-packages:
//
// From browser package:
//   - browser.ErrSessionTerminated: The session cannot be driven any more
//   - browser.ErrElementTimeout: A selector did not match in time
//   - browser.TransientUIError: The page changed under an action
//
// From harvest package:
//   - harvest.ErrHarvestIncomplete: The scroll loop stopped at a ceiling
//   - harvest.IncompleteError: Carries the partial result
//
// From youtube package:
//   - youtube.ErrInvalidURL, youtube.ErrUnsupportedTab: Bad channel input
//   - youtube.ErrNoCredentials, youtube.ErrLoginFailed, youtube.ErrLoginAborted: Sign-in
//   - youtube.ErrNoContactInfo: The About panel had no contact table
//   - youtube.ScrapeError: A channel scrape failed at a stage
//
// From captcha package:
//   - captcha.ErrCaptchaUnsolved: No token within the timeout
//   - captcha.ErrCaptchaAccount: The solver rejected the API key or balance
//
// From storage package:
//   - storage.ErrNotFound, storage.ErrAlreadyExists, storage.ErrInvalidInput
//   - storage.ErrStorageCorrupt, storage.ErrLockTimeout
//   - storage.StorageError: General storage operation error

// Type aliases for convenient error handling.
type (
	// ScrapeError wraps a failed channel scrape.
	ScrapeError = youtube.ScrapeError
	// TransientUIError wraps a retryable browser action failure.
	TransientUIError = browser.TransientUIError
	// IncompleteError reports a harvest stopped at a ceiling.
	IncompleteError = harvest.IncompleteError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// HTTPError is a non-success response from the captcha service.
	HTTPError = ythttp.HTTPError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	ErrSessionTerminated = browser.ErrSessionTerminated
	ErrElementTimeout    = browser.ErrElementTimeout
	ErrHarvestIncomplete = harvest.ErrHarvestIncomplete

	ErrInvalidURL     = youtube.ErrInvalidURL
	ErrUnsupportedTab = youtube.ErrUnsupportedTab
	ErrNoCredentials  = youtube.ErrNoCredentials
	ErrLoginFailed    = youtube.ErrLoginFailed
	ErrLoginAborted   = youtube.ErrLoginAborted
	ErrNoContactInfo  = youtube.ErrNoContactInfo

	ErrCaptchaUnsolved = captcha.ErrCaptchaUnsolved
	ErrCaptchaAccount  = captcha.ErrCaptchaAccount

	// Storage errors
	ErrNotFound       = storage.ErrNotFound
	ErrAlreadyExists  = storage.ErrAlreadyExists
	ErrInvalidInput   = storage.ErrInvalidInput
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout
)

// IsTransient reports whether err is a browser action failure worth one
// more attempt.
func IsTransient(err error) bool {
	return browser.IsTransient(err)
}

// IsFatal reports whether err ends the browser session, so no further
// channel can run on it.
func IsFatal(err error) bool {
	return errors.Is(err, browser.ErrSessionTerminated)
}
