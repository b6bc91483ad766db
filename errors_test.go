package ytscrape

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ytscrape/browser"
	"ytscrape/youtube"
)

func TestErrorReexports(t *testing.T) {
	err := &youtube.ScrapeError{Channel: "@x", Stage: "login", Err: fmt.Errorf("%w: bad password", ErrLoginFailed)}

	var se *ScrapeError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "login", se.Stage)
	assert.ErrorIs(t, err, youtube.ErrLoginFailed)
}

func TestIsTransientAndFatal(t *testing.T) {
	transient := &browser.TransientUIError{Op: "Click", Selector: "#x", Err: errors.New("node is detached")}
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))

	fatal := fmt.Errorf("navigate: %w", ErrSessionTerminated)
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))
}
