package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsXPath(t *testing.T) {
	tests := []struct {
		sel  string
		want bool
	}{
		{"//button[.//span[text()='View email address']]", true},
		{"(//a)[1]", true},
		{"  //iframe[@title='reCAPTCHA']", true},
		{"#submit-btn", false},
		{"yt-description-preview-view-model truncated-text > button", false},
		{"input[name=Passwd]", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsXPath(tt.sel), tt.sel)
	}
}

func TestClassify(t *testing.T) {
	live := context.Background()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classify(live, live, "click", "#a", nil))
	})

	t.Run("stale node is transient", func(t *testing.T) {
		err := classify(live, live, "click", "#a", errors.New("Could not find node with given id (-32000)"))
		assert.True(t, IsTransient(err))
		var te *TransientUIError
		if assert.ErrorAs(t, err, &te) {
			assert.Equal(t, "click", te.Op)
			assert.Equal(t, "#a", te.Selector)
		}
	})

	t.Run("wait deadline is element timeout", func(t *testing.T) {
		err := classify(live, live, "wait clickable", "#a", context.DeadlineExceeded)
		assert.ErrorIs(t, err, ErrElementTimeout)
		assert.False(t, IsTransient(err))
	})

	t.Run("caller canceled terminates session", func(t *testing.T) {
		err := classify(canceled, live, "scroll", "", context.Canceled)
		assert.ErrorIs(t, err, ErrSessionTerminated)
	})

	t.Run("tab gone terminates session", func(t *testing.T) {
		err := classify(live, canceled, "click", "#a", errors.New("websocket closed"))
		assert.ErrorIs(t, err, ErrSessionTerminated)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		err := classify(live, live, "set value", "#g", boom)
		assert.ErrorIs(t, err, boom)
		assert.False(t, IsTransient(err))
	})
}

func TestIsTransientThroughWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", &TransientUIError{Op: "click", Err: errors.New("node is detached from document")})
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("plain")))
}
