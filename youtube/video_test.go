package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"/watch?v=dQw4w9WgXcQ&t=42s&pp=ygUE", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&si=x", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"/shorts/abcdefghijk", "abcdefghijk", true},
		{"https://www.youtube.com/live/abcdefghijk?feature=share", "abcdefghijk", true},
		{"https://www.youtube-nocookie.com/embed/abcdefghijk", "abcdefghijk", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=1", "dQw4w9WgXcQ", true},
		{"/watch?v=short", "", false},
		{"/@Fireship", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"", "", false},
		{"/playlist?list=PL123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := VideoID(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatchURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", WatchURL("dQw4w9WgXcQ"))
}
