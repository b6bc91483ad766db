package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input   string
		wantURL string
		wantKey string
	}{
		{"https://www.youtube.com/@Fireship", "https://www.youtube.com/@Fireship", "@fireship"},
		{"https://youtube.com/@TechBurner/videos", "https://www.youtube.com/@TechBurner", "@techburner"},
		{"youtube.com/@MikeShake/about?si=abc", "https://www.youtube.com/@MikeShake", "@mikeshake"},
		{"https://m.youtube.com/@TropicalMage-kn6se/", "https://www.youtube.com/@TropicalMage-kn6se", "@tropicalmage-kn6se"},
		{"@cosdensolutions", "https://www.youtube.com/@cosdensolutions", "@cosdensolutions"},
		{"  @TradingLabOfficial  ", "https://www.youtube.com/@TradingLabOfficial", "@tradinglabofficial"},
		{"https://www.youtube.com/channel/UCsBjURrPoezykLs9EqgamOA", "https://www.youtube.com/channel/UCsBjURrPoezykLs9EqgamOA", "UCsBjURrPoezykLs9EqgamOA"},
		{"UCsBjURrPoezykLs9EqgamOA", "https://www.youtube.com/channel/UCsBjURrPoezykLs9EqgamOA", "UCsBjURrPoezykLs9EqgamOA"},
		{"https://www.youtube.com/c/Fireship/featured", "https://www.youtube.com/c/Fireship", "c-fireship"},
		{"http://www.youtube.com/user/Google", "https://www.youtube.com/user/Google", "user-google"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChannel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantKey, got.Key)
			assert.Equal(t, tt.input, got.Input)
			assert.Equal(t, tt.wantURL+"/videos", got.VideosURL())
		})
	}
}

func TestParseChannel_Invalid(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrInvalidURL},
		{"   ", ErrInvalidURL},
		{"https://vimeo.com/@someone", ErrInvalidURL},
		{"https://www.youtube.com/", ErrInvalidURL},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", ErrInvalidURL},
		{"https://www.youtube.com/channel/not-an-id", ErrInvalidURL},
		{"https://www.youtube.com/@a/b/c", ErrUnsupportedTab},
		{"https://www.youtube.com/@Fireship/nonsense", ErrUnsupportedTab},
		{"fireship", ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseChannel(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
