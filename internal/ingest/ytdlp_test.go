package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"single url", "https://cdn.example/v.m3u8\n", "https://cdn.example/v.m3u8"},
		{"video and audio urls", "https://cdn.example/video\nhttps://cdn.example/audio\n", "https://cdn.example/video"},
		{"leading blank lines", "\n  \nhttps://cdn.example/v\n", "https://cdn.example/v"},
		{"whitespace around url", "  https://cdn.example/v  \n", "https://cdn.example/v"},
		{"empty output", "", ""},
		{"only whitespace", " \n\t\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstLine(tt.out))
		})
	}
}
