package speaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractName(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"Meu nome é Carlos Silva.", "Carlos Silva", true},
		{"Olá, me chamo Ana.", "Ana", true},
		{"Bom dia, eu sou João Pereira e vou conduzir a reunião", "João Pereira", true},
		{"Aqui é Beatriz falando", "Beatriz", true},
		{"Bom dia a todos.", "", false},
		{"sou eu mesmo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractName(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractName_FirstPatternWins(t *testing.T) {
	got, ok := ExtractName("Me chamo Rita, mas meu nome é Ana")
	assert.True(t, ok)
	assert.Equal(t, "Ana", got)
}
