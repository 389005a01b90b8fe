package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "plain fence",
			in:   "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "surrounding prose",
			in:   "Here is the answer:\n{\"a\":1}\nHope that helps!",
			want: `{"a":1}`,
		},
		{
			name: "no object at all",
			in:   "no json here",
			want: "no json here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "Hobart A200", joinNonEmpty("Hobart", "", "A200"))
	assert.Equal(t, "", joinNonEmpty("", "  ", ""))
	assert.Equal(t, "motor", joinNonEmpty(" motor "))
}

func TestEqualFold(t *testing.T) {
	assert.True(t, equalFold(" A200 ", "a200"))
	assert.False(t, equalFold("A200", "A300"))
}
