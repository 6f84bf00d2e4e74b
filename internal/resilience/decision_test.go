package resilience

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticProvider(t *testing.T) {
	assert.Equal(t, DecisionSkip, StaticProvider{}.Resolve("90001", 1, nil))
	assert.Equal(t, DecisionAbort, StaticProvider{Decision: DecisionAbort}.Resolve("90001", 1, nil))
}

func TestPromptProvider(t *testing.T) {
	tests := []struct {
		input string
		want  Decision
	}{
		{"r\n", DecisionRetry},
		{"retry\n", DecisionRetry},
		{"  A \n", DecisionAbort},
		{"s\n", DecisionSkip},
		{"\n", DecisionSkip},
		{"whatever\n", DecisionSkip},
		{"", DecisionSkip}, // closed stdin
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := PromptProvider{In: strings.NewReader(tt.input), Out: &out}
		got := p.Resolve("90210", 2, []string{"suspicious content-type"})
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "90210")
	}
}
