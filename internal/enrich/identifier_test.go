package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "decimal artifact", raw: "123.0", want: "123", wantOK: true},
		{name: "padded", raw: "  456 ", want: "456", wantOK: true},
		{name: "nan", raw: "nan", wantOK: false},
		{name: "NaN upper", raw: " NaN ", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
		{name: "whitespace only", raw: "   ", wantOK: false},
		{name: "several zeros", raw: "20231234.00", want: "20231234", wantOK: true},
		{name: "padded decimal", raw: " 789.0 ", want: "789", wantOK: true},
		{name: "plain text", raw: "ABC-1", want: "ABC-1", wantOK: true},
		{name: "non zero fraction kept", raw: "12.5", want: "12.5", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeID(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
