package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE164(t *testing.T) {
	us := NewNormalizer("us")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"national format", "(650) 253-0000", "+16502530000"},
		{"already e164", "+16502530000", "+16502530000"},
		{"blank", "   ", ""},
		{"garbage kept", "call me", "call me"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, us.E164(tc.input))
		})
	}
}

func TestE164PtrKeepsNil(t *testing.T) {
	n := NewNormalizer("")
	assert.Nil(t, n.E164Ptr(nil))

	raw := "+44 20 7031 3000"
	got := n.E164Ptr(&raw)
	if assert.NotNil(t, got) {
		assert.Equal(t, "+442070313000", *got)
	}
}
