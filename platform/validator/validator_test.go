package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string `json:"title" validate:"required,max=5"`
	Priority string `json:"priority,omitempty" validate:"omitempty,oneof=low high"`
	Internal string `json:"-" validate:"max=1"`
}

func TestDetailsUsesJSONNames(t *testing.T) {
	err := New().Struct(sample{Title: "toolong", Priority: "mid", Internal: "xx"})
	require.Error(t, err)

	assert.Equal(t, map[string]string{
		"title":    "max=5",
		"priority": "oneof=low high",
		"Internal": "max=1",
	}, Details(err))
}

func TestDetailsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Details(errors.New("boom")))
	assert.NoError(t, New().Struct(sample{Title: "ok"}))
}
