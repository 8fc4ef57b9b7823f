package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-cache-admin/types"
)

func TestMarshalTrimsTrailingNewline(t *testing.T) {
	data, err := Marshal(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestUnmarshalConfig(t *testing.T) {
	type params struct {
		MaxOperations int  `json:"max_operations"`
		StackTrace    bool `json:"stack_trace"`
	}

	var target params
	err := UnmarshalConfig(map[string]interface{}{"max_operations": 7, "stack_trace": true}, &target)
	require.NoError(t, err)
	assert.Equal(t, params{MaxOperations: 7, StackTrace: true}, target)

	err = UnmarshalConfig[params](nil, &target)
	assert.ErrorIs(t, err, types.ErrConfigIsNil)
}
