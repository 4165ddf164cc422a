package cfg

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookFunc_DecodesLogSeverity(t *testing.T) {
	hook := hookFunc()
	out, err := hook(reflect.TypeOf(""), reflect.TypeOf(LogSeverity("")), "warning")
	require.NoError(t, err)
	assert.Equal(t, "WARNING", out)
}

func TestHookFunc_RejectsInvalidLogSeverity(t *testing.T) {
	hook := hookFunc()
	_, err := hook(reflect.TypeOf(""), reflect.TypeOf(LogSeverity("")), "VERBOSE")
	assert.Error(t, err)
}

func TestHookFunc_PassesThroughOtherTypes(t *testing.T) {
	hook := hookFunc()
	out, err := hook(reflect.TypeOf(""), reflect.TypeOf(0), "5")
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestDecodeHook_IsComposed(t *testing.T) {
	assert.NotNil(t, DecodeHook())
}
