package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopone/whatsapp-mcp/internal/backend"
)

func TestParse(t *testing.T) {
	b, err := backend.Parse("go")
	require.NoError(t, err)
	assert.Equal(t, backend.BackendGo, b)

	b, err = backend.Parse("baileys")
	require.NoError(t, err)
	assert.Equal(t, backend.BackendBaileys, b)

	_, err = backend.Parse("telegram")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, backend.BackendGo.Valid())
	assert.True(t, backend.BackendBaileys.Valid())
	assert.False(t, backend.BackendNone.Valid())
	assert.False(t, backend.Backend("").Valid())
}

func TestOther(t *testing.T) {
	assert.Equal(t, backend.BackendBaileys, backend.BackendGo.Other())
	assert.Equal(t, backend.BackendGo, backend.BackendBaileys.Other())
}

func TestAll_GoCheckedFirst(t *testing.T) {
	all := backend.All()
	require.Len(t, all, 2)
	assert.Equal(t, backend.BackendGo, all[0])
	assert.Equal(t, backend.BackendBaileys, all[1])
}
