package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"machinebarter.dev/barter/internal/credentials"
)

func TestMemoryStore(t *testing.T) {
	var s credentials.Store
	m := NewMemoryStore()
	m.Add("Password", "pw")
	s = m

	got, err := s.Lookup(t.Context(), credentials.Filter{Machine: "any"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Password": "pw"}, got)

	got["Password"] = "changed"
	again, err := s.Lookup(t.Context(), credentials.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "pw", again["Password"])
	assert.Equal(t, 1, m.Len())
}
