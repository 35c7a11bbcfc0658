package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQdrantURLRESTPortTranslatesToGRPC(t *testing.T) {
	host, port, useTLS, err := parseQdrantURL("http://localhost:6333")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)
	assert.False(t, useTLS)
}

func TestParseQdrantURLExplicitGRPCPortPreserved(t *testing.T) {
	host, port, useTLS, err := parseQdrantURL("https://qdrant.internal:6334")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", host)
	assert.Equal(t, 6334, port)
	assert.True(t, useTLS)
}

func TestParseQdrantURLDefaultsPortWhenAbsent(t *testing.T) {
	_, port, _, err := parseQdrantURL("https://qdrant.internal")
	require.NoError(t, err)
	assert.Equal(t, 6334, port)
}

func TestParseQdrantURLRejectsMissingHost(t *testing.T) {
	_, _, _, err := parseQdrantURL("https://")
	require.Error(t, err)
}

func TestParseQdrantURLRejectsInvalidPort(t *testing.T) {
	_, _, _, err := parseQdrantURL("https://host:notaport")
	require.Error(t, err)
}

func TestStableIDIsDeterministic(t *testing.T) {
	assert.Equal(t, stableID("p1"), stableID("p1"))
}

func TestStableIDDiffersAcrossInputs(t *testing.T) {
	assert.NotEqual(t, stableID("p1"), stableID("p2"))
}
