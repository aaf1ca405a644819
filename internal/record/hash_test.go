package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairtrace/trace-core/internal/record"
)

func TestHash_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"pid":"abc123","origin":"NL","weight":12.5}`)
	b := []byte(`{"weight":12.5,"origin":"NL","pid":"abc123"}`)

	ha, err := record.Hash(a)
	require.NoError(t, err)
	hb, err := record.Hash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestHash_WhitespaceIndependent(t *testing.T) {
	a := []byte(`{"pid":"abc123","origin":"NL"}`)
	b := []byte("{\n  \"pid\": \"abc123\",\n  \"origin\": \"NL\"\n}")

	ha, err := record.Hash(a)
	require.NoError(t, err)
	hb, err := record.Hash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestHash_ContentSensitive(t *testing.T) {
	ha, err := record.Hash([]byte(`{"pid":"abc123"}`))
	require.NoError(t, err)
	hb, err := record.Hash([]byte(`{"pid":"abc124"}`))
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestHash_OutputShape(t *testing.T) {
	h, err := record.Hash([]byte(`{"pid":"abc123"}`))
	require.NoError(t, err)

	// 0x prefix plus 64 hex characters, so the digest round-trips through
	// the anchor request validator unchanged.
	assert.Len(t, h.String(), 66)
	assert.Equal(t, "0x", h.String()[:2])
}

func TestHash_InvalidJSON(t *testing.T) {
	_, err := record.Hash([]byte(`{"pid":`))
	assert.Error(t, err)
}

func TestHashValue(t *testing.T) {
	type harvest struct {
		PID    string  `json:"pid"`
		Origin string  `json:"origin"`
		Weight float64 `json:"weight"`
	}

	hv, err := record.HashValue(harvest{PID: "abc123", Origin: "NL", Weight: 12.5})
	require.NoError(t, err)

	hd, err := record.Hash([]byte(`{"pid":"abc123","origin":"NL","weight":12.5}`))
	require.NoError(t, err)

	assert.Equal(t, hd, hv)
}
