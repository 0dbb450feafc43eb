package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueScanRoundTrip(t *testing.T) {
	m := JSONMap{"declined_reason": "SALE_REJECTED", "attempt": float64(2)}

	v, err := m.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(v))
	assert.Equal(t, m, out)
}

func TestJSONMap_ScanNil(t *testing.T) {
	out := JSONMap{"stale": "value"}
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
}

func TestJSONMap_ScanString(t *testing.T) {
	var out JSONMap
	require.NoError(t, out.Scan(`{"reference":"VRX-1-AAAAAA"}`))
	assert.Equal(t, "VRX-1-AAAAAA", out.GetString("reference"))
}

func TestJSONMap_ScanUnsupportedType(t *testing.T) {
	var out JSONMap
	assert.Error(t, out.Scan(42))
}

func TestJSONMap_GetString(t *testing.T) {
	m := JSONMap{"key": "value", "number": float64(7)}
	assert.Equal(t, "value", m.GetString("key"))
	assert.Empty(t, m.GetString("number"))
	assert.Empty(t, m.GetString("missing"))
	assert.Empty(t, JSONMap(nil).GetString("key"))
}

func TestPendingPayment_Expired(t *testing.T) {
	now := time.Now()

	p := &PendingPayment{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, p.Expired(now))

	p.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, p.Expired(now))

	// Zero expiry means the link never expires locally.
	p.ExpiresAt = time.Time{}
	assert.False(t, p.Expired(now))
}
