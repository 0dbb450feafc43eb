package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayRegistry(t *testing.T) {
	r := NewGatewayRegistry()
	r.Register(&fakeGateway{name: "bold"})
	r.Register(&fakeGateway{name: "wompi"})

	g, err := r.Get("bold")
	require.NoError(t, err)
	assert.Equal(t, "bold", g.Name())

	g, err = r.Get("wompi")
	require.NoError(t, err)
	assert.Equal(t, "wompi", g.Name())

	assert.ElementsMatch(t, []string{"bold", "wompi"}, r.List())
}

func TestGatewayRegistry_NotFound(t *testing.T) {
	r := NewGatewayRegistry()

	_, err := r.Get("stripe")
	assert.ErrorIs(t, err, ErrGatewayNotFound)
}

func TestGatewayRegistry_RegisterOverwrites(t *testing.T) {
	r := NewGatewayRegistry()
	first := &fakeGateway{name: "bold"}
	second := &fakeGateway{name: "bold"}
	r.Register(first)
	r.Register(second)

	g, err := r.Get("bold")
	require.NoError(t, err)
	assert.Same(t, second, g)
	assert.Len(t, r.List(), 1)
}
