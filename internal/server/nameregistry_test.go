package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameRegistry_ClaimOnceThenDenied(t *testing.T) {
	r := NewNameRegistry()
	assert.True(t, r.Claim("alice"))
	assert.False(t, r.Claim("alice"))
	assert.True(t, r.Claim("bob"))
}
