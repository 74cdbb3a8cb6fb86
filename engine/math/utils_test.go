package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(30, 0, 10))
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, float32(1), Saturate(float32(1.5)))
	assert.Equal(t, 0.0, Saturate(-0.1))
}

func TestMix(t *testing.T) {
	assert.Equal(t, float32(2), Mix(float32(2), 4, 0))
	assert.Equal(t, float32(4), Mix(float32(2), 4, 1))
	assert.Equal(t, 3.0, Mix(2.0, 4.0, 0.5))
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, uint32(50), DivCeil(uint32(800), 16))
	assert.Equal(t, uint32(38), DivCeil(uint32(600), 16))
	assert.Equal(t, uint32(1), DivCeil(uint32(1), 16))
	assert.Equal(t, uint32(1), DivCeil(uint32(16), 16))
	assert.Equal(t, uint32(2), DivCeil(uint32(17), 16))
}

func TestToUnorm8(t *testing.T) {
	assert.Equal(t, uint8(0), ToUnorm8(-1.0))
	assert.Equal(t, uint8(255), ToUnorm8(float32(2)))
	assert.Equal(t, uint8(128), ToUnorm8(0.5))
	assert.Equal(t, uint8(153), ToUnorm8(float32(0.6)))
}
