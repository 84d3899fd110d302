package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(3, 5, 10))
	assert.Equal(t, 10, Clamp(12, 5, 10))
	assert.Equal(t, 7, Clamp(7, 5, 10))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, uint32(640), Clamp(uint32(100), uint32(640), uint32(1280)))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 2, Min(2, 9))
	assert.Equal(t, 9, Max(2, 9))
	assert.Equal(t, -1.5, Min(-1.5, 0.0))
}
