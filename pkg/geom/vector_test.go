package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	v := NewVec2(3, 4).Scale(10)
	assert.InDelta(t, 6, v.X, 1e-9)
	assert.InDelta(t, 8, v.Y, 1e-9)

	assert.Equal(t, Vec2{}, Vec2{}.Scale(5))
}

func TestFromAngle(t *testing.T) {
	v := FromAngle(math.Pi / 2)
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 1, v.Y, 1e-9)
}

func TestLerp(t *testing.T) {
	v := NewVec2(0, 0).Lerp(NewVec2(10, -10), 0.25)
	assert.Equal(t, NewVec2(2.5, -2.5), v)
	assert.InDelta(t, 5, Distance(NewVec2(1, 1), NewVec2(4, 5)), 1e-9)
}
