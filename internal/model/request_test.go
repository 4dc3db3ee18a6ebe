package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest_Defaults(t *testing.T) {
	r := NewRequest("B1", "A1", 0.3)

	assert.Equal(t, "B1", r.BrandID)
	assert.Equal(t, "A1", r.AdgroupID)
	assert.Equal(t, 0.3, r.Score)
	assert.Equal(t, NoPacing, r.Pacing)
	assert.False(t, r.Shape.IsRaw())
}

func TestRequest_WithPacing(t *testing.T) {
	base := NewRequest("B1", "A1", NoScore)
	paced := base.WithPacing(0.82)

	assert.Equal(t, 0.82, paced.Pacing)
	assert.Equal(t, NoPacing, base.Pacing, "original request must be untouched")
}

func TestScorePair_Pick(t *testing.T) {
	p := ScorePair{NonLBA: 0.1, LBA: 0.2}
	assert.Equal(t, 0.1, p.Pick(false))
	assert.Equal(t, 0.2, p.Pick(true))
}

func TestShape_ZeroValueIsCalibrated(t *testing.T) {
	var s Shape
	assert.False(t, s.IsRaw())
	assert.True(t, ShapeRaw.IsRaw())
}

func TestResult_OK(t *testing.T) {
	assert.True(t, Result{Status: StatusOK}.OK())
	assert.False(t, Result{Status: StatusError}.OK())
	assert.False(t, Result{}.OK())
}
