package helpers_test

import (
	"strconv"
	"testing"

	"github.com/jroosing/dnsdash/internal/helpers"
	"github.com/stretchr/testify/assert"
)

func TestClampInt(t *testing.T) {
	tests := []struct {
		name           string
		v, lo, hi, out int
	}{
		{name: "below", v: -5, lo: 0, hi: 10, out: 0},
		{name: "at-min", v: 0, lo: 0, hi: 10, out: 0},
		{name: "mid", v: 5, lo: 0, hi: 10, out: 5},
		{name: "at-max", v: 10, lo: 0, hi: 10, out: 10},
		{name: "above", v: 99, lo: 0, hi: 10, out: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, helpers.ClampInt(tt.v, tt.lo, tt.hi))
		})
	}
}

func TestStepPage(t *testing.T) {
	tests := []struct {
		page, delta, want int
	}{
		{1, -1, 1},
		{1, 0, 1},
		{1, 1, 2},
		{5, -1, 4},
		{2, -5, 1},
		{0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.page)+"/"+strconv.Itoa(tt.delta), func(t *testing.T) {
			assert.Equal(t, tt.want, helpers.StepPage(tt.page, tt.delta))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 20.0, helpers.Percent(20, 100), 1e-9)
	assert.InDelta(t, 0.0, helpers.Percent(20, 0), 1e-9)
	assert.InDelta(t, 0.0, helpers.Percent(0, 50), 1e-9)
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		part, total int64
		want        string
	}{
		{20, 100, "20.0"},
		{1, 3, "33.3"},
		{2, 3, "66.7"},
		{5, 0, "0"},
		{0, 10, "0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, helpers.FormatPercent(tt.part, tt.total))
	}
}

func TestBarWidth(t *testing.T) {
	assert.InDelta(t, 100.0, helpers.BarWidth(50, 50), 1e-9)
	assert.InDelta(t, 20.0, helpers.BarWidth(10, 50), 1e-9)
	assert.InDelta(t, 0.0, helpers.BarWidth(0, 0), 1e-9)
	assert.InDelta(t, 300.0, helpers.BarWidth(3, 0), 1e-9)
}
