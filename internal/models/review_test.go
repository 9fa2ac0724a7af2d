package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	reviews := []*Review{
		{Rating: 5, Approved: true},
		{Rating: 4, Approved: true},
		{Rating: 4, Approved: true},
		{Rating: 1, Approved: false},
		{Rating: 2, Approved: true, Flagged: true},
	}

	summary := Summarize("mentor-1", reviews)

	assert.Equal(t, "mentor-1", summary.RevieweeID)
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 4.33, summary.Average, 1e-9)
	assert.Equal(t, [5]int{0, 0, 0, 2, 1}, summary.Distribution)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize("mentor-1", nil)

	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.Average)
}
