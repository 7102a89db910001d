package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestStudent_Enriched(t *testing.T) {
	student := &Student{}
	assert.False(t, student.Enriched())

	student.FamilyBackground = strPtr("only child")
	student.Interests = strPtr("robotics")
	assert.False(t, student.Enriched())

	student.Goals = strPtr("graduate with honors")
	assert.True(t, student.Enriched())
}

func TestStudent_HasPhoto(t *testing.T) {
	student := &Student{}
	assert.False(t, student.HasPhoto())

	student.PhotoRef = strPtr("photos/42.png")
	assert.True(t, student.HasPhoto())
}
