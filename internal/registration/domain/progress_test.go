package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerationStep_Percent(t *testing.T) {
	assert.Equal(t, 40, StepIdentityRules.Percent())
	assert.Equal(t, 70, StepIdentityLLM.Percent())
	assert.Equal(t, 100, StepPhotoGeneration.Percent())
	assert.Equal(t, 0, GenerationStep("UNKNOWN").Percent())
}

func TestSteps_Order(t *testing.T) {
	steps := Steps()
	assert.Equal(t, []GenerationStep{StepIdentityRules, StepIdentityLLM, StepPhotoGeneration}, steps)
}

func TestProgressStatus_IsTerminal(t *testing.T) {
	assert.False(t, ProgressStatusQueued.IsTerminal())
	assert.False(t, ProgressStatusRunning.IsTerminal())
	assert.True(t, ProgressStatusCompleted.IsTerminal())
	assert.True(t, ProgressStatusFailed.IsTerminal())
}

func TestTaskProgress_Event(t *testing.T) {
	now := time.Now().UTC()
	progress := &TaskProgress{
		ApplicationID:   42,
		Step:            StepIdentityLLM,
		Status:          ProgressStatusRunning,
		ProgressPercent: 40,
		Message:         "enriching identity",
		RetryCount:      1,
		Version:         7,
		UpdatedAt:       now,
	}

	event := progress.Event()

	assert.Equal(t, int64(42), event.ApplicationID)
	assert.Equal(t, StepIdentityLLM, event.Step)
	assert.Equal(t, ProgressStatusRunning, event.Status)
	assert.Equal(t, 40, event.ProgressPercent)
	assert.Equal(t, int64(7), event.Version)
	assert.Equal(t, "/topic/applications/42/progress", event.Destination())
}
