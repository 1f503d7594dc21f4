package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/visitum/visitum-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:          "run-1",
			Status:      model.RunStatusComplete,
			Page:        "List_of_most-visited_museums",
			RowsCleaned: 40,
			RowsSaved:   38,
			StartedAt:   started,
			FinishedAt:  started.Add(90 * time.Second),
		},
		{
			ID:        "run-2",
			Status:    model.RunStatusRunning,
			Page:      "List_of_most-visited_museums",
			StartedAt: started,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "1m30s")
	// An unfinished run shows a placeholder duration.
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "-")
}
