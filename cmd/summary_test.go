package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/refs"
	"github.com/fulmenhq/cloudref/pkg/upload"
)

func TestSummaryLines(t *testing.T) {
	s := &pipeline.Summary{
		State:   pipeline.StateDone,
		Skipped: []pipeline.SkippedFile{{Path: "/p/notes.txt", Reason: "Unsupported file extension"}},
		Phases: []pipeline.PhaseSummary{
			{
				Number: 1,
				Filter: refs.FilterStats{Duplicates: 3, Remote: 2},
				Results: upload.Results{
					"/p/a.png": {URL: "http://res/a.png"},
					"/p/b.png": {Err: errors.New("resource not found")},
				},
			},
			{Number: 2},
		},
	}

	lines := summaryLines(s)
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "cloudref run: done", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "phase"))
	assert.Equal(t, []string{"1", "0", "1", "1", "3", "2"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"2", "0", "0", "0", "0", "0"}, strings.Fields(lines[4]))
	assert.Contains(t, lines[len(lines)-1], "Unsupported file extension")

	var buf bytes.Buffer
	printSummary(&buf, s)
	assert.True(t, strings.HasPrefix(buf.String(), "┌"))
}
