/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/ascii"
)

const summaryPathWidth = 48

// summaryLines renders a run as a small table for the terminal.
func summaryLines(s *pipeline.Summary) []string {
	lines := []string{fmt.Sprintf("cloudref run: %s", s.State)}

	rows := [][]string{{"phase", "files", "uploaded", "failed", "duplicates", "remote"}}
	for _, p := range s.Phases {
		uploaded, failed := 0, 0
		for _, res := range p.Results {
			if res.Err != nil {
				failed++
			} else {
				uploaded++
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Number),
			strconv.Itoa(len(p.Files)),
			strconv.Itoa(uploaded),
			strconv.Itoa(failed),
			strconv.Itoa(p.Filter.Duplicates),
			strconv.Itoa(p.Filter.Remote),
		})
	}
	lines = append(lines, "")
	lines = append(lines, ascii.Table(rows)...)

	if len(s.Skipped) > 0 {
		skipped := make([][]string, 0, len(s.Skipped))
		for _, sk := range s.Skipped {
			skipped = append(skipped, []string{"skipped", ascii.TruncateLeft(sk.Path, summaryPathWidth), sk.Reason})
		}
		lines = append(lines, "")
		lines = append(lines, ascii.Table(skipped)...)
	}
	return lines
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	ascii.DrawBox(w, summaryLines(s))
}
