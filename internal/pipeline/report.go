// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"

	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// stageOrder fixes the order failures are printed in.
var stageOrder = []string{
	metrics.StageCatalog,
	metrics.StageDownload,
	metrics.StageConvert,
	metrics.StageChunk,
	metrics.StageEmbed,
}

// Report holds the counts of one run.
type Report struct {
	Mode types.Mode

	Catalogued int
	Downloaded int
	Converted  int
	Chunked    int
	Embedded   int

	// Failed counts failed documents per stage.
	Failed map[string]int

	// Totals read back from state after the run.
	Entries   int
	Documents int
	Indexed   int
	Vectors   int
}

func newReport(mode types.Mode) Report {
	return Report{Mode: mode, Failed: map[string]int{}}
}

// Work returns the number of documents a stage completed in this run.
func (r Report) Work() int {
	return r.Catalogued + r.Downloaded + r.Converted + r.Chunked + r.Embedded
}

// TotalFailed returns the failures across stages.
func (r Report) TotalFailed() int {
	n := 0
	for _, v := range r.Failed {
		n += v
	}
	return n
}

// HasFailures reports whether any stage failed a document.
func (r Report) HasFailures() bool {
	return r.TotalFailed() > 0
}

// Print writes the report in the status-line format of the stages.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\nRun summary (%s): %d catalogued, %d downloaded, %d converted, %d chunked, %d embedded\n",
		r.Mode, r.Catalogued, r.Downloaded, r.Converted, r.Chunked, r.Embedded)
	fmt.Fprint(w, "Failed:")
	for _, s := range stageOrder {
		fmt.Fprintf(w, " %s=%d", s, r.Failed[s])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "State: %d entries, %d documents, %d in vector index (%d vectors)\n",
		r.Entries, r.Documents, r.Indexed, r.Vectors)
}
