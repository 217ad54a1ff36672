package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/slabtree/pkg/safeconv"
)

// WriteReport renders the run result to writer: an indented JSON document
// when jsonOut is set, a human-readable table otherwise.
func WriteReport(result *RunResult, jsonOut bool, writer io.Writer) error {
	if jsonOut {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(result)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		return nil
	}

	writeTableReport(result, writer)

	return nil
}

func writeTableReport(result *RunResult, writer io.Writer) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(writer, "workload %s (seed %d, policy %s, %d shards, %d-byte records)\n",
		result.Workload.Name, result.Workload.Seed, result.Workload.Policy,
		result.Workload.Shards, result.Workload.RecordBytes)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"phase", "distribution", "ops", "hits", "misses", "duration", "ops/sec"})

	var (
		totalOps     int64
		totalElapsed time.Duration
	)

	for _, phase := range result.Phases {
		totalOps += phase.Ops
		totalElapsed += phase.Duration

		tbl.AppendRow(table.Row{
			phase.Kind,
			displayDistribution(&phase),
			humanize.Comma(phase.Ops),
			humanize.Comma(phase.Hits),
			humanize.Comma(phase.Misses),
			phase.Duration.Round(time.Microsecond),
			humanize.Comma(int64(phase.OpsPerSecond)),
		})
	}

	tbl.AppendFooter(table.Row{
		"total", "",
		humanize.Comma(totalOps), "", "",
		totalElapsed.Round(time.Microsecond),
		humanize.Comma(int64(opsPerSecond(totalOps, totalElapsed))),
	})

	fmt.Fprintln(writer, tbl.Render())

	writeStatsSummary(result, writer)
}

// displayDistribution blanks the distribution column for phases whose key
// stream is irrelevant.
func displayDistribution(phase *PhaseResult) string {
	if phase.Kind == PhaseScan || phase.Kind == PhaseHibernate {
		return "-"
	}

	return phase.Distribution
}

func writeStatsSummary(result *RunResult, writer io.Writer) {
	st := result.Stats

	fmt.Fprintf(writer, "final tree: %s records in %s slots (height %d, %s free)\n",
		humanize.Comma(int64(st.Size)), humanize.Comma(int64(st.Capacity)),
		st.Height, humanize.Comma(int64(st.Free)))

	fmt.Fprintf(writer, "counters: %s inserts, %s updates, %s deletes, %s evictions, %s grows\n",
		commaUint(st.Inserts), commaUint(st.Updates), commaUint(st.Deletes),
		commaUint(st.Evictions), commaUint(st.Grows))

	written := (st.Inserts + st.Updates) * uint64(result.Workload.RecordBytes)
	fmt.Fprintf(writer, "record data written: %s\n", humanize.Bytes(written))

	for _, phase := range result.Phases {
		if phase.Kind == PhaseHibernate && phase.HeapFreed > 0 {
			fmt.Fprintf(writer, "hibernation released: %s of resident heap\n",
				humanize.Bytes(uint64(phase.HeapFreed)))

			break
		}
	}
}

func commaUint(v uint64) string {
	return humanize.Comma(safeconv.MustUint64ToInt64(v))
}
