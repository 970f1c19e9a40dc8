package inspector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/tidwall/pretty"
)

const clearLine = "\r\x1b[K"

// ReporterOptions configure a Reporter.
type ReporterOptions struct {
	// Verbose additionally prints the pretty-printed content of every JSON object chunk.
	Verbose bool
	// Quiet suppresses the per-chunk lines. Summaries are still printed.
	Quiet bool
}

// A Reporter prints traffic as it flows: one line per chunk, a running status
// line and summary blocks. It implements Observer.
type Reporter struct {
	opts ReporterOptions
	tty  bool

	mx      sync.Mutex
	out     io.Writer
	pending bool // an unterminated status line is on screen

	final sync.Once
}

var _ Observer = &Reporter{}

// NewReporter creates a Reporter writing to out. When out is a terminal
// the status line is redrawn in place.
func NewReporter(out io.Writer, opts ReporterOptions) *Reporter {
	r := &Reporter{out: out, opts: opts}
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		r.tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

func (r *Reporter) write(p []byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.pending {
		io.WriteString(r.out, clearLine)
		r.pending = false
	}
	r.out.Write(p)
}

// ObserveChunk prints one line for the chunk, followed by its pretty-printed
// content in verbose mode.
func (r *Reporter) ObserveChunk(ev ChunkEvent) {
	if r.opts.Quiet {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] #%-4d %-16s %7d bytes  +%dms\n",
		ev.Direction.Arrow(), ev.ConnID, ev.Class.Label(), len(ev.Data), ev.Delta.Milliseconds())
	if r.opts.Verbose {
		if _, ok := ev.Class.(JSONObject); ok {
			buf.Write(pretty.Pretty(ev.Data))
		}
	}
	r.write(buf.Bytes())
}

// ConnectionClosed prints the summary of a finished connection.
func (r *Reporter) ConnectionClosed(id uint64, snap Snapshot) {
	var buf bytes.Buffer
	WriteSummary(&buf, fmt.Sprintf("Connection #%d closed", id), snap)
	r.write(buf.Bytes())
}

// Status prints a single line of running totals.
func (r *Reporter) Status(snap Snapshot) {
	up := snap.Direction(ClientToServer)
	down := snap.Direction(ServerToClient)
	line := fmt.Sprintf("[%s] %s: %d msgs, %s | %s: %d msgs, %s | %s/s",
		snap.Elapsed.Round(time.Second),
		ClientToServer.Arrow(), up.MessageCount, humanize.IBytes(up.TotalBytes),
		ServerToClient.Arrow(), down.MessageCount, humanize.IBytes(down.TotalBytes),
		humanize.IBytes(uint64(snap.Bandwidth())),
	)

	r.mx.Lock()
	defer r.mx.Unlock()
	if r.tty {
		io.WriteString(r.out, clearLine+line)
		r.pending = true
		return
	}
	io.WriteString(r.out, line+"\n")
}

// Run prints a status line for acc every interval until ctx is done.
// A non-positive interval disables the status line.
func (r *Reporter) Run(ctx context.Context, acc *Accumulator, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Status(acc.Snapshot(now))
		}
	}
}

// Final prints the summary of snap. Only the first call has an effect.
func (r *Reporter) Final(snap Snapshot) {
	r.final.Do(func() {
		var buf bytes.Buffer
		buf.WriteString("\n")
		WriteSummary(&buf, "Final statistics", snap)
		r.write(buf.Bytes())
	})
}

// WriteSummary renders the per-direction totals and type breakdown of snap.
func WriteSummary(w io.Writer, title string, snap Snapshot) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s ===\n", title)
	fmt.Fprintf(&buf, "Runtime: %s\n", snap.Elapsed.Round(time.Millisecond))
	for _, dir := range directions {
		writeDirectionSummary(&buf, dir, snap.Direction(dir), snap.Elapsed)
	}
	fmt.Fprintf(&buf, "\nTotal: %d bytes (%s) in %d messages\n",
		snap.TotalBytes(), humanize.IBytes(snap.TotalBytes()), snap.MessageCount())
	fmt.Fprintf(&buf, "Combined bandwidth: %s/s\n", humanize.IBytes(uint64(snap.Bandwidth())))
	_, err := w.Write(buf.Bytes())
	return err
}

func writeDirectionSummary(buf *bytes.Buffer, dir Direction, s DirectionStats, elapsed time.Duration) {
	fmt.Fprintf(buf, "\n%s\n", dir)
	fmt.Fprintf(buf, "  Total:     %d bytes (%s)\n", s.TotalBytes, humanize.IBytes(s.TotalBytes))
	fmt.Fprintf(buf, "  Messages:  %d\n", s.MessageCount)
	fmt.Fprintf(buf, "  Average:   %.1f bytes/msg\n", s.AverageBytes())
	fmt.Fprintf(buf, "  Bandwidth: %s/s\n", humanize.IBytes(uint64(s.Bandwidth(elapsed))))

	rows := s.Breakdown()
	if len(rows) == 0 {
		buf.WriteString("  (no messages)\n")
		return
	}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"Type", "Count", "Bytes", "Share"})
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, row := range rows {
		table.Append([]string{
			row.Label,
			strconv.FormatUint(row.Count, 10),
			strconv.FormatUint(row.TotalBytes, 10),
			strconv.FormatFloat(row.Percent, 'f', 1, 64) + "%",
		})
	}
	table.Render()
}
