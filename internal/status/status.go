// Package status renders the rescue session's human-readable progress
// line: phase and pass, scan position, per-state byte totals, read
// throughput and error rate, elapsed and estimated remaining time, and
// time since the last successful read.
//
// Ported from original_source/src/main.rs's print_status/format_bytes/
// format_seconds, restoring the exact byte/duration formatting the
// distilled spec dropped (spec.md §6 names the required fields; the
// original names the formatting).
package status

import (
	"fmt"
	"io"
	"time"

	"github.com/behrlich/ddgorescue/mapfile"
)

// lineCount is how many lines Render writes, used to erase the previous
// frame before redrawing (original_source uses ansi_escapes::EraseLines(5)
// for its own, shorter status block).
const lineCount = 6

// Snapshot is a point-in-time view of a rescue session, independent of
// the engine and mapfile types that produced it, so it's printable from
// a background goroutine without touching either under a lock.
type Snapshot struct {
	Phase     mapfile.Phase
	Pass      uint64
	Pos       uint64
	SizeBytes uint64

	Histogram map[mapfile.SectorState]uint64

	ReadOps    uint64
	ReadBytes  uint64
	ReadErrors uint64

	Elapsed     time.Duration
	LastSuccess time.Time // zero value means no successful read yet
	Now         time.Time
}

// FormatBytes renders a byte count as "N.N {B,KiB,MiB,GiB}", matching
// format_bytes's threshold (switch units once the value would otherwise
// print seven or more integer digits).
func FormatBytes(n uint64) string {
	const unit = 1024.0
	units := []string{"KiB", "MiB", "GiB"}
	resUnit := "B"
	resBytes := float64(n)
	for _, u := range units {
		if resBytes >= 1000000.0 {
			resBytes /= unit
			resUnit = u
		}
	}
	return fmt.Sprintf("%.1f %s", resBytes, resUnit)
}

// FormatDuration renders d as "Xd Xh Xm Xs", omitting leading zero units,
// matching format_seconds's descending (s, m, h, d) unit walk.
func FormatDuration(d time.Duration) string {
	seconds := uint64(d.Seconds())
	type unit struct {
		suffix  string
		modulus uint64
	}
	units := []unit{
		{"s", 60},
		{"m", 60},
		{"h", 24},
		{"d", 0}, // 0 means "no modulus, final component"
	}

	var parts []string
	value := seconds
	for _, u := range units {
		if u.modulus == 0 {
			parts = append([]string{fmt.Sprintf("%d%s", value, u.suffix)}, parts...)
			break
		}
		parts = append([]string{fmt.Sprintf("%d%s", value%u.modulus, u.suffix)}, parts...)
		value /= u.modulus
		if value == 0 {
			break
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// percent returns pos as a percentage of size, or 0 if size is 0.
func percent(pos, size uint64) float64 {
	if size == 0 {
		return 0
	}
	return float64(pos) / float64(size) * 100
}

// throughput returns bytes/sec given bytes read over elapsed, or 0 if
// elapsed is non-positive.
func throughput(bytes uint64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(bytes) / secs
}

// eta estimates the remaining time to cover sizeBytes at the given
// throughput, given bytes already accounted for by pos. Returns 0 if
// throughput is 0 (no estimate available) or the job is already done.
func eta(pos, size uint64, bytesPerSec float64) time.Duration {
	if bytesPerSec <= 0 || pos >= size {
		return 0
	}
	remaining := float64(size - pos)
	return time.Duration(remaining/bytesPerSec) * time.Second
}

func (s Snapshot) timeSinceLastSuccess() string {
	if s.LastSuccess.IsZero() {
		return "never"
	}
	return FormatDuration(s.Now.Sub(s.LastSuccess))
}

// Lines renders the status block as a slice of lines, with no trailing
// redraw escapes, for callers (tests, log sinks) that don't want ANSI
// control characters.
func (s Snapshot) Lines() []string {
	h := s.Histogram
	rate := throughput(s.ReadBytes, s.Elapsed)
	errRate := 0.0
	if s.ReadOps > 0 {
		errRate = float64(s.ReadErrors) / float64(s.ReadOps) * 100
	}

	return []string{
		fmt.Sprintf("%-10s pass %d", s.Phase.String(), s.Pass),
		fmt.Sprintf("pos: %s / %s (%.1f%%)", FormatBytes(s.Pos), FormatBytes(s.SizeBytes), percent(s.Pos, s.SizeBytes)),
		fmt.Sprintf("rescued: %s   bad: %s   untried: %s",
			FormatBytes(h[mapfile.Rescued]), FormatBytes(h[mapfile.Bad]), FormatBytes(h[mapfile.Untried])),
		fmt.Sprintf("untrimmed: %s   unscraped: %s",
			FormatBytes(h[mapfile.Untrimmed]), FormatBytes(h[mapfile.Unscraped])),
		fmt.Sprintf("rate: %s/s   errors: %.1f%%   last success: %s",
			FormatBytes(uint64(rate)), errRate, s.timeSinceLastSuccess()),
		fmt.Sprintf("elapsed: %s   eta: %s", FormatDuration(s.Elapsed), FormatDuration(eta(s.Pos, s.SizeBytes, rate))),
	}
}

// Render writes the status block to w. If overwrite is true, it first
// emits ANSI escapes to move the cursor up and erase the previous
// frame's lines, mirroring print_status's ansi_escapes::EraseLines
// redraw.
func Render(w io.Writer, s Snapshot, overwrite bool) {
	if overwrite {
		for i := 0; i < lineCount; i++ {
			fmt.Fprint(w, "\x1b[1A\x1b[2K")
		}
	}
	for _, line := range s.Lines() {
		fmt.Fprintln(w, line)
	}
}
