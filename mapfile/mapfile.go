// Package mapfile implements the rescue session's persistent state: the scan
// cursor, the current phase and pass, and a tagged interval map of sector
// states. It is read and written as a line-oriented text format with
// atomic replace-on-rename semantics.
//
// Ported from original_source/src/map_file.rs.
package mapfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/behrlich/ddgorescue/internal/constants"
	"github.com/behrlich/ddgorescue/tagrange"
)

// MapFile is the in-memory form of a rescue session's persistent state.
type MapFile struct {
	pos   uint64
	phase Phase
	pass  uint64
	runs  *tagrange.Map[SectorState]
}

// New returns a fresh MapFile for a source device of the given size: pos=0,
// phase=Copying, pass=1, with the whole range tagged Untried.
func New(size uint64) *MapFile {
	runs := tagrange.New[SectorState]()
	runs.Put(0, size, Untried)
	return &MapFile{pos: 0, phase: Copying, pass: 1, runs: runs}
}

// Pos returns the scan cursor: the engine never schedules new work at
// offsets below this within the current pass.
func (m *MapFile) Pos() uint64 { return m.pos }

// SetPos updates the scan cursor.
func (m *MapFile) SetPos(pos uint64) { m.pos = pos }

// Phase returns the current phase.
func (m *MapFile) Phase() Phase { return m.phase }

// SetPhase updates the current phase.
func (m *MapFile) SetPhase(p Phase) { m.phase = p }

// Pass returns the current pass number (>= 1).
func (m *MapFile) Pass() uint64 { return m.pass }

// SetPass updates the current pass number.
func (m *MapFile) SetPass(pass uint64) { m.pass = pass }

// Put tags every byte in [lo, hi) with state.
func (m *MapFile) Put(lo, hi uint64, state SectorState) {
	m.runs.Put(lo, hi, state)
}

// TagAt returns the sector state covering offset, if any.
func (m *MapFile) TagAt(offset uint64) (SectorState, bool) {
	return m.runs.TagAt(offset)
}

// Iter returns every run in ascending order.
func (m *MapFile) Iter() []tagrange.Region[SectorState] {
	return m.runs.Iter()
}

// IterRange returns the runs intersecting [lo, hi), clipped to it.
func (m *MapFile) IterRange(lo, hi uint64) []tagrange.Region[SectorState] {
	return m.runs.IterRange(lo, hi)
}

// SizeBytes is the maximum start+length across all runs, which must equal
// the source device's byte count.
func (m *MapFile) SizeBytes() uint64 {
	return m.runs.Size()
}

// Histogram returns byte totals per sector state.
func (m *MapFile) Histogram() map[SectorState]uint64 {
	hist := make(map[SectorState]uint64, len(allSectorStates))
	for _, r := range m.runs.Iter() {
		hist[r.Tag] += r.Length
	}
	return hist
}

// WriteTo writes the status line and every region line to w. Regions are
// emitted in ascending start order, which Iter already guarantees.
func (m *MapFile) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "0x%08X     %c     %d\n", m.pos, m.phase.Byte(), m.pass); err != nil {
		return err
	}
	for _, r := range m.runs.Iter() {
		if _, err := fmt.Fprintf(bw, "0x%08X  0x%08X  %c\n", r.Start, r.Length, r.Tag.Byte()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteAtomic writes the map file to a temp file alongside path, fsyncs it,
// then renames it into place, so a crash mid-write never corrupts the
// previous on-disk state.
func (m *MapFile) WriteAtomic(path string) error {
	tmpPath := path + constants.MapTempSuffix
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("mapfile: open temp file: %w", err)
	}
	if err := m.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("mapfile: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("mapfile: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mapfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("mapfile: rename into place: %w", err)
	}
	return nil
}

// LoadPath opens path and loads a MapFile from it.
func LoadPath(path string) (*MapFile, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses a map file from r. Both the pass-bearing status line
// (`0xHHHHHHHH <phase> <pass>`) and the legacy form without a pass
// (`0xHHHHHHHH <phase>`) are accepted; pass defaults to 1 when omitted.
func Load(r io.Reader) (*MapFile, error) {
	scanner := bufio.NewScanner(r)
	runs := tagrange.New[SectorState]()

	lineNo := 0
	haveStatus := false
	var pos uint64
	var phase Phase
	var pass uint64 = 1

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		if !haveStatus {
			if len(fields) < 2 {
				return nil, &ParseError{Construct: "status line", Line: lineNo, Detail: "expected at least a position and a phase"}
			}
			p, err := parseHex(fields[0], lineNo, "position")
			if err != nil {
				return nil, err
			}
			pos = p
			ph, err := parsePhaseField(fields[1], lineNo)
			if err != nil {
				return nil, err
			}
			phase = ph
			if len(fields) >= 3 {
				n, convErr := strconv.ParseUint(fields[2], 10, 64)
				if convErr != nil {
					return nil, &ParseError{Construct: "pass", Line: lineNo, Detail: convErr.Error()}
				}
				pass = n
			}
			haveStatus = true
			continue
		}

		if len(fields) < 3 {
			return nil, &ParseError{Construct: "region line", Line: lineNo, Detail: "expected start, length, and state"}
		}
		start, err := parseHex(fields[0], lineNo, "region start")
		if err != nil {
			return nil, err
		}
		length, err := parseHex(fields[1], lineNo, "region length")
		if err != nil {
			return nil, err
		}
		state, err := parseSectorStateField(fields[2], lineNo)
		if err != nil {
			return nil, err
		}
		runs.Put(start, start+length, state)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mapfile: read: %w", err)
	}
	if !haveStatus {
		return nil, &ParseError{Construct: "status line", Detail: "map file is empty"}
	}

	return &MapFile{pos: pos, phase: phase, pass: pass, runs: runs}, nil
}

func parseHex(field string, line int, what string) (uint64, error) {
	field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
	v, err := strconv.ParseUint(field, 16, 64)
	if err != nil {
		return 0, &ParseError{Construct: "hex field", Line: line, Detail: fmt.Sprintf("%s: %v", what, err)}
	}
	return v, nil
}

func parsePhaseField(field string, line int) (Phase, error) {
	if field == "" {
		return 0, &ParseError{Construct: "phase", Line: line}
	}
	p, err := ParsePhase(field[0])
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Line = line
		}
		return 0, err
	}
	return p, nil
}

func parseSectorStateField(field string, line int) (SectorState, error) {
	if field == "" {
		return 0, &ParseError{Construct: "sector state", Line: line}
	}
	s, err := ParseSectorState(field[0])
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Line = line
		}
		return 0, err
	}
	return s, nil
}
