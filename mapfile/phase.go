package mapfile

// Phase is the rescue scheduler's current stage. Each non-terminal phase
// targets exactly one SectorState (spec.md §3); note the phase-character
// alphabet overlaps the sector-state alphabet by design (§9 warns against
// conflating the two enumerations, so they are kept as distinct Go types).
//
// Ported from original_source/src/phase.rs's Phase enum.
type Phase byte

const (
	Copying  Phase = '?'
	Trimming Phase = '*'
	Scraping Phase = '/'
	Retrying Phase = '-'
	Finished Phase = '+'
)

var allPhases = [...]Phase{Copying, Trimming, Scraping, Retrying, Finished}

// ParsePhase parses a single phase character.
func ParsePhase(c byte) (Phase, error) {
	for _, p := range allPhases {
		if byte(p) == c {
			return p, nil
		}
	}
	return 0, &ParseError{Construct: "phase"}
}

// Byte returns the single-character wire representation.
func (p Phase) Byte() byte { return byte(p) }

func (p Phase) String() string {
	switch p {
	case Copying:
		return "Copying"
	case Trimming:
		return "Trimming"
	case Scraping:
		return "Scraping"
	case Retrying:
		return "Retrying"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Next returns the phase that follows p, or false if p is terminal.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case Copying:
		return Trimming, true
	case Trimming:
		return Scraping, true
	case Scraping:
		return Retrying, true
	case Retrying:
		return Finished, true
	default:
		return Finished, false
	}
}

// Target returns the SectorState this phase operates on, or false for the
// terminal Finished phase, which targets nothing.
func (p Phase) Target() (SectorState, bool) {
	switch p {
	case Copying:
		return Untried, true
	case Trimming:
		return Untrimmed, true
	case Scraping:
		return Unscraped, true
	case Retrying:
		return Bad, true
	default:
		return 0, false
	}
}
