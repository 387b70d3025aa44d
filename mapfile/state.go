package mapfile

// SectorState is the tag a byte of the source device carries in the
// rescue session's tagged interval map.
//
// Ported from original_source/src/map_file.rs's SectorState enum; the
// five single-character codes are the on-disk wire format (spec.md §3).
type SectorState byte

const (
	Untried   SectorState = '?'
	Untrimmed SectorState = '*'
	Unscraped SectorState = '/'
	Bad       SectorState = '-'
	Rescued   SectorState = '+'
)

// allSectorStates lists every valid state, used for parsing and iteration.
var allSectorStates = [...]SectorState{Untried, Untrimmed, Unscraped, Bad, Rescued}

// ParseSectorState parses a single state character, returning a ParseError
// naming "sector state" if c is not one of the five known codes.
func ParseSectorState(c byte) (SectorState, error) {
	for _, s := range allSectorStates {
		if byte(s) == c {
			return s, nil
		}
	}
	return 0, &ParseError{Construct: "sector state"}
}

// Byte returns the single-character wire representation.
func (s SectorState) Byte() byte { return byte(s) }

func (s SectorState) String() string {
	switch s {
	case Untried:
		return "Untried"
	case Untrimmed:
		return "Untrimmed"
	case Unscraped:
		return "Unscraped"
	case Bad:
		return "Bad"
	case Rescued:
		return "Rescued"
	default:
		return "Unknown"
	}
}
