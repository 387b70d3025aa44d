package mapfile

import "fmt"

// ParseError reports a malformed construct encountered while loading a map
// file: an unknown hex field, an unrecognised phase or sector-state
// character, or a missing status line.
//
// Grounded on original_source/src/parse_error.rs's ParseError, which names
// the offending construct as a single string (spec.md §4.2/§7 require
// exactly that).
type ParseError struct {
	Construct string // e.g. "sector state", "phase", "status line", "hex field"
	Line      int    // 1-based line number, 0 if not applicable
	Detail    string // optional extra context
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("map file: invalid %s", e.Construct)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}
