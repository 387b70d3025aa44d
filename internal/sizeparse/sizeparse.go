// Package sizeparse parses and formats human-readable byte sizes like
// "64M" or "1G", shared by cmd/ddgorescue-mkimage and any CLI flag that
// accepts a size budget.
//
// Ported from cmd/ublk-mem/main.go's parseSize/formatSize.
package sizeparse

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a size string with an optional K/M/G suffix (binary
// multiples) into a byte count.
func Parse(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sizeparse: invalid size %q: %w", s, err)
	}
	return num * multiplier, nil
}

// Format renders a byte count as a human-readable string: "N B" below
// 1024, otherwise one decimal place and a "KB"/"MB"/"GB"/"TB" suffix
// (binary multiples). Parse does not accept this output form.
func Format(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
