// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package version implements the client version policy: lenient version
// parsing and comparison, the hot-reloadable per-OS minimum map, and the
// cascading latest-version resolver.
package version

import "strings"

// Parsed is a version as a tuple of three non-negative integers.
// Non-digit characters are stripped per component ("v1" → 1, "3-beta" → 3)
// and missing components default to zero, so "v1.9", "1.9.0" and "1.9"
// parse equal.
type Parsed [3]int

// Parse converts a version string to its tuple form. Parse never fails;
// garbage components read as zero, matching the lenient wire format older
// clients send.
func Parse(s string) Parsed {
	var p Parsed
	parts := strings.SplitN(strings.TrimSpace(s), ".", 4)
	for i := 0; i < 3 && i < len(parts); i++ {
		p[i] = digitsOf(parts[i])
	}
	return p
}

// Compare returns -1, 0 or 1 as a precedes, equals or follows b.
func Compare(a, b string) int {
	pa, pb := Parse(a), Parse(b)
	for i := 0; i < 3; i++ {
		if pa[i] < pb[i] {
			return -1
		}
		if pa[i] > pb[i] {
			return 1
		}
	}
	return 0
}

// digitsOf strips non-digit characters and parses what remains, so
// "v12" reads as 12 and a fully non-numeric component reads as 0.
func digitsOf(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
		}
	}
	return n
}
