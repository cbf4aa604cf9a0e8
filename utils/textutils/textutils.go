// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils provides small string helpers shared by the CLI and the server.
package textutils

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// NormalizeCategory turns a user supplied category ("Fast Food", "Cafés")
// into the snake_case tag providers expect ("fast_food", "cafes").
func NormalizeCategory(s string) string {
	s = LowerASCIIFolding(s)

	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	}), "_")
}

// NormalizeCategories normalizes every category and drops empty and repeated ones,
// keeping the first occurrence order.
func NormalizeCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, c := range in {
		c = NormalizeCategory(c)
		if c == "" || seen[c] {
			continue
		}

		seen[c] = true
		out = append(out, c)
	}

	return out
}

// Humanize turns a category tag back into words: "fast_food" -> "fast food".
func Humanize(category string) string {
	return strings.ReplaceAll(category, "_", " ")
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}
