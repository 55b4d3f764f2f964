// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import "strings"

var suggestionKeywords = []struct {
	tool  string
	words []string
}{
	{"search", []string{"search", "find", "look up"}},
	{"calculator", []string{"calculate", "compute", "math"}},
}

// Suggest returns names of tools whose trigger keywords appear in the query.
// Order follows the registry order above.
func Suggest(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	for _, entry := range suggestionKeywords {
		for _, word := range entry.words {
			if strings.Contains(lower, word) {
				out = append(out, entry.tool)
				break
			}
		}
	}
	return out
}
