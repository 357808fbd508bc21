// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import "strings"

// Filter keeps the records whose lower-cased name contains every whitespace
// separated token of query. An empty or all-whitespace query keeps everything.
// Input order is preserved and the input slice is never modified.
func Filter(records []Record, query string) []Record {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return records
	}

	filtered := make([]Record, 0, len(records))
	for _, record := range records {
		if matchesAll(strings.ToLower(record.Name), tokens) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func matchesAll(name string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(name, token) {
			return false
		}
	}
	return true
}
