// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"slices"
	"strings"
)

// Section is one header-delimited block of the rendered list. Header is nil
// when the list is not grouped.
type Section struct {
	Header  *string  `json:"header"`
	Records []Record `json:"records"`
}

func (s Section) Len() int {
	return len(s.Records)
}

// Group partitions already sorted records into sections. Ungrouped output is a
// single section without header. Grouped output has one section per display
// state present, ordered by header ascending; rows keep their sorted order.
func Group(sorted []Record, grouped bool) []Section {
	if !grouped {
		return []Section{{Records: sorted}}
	}

	buckets := make(map[string][]Record)
	for _, record := range sorted {
		label := record.DisplayState.String()
		buckets[label] = append(buckets[label], record)
	}

	headers := make([]string, 0, len(buckets))
	for header := range buckets {
		headers = append(headers, header)
	}
	slices.SortFunc(headers, strings.Compare)

	sections := make([]Section, 0, len(headers))
	for _, header := range headers {
		sections = append(sections, Section{
			Header:  &header,
			Records: buckets[header],
		})
	}
	return sections
}
