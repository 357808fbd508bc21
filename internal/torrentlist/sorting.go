// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SortType selects the key records are ordered by.
type SortType int

const (
	SortByName SortType = iota
	SortByDateAdded
	SortByDateCreated
	SortBySize
)

var sortTypeNames = [...]string{
	SortByName:        "name",
	SortByDateAdded:   "dateAdded",
	SortByDateCreated: "dateCreated",
	SortBySize:        "size",
}

func (t SortType) String() string {
	if t < 0 || int(t) >= len(sortTypeNames) {
		return fmt.Sprintf("SortType(%d)", int(t))
	}
	return sortTypeNames[t]
}

// ParseSortType maps a persisted name back to its SortType.
func ParseSortType(s string) (SortType, error) {
	s = strings.TrimSpace(s)
	for i, name := range sortTypeNames {
		if strings.EqualFold(name, s) {
			return SortType(i), nil
		}
	}
	return SortByName, fmt.Errorf("unknown sort type %q", s)
}

func (t SortType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(sortTypeNames) {
		return nil, fmt.Errorf("invalid sort type %d", int(t))
	}
	return []byte(sortTypeNames[t]), nil
}

func (t *SortType) UnmarshalText(text []byte) error {
	parsed, err := ParseSortType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SortConfig is the user's sort preference. It is a plain value; copies never alias.
type SortConfig struct {
	Type     SortType `json:"type"`
	Grouped  bool     `json:"grouped"`
	Reversed bool     `json:"reversed"`
}

// DefaultSortConfig sorts by name, ungrouped, not reversed.
func DefaultSortConfig() SortConfig {
	return SortConfig{Type: SortByName}
}

// Sort returns a new slice ordered according to cfg. The sort is stable, so
// records with equal keys keep their input order.
//
// Records without a creation date compare as if created at the moment of the
// comparison, which places them among the newest under dateCreated.
func Sort(records []Record, cfg SortConfig) []Record {
	sorted := slices.Clone(records)
	if len(sorted) < 2 {
		return sorted
	}

	compare := comparator(cfg.Type)
	if cfg.Reversed {
		slices.SortStableFunc(sorted, func(a, b Record) int { return -compare(a, b) })
	} else {
		slices.SortStableFunc(sorted, compare)
	}
	return sorted
}

func comparator(t SortType) func(a, b Record) int {
	switch t {
	case SortByDateAdded:
		return func(a, b Record) int {
			return b.AddedDate.Compare(a.AddedDate)
		}
	case SortByDateCreated:
		return func(a, b Record) int {
			return creationOrNow(b).Compare(creationOrNow(a))
		}
	case SortBySize:
		return func(a, b Record) int {
			return cmp.Compare(b.TotalWanted, a.TotalWanted)
		}
	default:
		return func(a, b Record) int {
			return strings.Compare(a.Name, b.Name)
		}
	}
}

func creationOrNow(r Record) time.Time {
	if r.CreationDate == nil {
		return time.Now()
	}
	return *r.CreationDate
}
