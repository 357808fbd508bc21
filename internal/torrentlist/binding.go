// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

// sortBinding keeps the current sort configuration together with the callback
// that writes it back to the settings store.
type sortBinding struct {
	value   SortConfig
	persist func(SortConfig)
}

// set stores cfg and reports whether it differs from the previous value.
func (b *sortBinding) set(cfg SortConfig) bool {
	if cfg == b.value {
		return false
	}
	b.value = cfg
	return true
}

func (b *sortBinding) notify() {
	if b.persist != nil {
		b.persist(b.value)
	}
}
