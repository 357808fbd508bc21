// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// fingerprint hashes everything a renderer shows for sections. Two derivations
// with the same fingerprint are treated as identical.
func fingerprint(sections []Section) uint64 {
	d := xxhash.New()
	var buf [8]byte

	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = d.Write(buf[:])
	}
	writeString := func(v string) {
		writeInt(int64(len(v)))
		_, _ = d.WriteString(v)
	}
	writeBool := func(v bool) {
		if v {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
	}

	writeInt(int64(len(sections)))
	for _, section := range sections {
		writeBool(section.Header != nil)
		if section.Header != nil {
			writeString(*section.Header)
		}
		writeInt(int64(len(section.Records)))
		for _, record := range section.Records {
			writeString(string(record.ID))
			writeString(record.Name)
			writeInt(record.AddedDate.UnixNano())
			writeBool(record.CreationDate != nil)
			if record.CreationDate != nil {
				writeInt(record.CreationDate.UnixNano())
			}
			writeInt(record.TotalWanted)
			writeBool(record.CanResume)
			writeBool(record.CanPause)
			writeInt(int64(record.DisplayState))
		}
	}
	return d.Sum64()
}
