package id

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// New returns a unique, time-sortable identifier for spans and agent runs.
//
// Format: 12-char hex millisecond timestamp followed by a 16-char hex
// random suffix (28 characters total). Later ids sort lexicographically
// after earlier ones; the random suffix keeps concurrent goroutines from
// colliding.
func New() string {
	ts := time.Now().UnixMilli()
	rb := make([]byte, 8)
	// An entropy failure means the host is broken; there is no useful
	// recovery from inside an id generator.
	if _, err := rand.Read(rb); err != nil {
		panic("id: crypto/rand read failed: " + err.Error())
	}
	return fmt.Sprintf("%012x%016x", ts, binary.BigEndian.Uint64(rb))
}
