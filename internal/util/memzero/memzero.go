// Package memzero wipes key material from buffers that are about to
// leave scope. Go offers no guarantee the runtime has not copied the
// memory elsewhere, so this is best effort.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros. The write goes through
// subtle.ConstantTimeCopy so the compiler cannot elide it as dead.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// ZeroAll wipes every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}
