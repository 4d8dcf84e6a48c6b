package e1000

import "sync/atomic"

// SetDraining flips the receive busy flag, letting integration tests
// pile frames up behind a drain that never finishes.
func SetDraining(n *NIC, busy bool) {
	var v uint32
	if busy {
		v = 1
	}
	atomic.StoreUint32(&n.draining, v)
}
