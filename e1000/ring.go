package e1000

import "starMetal/utils/binary"

// RxDescriptor is one legacy receive descriptor, 16 bytes, bit-exact
// per Section 3.2.3 of the manual:
// [0:8] buffer address, [8:10] length, [10:12] packet checksum,
// [12] status, [13] errors, [14:16] special.
type RxDescriptor []byte

const LengthRxDescriptor = 16

const (
	_rxStatusDescriptorDone = 1 << 0
	_rxStatusEndOfPacket    = 1 << 1
)

func (d *RxDescriptor) GetBufferAddress() uint64 {
	return binary.LE64((*d)[0:8])
}

func (d *RxDescriptor) SetBufferAddress(addr uint64) {
	binary.PutLE64((*d)[0:8], addr)
}

func (d *RxDescriptor) GetLength() uint16 {
	return binary.LE16((*d)[8:10])
}

func (d *RxDescriptor) SetLength(l uint16) {
	binary.PutLE16((*d)[8:10], l)
}

func (d *RxDescriptor) GetStatus() uint8 {
	return (*d)[12]
}

func (d *RxDescriptor) SetStatus(s uint8) {
	(*d)[12] = s
}

func (d *RxDescriptor) IsDescriptorDone() bool {
	return (*d)[12]&_rxStatusDescriptorDone != 0
}

func (d *RxDescriptor) IsEndOfPacket() bool {
	return (*d)[12]&_rxStatusEndOfPacket != 0
}

func (d *RxDescriptor) GetErrors() uint8 {
	return (*d)[13]
}

// Ring index arithmetic. The hardware owns head, software owns tail,
// tail parks one descriptor behind head, and the walk wraps modulo
// capacity-1. The helpers keep that convention in one place where it
// can be tested without a device.

// ringCapacity is how many descriptors an arena holds.
func ringCapacity(arenaLen int) uint32 {
	return uint32(arenaLen / LengthRxDescriptor)
}

// ringStart is the first index of a drain beginning at tail.
func ringStart(tail, capacity uint32) uint32 {
	return tail % (capacity - 1)
}

// ringPending is how many descriptors the device completed between
// tail and head.
func ringPending(head, tail, capacity uint32) uint32 {
	if head > tail {
		return head - tail
	}
	return (capacity - tail - 1) + head
}

// ringNext advances one descriptor.
func ringNext(idx, capacity uint32) uint32 {
	return (idx + 1) % (capacity - 1)
}

// ringReturnTail is where tail goes after a drain that observed head:
// one descriptor behind it, wrapping to the top of the ring.
func ringReturnTail(head, capacity uint32) uint32 {
	if head == 0 {
		return capacity - 1
	}
	return head - 1
}
