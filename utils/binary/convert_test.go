package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwap16(t *testing.T) {
	assert.Equal(t, uint16(0x0300), Swap16(3))
	assert.Equal(t, uint16(0x8680), Swap16(0x8086))
}

func TestSwap32(t *testing.T) {
	assert.Equal(t, uint32(0x78563412), Swap32(0x12345678))
}

func TestHtons16(t *testing.T) {
	if IsBigEndian() {
		assert.Equal(t, uint16(0x0806), Htons16(0x0806))
		return
	}
	assert.Equal(t, uint16(0x0608), Htons16(0x0806))
}

func TestFieldCodec(t *testing.T) {
	b := make([]byte, 8)

	PutBE16(b, 0x8086)
	assert.Equal(t, []byte{0x80, 0x86}, b[:2])
	assert.Equal(t, uint16(0x8086), BE16(b))

	PutLE16(b, 0x100e)
	assert.Equal(t, []byte{0x0e, 0x10}, b[:2])
	assert.Equal(t, uint16(0x100e), LE16(b))

	PutBE32(b, 0xc0a80a01)
	assert.Equal(t, []byte{0xc0, 0xa8, 0x0a, 0x01}, b[:4])
	assert.Equal(t, uint32(0xc0a80a01), BE32(b))

	PutLE32(b, 0x00ab0010)
	assert.Equal(t, []byte{0x10, 0x00, 0xab, 0x00}, b[:4])
	assert.Equal(t, uint32(0x00ab0010), LE32(b))

	PutLE64(b, 0x1122334455667788)
	assert.Equal(t, uint64(0x1122334455667788), LE64(b))
	assert.Equal(t, byte(0x88), b[0])
	assert.Equal(t, byte(0x11), b[7])
}
