package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUDP_GetAll(t *testing.T) {
	p := []byte{
		0xef, 0x81, 0x00, 0x35,
		0x00, 0x24, 0x1f, 0x32,
	}

	udp := UDP(p)

	assert.Equal(t, uint16(61313), udp.GetSrcPort())
	assert.Equal(t, uint16(53), udp.GetDstPort())
	assert.Equal(t, uint16(36), udp.GetLen())
	assert.Equal(t, uint16(0x1f32), udp.GetChecksum())
}

func TestUDP_SetAll(t *testing.T) {
	p := make([]byte, LengthUDP)

	udp := UDP(p)
	udp.SetSrcPort(61313)
	udp.SetDstPort(53)
	udp.SetLen(36)
	udp.SetChecksum(7986)

	assert.Equal(t, []byte{
		0xef, 0x81, 0x00, 0x35,
		0x00, 0x24, 0x1f, 0x32,
	}, p)
}
