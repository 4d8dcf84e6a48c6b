package layers

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"starMetal/utils/checksum"
)

func TestIPv4_GetAll(t *testing.T) {
	p := []byte{
		0x45,
		0x00,
		0x00, 0x3c,
		0x97, 0x8b,
		0x40, 0x00,
		0x7f,
		0x01,
		0x78, 0x4a,
		0x64, 0x61, 0x51, 0x6b,
		0x64, 0x63, 0x11, 0xbc,
	}

	ip4 := IPv4(p)

	assert.Equal(t, uint8(4), ip4.GetVersion())
	assert.Equal(t, uint8(5), ip4.GetIHL())
	assert.Equal(t, 20, ip4.GetHeaderLength())
	assert.Equal(t, uint8(0), ip4.GetTOS())
	assert.Equal(t, uint16(0x3c), ip4.GetTotalLen())
	assert.Equal(t, uint16(0x978b), ip4.GetID())
	assert.Equal(t, uint16(0), ip4.GetFragOff())
	assert.Equal(t, uint8(0x7f), ip4.GetTTL())
	assert.Equal(t, IPProtocolICMPv4, ip4.GetProtocol())
	assert.Equal(t, uint16(0x784a), ip4.GetChecksum())
	assert.Equal(t, "100.97.81.107", ip4.GetSrcAddr().String())
	assert.Equal(t, "100.99.17.188", ip4.GetDstAddr().String())
	assert.False(t, ip4.IsFlagReserved())
	assert.True(t, ip4.IsFlagDontFrag())
	assert.False(t, ip4.IsFlagMoreFrag())
}

func TestIPv4_SetAll(t *testing.T) {
	p := make([]byte, LengthIPv4Min)

	ipv4 := IPv4(p)
	ipv4.SetVersion(4)
	ipv4.SetIHL(5)
	ipv4.SetTOS(64)
	ipv4.SetTotalLen(20)
	ipv4.SetID(1)
	ipv4.SetFlagReserved(false)
	ipv4.SetFlagDontFrag(true)
	ipv4.SetFlagMoreFrag(false)
	ipv4.SetFragOff(0)
	ipv4.SetTTL(6)
	ipv4.SetProtocol(IPProtocolICMPv4)
	ipv4.SetSrcAddr(net.IP{1, 1, 1, 1})
	ipv4.SetDstAddr(net.IP{2, 2, 2, 2})

	ipv4.SetChecksum(0)
	ipv4.SetChecksum(checksum.TCPIPChecksum(p[:LengthIPv4Min], 0))

	assert.Equal(t, byte(0x45), p[0])
	assert.Equal(t, byte(0x40), p[6])
	assert.Equal(t, uint16(20), ipv4.GetTotalLen())
	// 填回校验和后整个头部按rfc1071求和必须为0
	assert.Equal(t, uint16(0), checksum.TCPIPChecksum(p[:LengthIPv4Min], 0))
}
