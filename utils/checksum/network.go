package checksum

// Calculate the TCP/IP checksum defined in rfc1071. The passed-in csum is any
// initial checksum data that's already been computed.
// IPv4, ICMPv4, UDP/TCP pseudo-header sums can all reuse it.
func TCPIPChecksum(data []byte, baseCSum uint32) uint16 {
	// 避免重复获取长度
	length := len(data)
	// 计算偶数部分
	for i := 0; i < length>>1; i++ {
		baseCSum += uint32(data[i*2])<<8 + uint32(data[i*2+1])
	}
	// 奇数长度时补齐最后一个字节,低位补零
	if length&0x01 == 0x01 {
		baseCSum += uint32(data[length-1]) << 8
	}
	for baseCSum > 0xffff {
		baseCSum = (baseCSum >> 16) + (baseCSum & 0xffff)
	}
	return ^uint16(baseCSum)
}
