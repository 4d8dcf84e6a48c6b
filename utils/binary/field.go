package binary

// 协议头部字段按大端读写,DMA描述符字段按小端读写。
// 调用方保证切片长度足够。

func BE16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func PutBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func BE32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func PutBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func LE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func LE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func LE64(b []byte) uint64 {
	return uint64(LE32(b)) | uint64(LE32(b[4:]))<<32
}

func PutLE64(b []byte, v uint64) {
	PutLE32(b, uint32(v))
	PutLE32(b[4:], uint32(v>>32))
}
