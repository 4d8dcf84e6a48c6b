package layers

import "starMetal/utils/binary"

// struct tcphdr {
//	__be16	source;
//	__be16	dest;
//	__be32	seq;
//	__be32	ack_seq;
//	__u16	doff:4, res1:4, flags:8;
//	__be16	window;
//	__sum16	check;
//	__be16	urg_ptr;
// };

type TCP []byte

const (
	LengthTCPMin = 20
	LengthTCPMax = 60
)

func (t *TCP) GetSrcPort() uint16 {
	return binary.BE16((*t)[0:2])
}

func (t *TCP) SetSrcPort(p uint16) {
	binary.PutBE16((*t)[0:2], p)
}

func (t *TCP) GetDstPort() uint16 {
	return binary.BE16((*t)[2:4])
}

func (t *TCP) SetDstPort(p uint16) {
	binary.PutBE16((*t)[2:4], p)
}

func (t *TCP) GetSeq() uint32 {
	return binary.BE32((*t)[4:8])
}

func (t *TCP) SetSeq(seq uint32) {
	binary.PutBE32((*t)[4:8], seq)
}

func (t *TCP) GetAckSeq() uint32 {
	return binary.BE32((*t)[8:12])
}

func (t *TCP) SetAckSeq(seq uint32) {
	binary.PutBE32((*t)[8:12], seq)
}

// GetDataOffset 返回偏移字段原始值,单位4字节
func (t *TCP) GetDataOffset() uint8 {
	return (*t)[12] >> 4
}

func (t *TCP) SetDataOffset(i uint8) {
	(*t)[12] = (*t)[12]&0x0f | i<<4
}

// GetHeaderLength 返回头部字节数
func (t *TCP) GetHeaderLength() int {
	return int((*t)[12]>>4) * 4
}

func (t *TCP) IsFlagCWR() bool {
	return (*t)[13]&128 == 128
}

func (t *TCP) SetFlagCWR(b bool) {
	if b {
		(*t)[13] |= 128
	}
}

func (t *TCP) IsFlagECE() bool {
	return (*t)[13]&64 == 64
}

func (t *TCP) SetFlagECE(b bool) {
	if b {
		(*t)[13] |= 64
	}
}

func (t *TCP) IsFlagUrg() bool {
	return (*t)[13]&32 == 32
}

func (t *TCP) SetFlagUrg(b bool) {
	if b {
		(*t)[13] |= 32
	}
}

func (t *TCP) IsFlagAck() bool {
	return (*t)[13]&16 == 16
}

func (t *TCP) SetFlagAck(b bool) {
	if b {
		(*t)[13] |= 16
	}
}

func (t *TCP) IsFlagPsh() bool {
	return (*t)[13]&8 == 8
}

func (t *TCP) SetFlagPsh(b bool) {
	if b {
		(*t)[13] |= 8
	}
}

func (t *TCP) IsFlagRst() bool {
	return (*t)[13]&4 == 4
}

func (t *TCP) SetFlagRst(b bool) {
	if b {
		(*t)[13] |= 4
	}
}

func (t *TCP) IsFlagSyn() bool {
	return (*t)[13]&2 == 2
}

func (t *TCP) SetFlagSyn(b bool) {
	if b {
		(*t)[13] |= 2
	}
}

func (t *TCP) IsFlagFin() bool {
	return (*t)[13]&1 == 1
}

func (t *TCP) SetFlagFin(b bool) {
	if b {
		(*t)[13] |= 1
	}
}

func (t *TCP) GetWindow() uint16 {
	return binary.BE16((*t)[14:16])
}

func (t *TCP) SetWindow(w uint16) {
	binary.PutBE16((*t)[14:16], w)
}

func (t *TCP) GetChecksum() uint16 {
	return binary.BE16((*t)[16:18])
}

func (t *TCP) SetChecksum(c uint16) {
	binary.PutBE16((*t)[16:18], c)
}

func (t *TCP) GetUrgPointer() uint16 {
	return binary.BE16((*t)[18:20])
}

func (t *TCP) SetUrgPointer(w uint16) {
	binary.PutBE16((*t)[18:20], w)
}
