package layers

import (
	"net"

	"starMetal/utils/binary"
)

const (
	ARPRequest uint16 = 0x0001
	ARPReply   uint16 = 0x0002
)

const (
	// According to pcap-linktype(7) and http://www.tcpdump.org/linktypes.html
	LinkTypeNull           uint16 = 0
	LinkTypeEthernet       uint16 = 1
	LinkTypeAX25           uint16 = 3
	LinkTypeTokenRing      uint16 = 6
	LinkTypeArcNet         uint16 = 7
	LinkTypeSLIP           uint16 = 8
	LinkTypePPP            uint16 = 9
	LinkTypeFDDI           uint16 = 10
	LinkTypePPP_HDLC       uint16 = 50
	LinkTypePPPEthernet    uint16 = 51
	LinkTypeATM_RFC1483    uint16 = 100
	LinkTypeRaw            uint16 = 101
	LinkTypeC_HDLC         uint16 = 104
	LinkTypeIEEE802_11     uint16 = 105
	LinkTypeFRelay         uint16 = 107
	LinkTypeLoop           uint16 = 108
	LinkTypeLinuxSLL       uint16 = 113
	LinkTypeLTalk          uint16 = 114
	LinkTypePFLog          uint16 = 117
	LinkTypePrismHeader    uint16 = 119
	LinkTypeIPOverFC       uint16 = 122
	LinkTypeSunATM         uint16 = 123
	LinkTypeIEEE80211Radio uint16 = 127
	LinkTypeARCNetLinux    uint16 = 129
	LinkTypeIPOver1394     uint16 = 138
	LinkTypeMTP2Phdr       uint16 = 139
	LinkTypeMTP2           uint16 = 140
	LinkTypeMTP3           uint16 = 141
	LinkTypeSCCP           uint16 = 142
	LinkTypeDOCSIS         uint16 = 143
	LinkTypeLinuxIRDA      uint16 = 144
	LinkTypeLinuxLAPD      uint16 = 177
	LinkTypeLinuxUSB       uint16 = 220
	LinkTypeFC2            uint16 = 224
	LinkTypeFC2Framed      uint16 = 225
	LinkTypeIPv4           uint16 = 228
	LinkTypeIPv6           uint16 = 229
)

// ARP is the layer for ARP packet bodies.
// 固定头8字节,以太网/IPv4场景下地址区再占20字节:
// [0:2] link type, [2:4] protocol type, [4] hlen, [5] plen, [6:8] op,
// [8:14] sender MAC, [14:18] sender IP, [18:24] target MAC, [24:28] target IP
type ARP []byte

const (
	LengthARP             = 8
	LengthARPEthernetIPv4 = 28
)

func (a *ARP) GetLinkType() uint16 {
	return binary.BE16((*a)[0:2])
}

func (a *ARP) SetLinkType(u uint16) {
	binary.PutBE16((*a)[0:2], u)
}

func (a *ARP) GetProtocolType() EthernetType {
	return EthernetType(binary.BE16((*a)[2:4]))
}

func (a *ARP) SetProtocolType(u EthernetType) {
	binary.PutBE16((*a)[2:4], uint16(u))
}

func (a *ARP) GetLinkAddressLength() uint8 {
	return (*a)[4]
}

func (a *ARP) SetLinkAddressLength(u uint8) {
	(*a)[4] = u
}

func (a *ARP) GetProtocolAddressLength() uint8 {
	return (*a)[5]
}

func (a *ARP) SetProtocolAddressLength(u uint8) {
	(*a)[5] = u
}

func (a *ARP) GetOpCode() uint16 {
	return binary.BE16((*a)[6:8])
}

func (a *ARP) SetOpCode(u uint16) {
	binary.PutBE16((*a)[6:8], u)
}

func (a *ARP) GetSenderLinkAddress() net.HardwareAddr {
	return net.HardwareAddr((*a)[8:14])
}

func (a *ARP) SetSenderLinkAddress(addr net.HardwareAddr) {
	copy((*a)[8:14], addr[0:6])
}

func (a *ARP) GetSenderProtocolAddress() net.IP {
	return net.IP((*a)[14:18])
}

func (a *ARP) SetSenderProtocolAddress(ip net.IP) {
	copy((*a)[14:18], ip.To4())
}

func (a *ARP) GetTargetLinkAddress() net.HardwareAddr {
	return net.HardwareAddr((*a)[18:24])
}

func (a *ARP) SetTargetLinkAddress(addr net.HardwareAddr) {
	copy((*a)[18:24], addr[0:6])
}

func (a *ARP) GetTargetProtocolAddress() net.IP {
	return net.IP((*a)[24:28])
}

func (a *ARP) SetTargetProtocolAddress(ip net.IP) {
	copy((*a)[24:28], ip.To4())
}

// BuildReply 以req为模板在resp中构造应答,请求方地址回填到目标字段。
// resp至少要有LengthARPEthernetIPv4字节。
func BuildReply(req ARP, localMAC net.HardwareAddr, localIP net.IP, resp ARP) {
	resp.SetLinkType(req.GetLinkType())
	resp.SetProtocolType(req.GetProtocolType())
	resp.SetLinkAddressLength(req.GetLinkAddressLength())
	resp.SetProtocolAddressLength(req.GetProtocolAddressLength())
	resp.SetOpCode(ARPReply)
	resp.SetSenderLinkAddress(localMAC)
	resp.SetSenderProtocolAddress(localIP)
	resp.SetTargetLinkAddress(req.GetSenderLinkAddress())
	resp.SetTargetProtocolAddress(req.GetSenderProtocolAddress())
}
