package layers

import (
	"net"

	"starMetal/utils/binary"
)

type EthernetType uint16

const (
	EthernetTypeIPv4                        EthernetType = 0x0800
	EthernetTypeARP                         EthernetType = 0x0806
	EthernetTypeIPv6                        EthernetType = 0x86DD
	EthernetTypeCiscoDiscovery              EthernetType = 0x2000
	EthernetTypeNortelDiscovery             EthernetType = 0x01a2
	EthernetTypeTransparentEthernetBridging EthernetType = 0x6558
	EthernetTypeDot1Q                       EthernetType = 0x8100
	EthernetTypePPP                         EthernetType = 0x880b
	EthernetTypePPPoEDiscovery              EthernetType = 0x8863
	EthernetTypePPPoESession                EthernetType = 0x8864
	EthernetTypeMPLSUnicast                 EthernetType = 0x8847
	EthernetTypeMPLSMulticast               EthernetType = 0x8848
	EthernetTypeEAPOL                       EthernetType = 0x888e
	EthernetTypeERSPAN                      EthernetType = 0x88be
	EthernetTypeQinQ                        EthernetType = 0x88a8
	EthernetTypeLinkLayerDiscovery          EthernetType = 0x88cc
	EthernetTypeEthernetCTP                 EthernetType = 0x9000
)

// Ethernet is the layer for Ethernet II frame headers.
// [0:6] is the destination, [6:12] the source,
// [12:14] the ether type, big endian on the wire.
type Ethernet []byte

const LengthEthernet = 14

func (e *Ethernet) GetDstAddress() net.HardwareAddr {
	return net.HardwareAddr((*e)[0:6])
}

func (e *Ethernet) SetDstAddress(addr net.HardwareAddr) {
	copy((*e)[0:6], addr[0:6])
}

func (e *Ethernet) GetSrcAddress() net.HardwareAddr {
	return net.HardwareAddr((*e)[6:12])
}

func (e *Ethernet) SetSrcAddress(addr net.HardwareAddr) {
	copy((*e)[6:12], addr[0:6])
}

// GetEthernetType 返回主机序的类型值,可直接与常量比较
func (e *Ethernet) GetEthernetType() EthernetType {
	return EthernetType(binary.BE16((*e)[12:14]))
}

func (e *Ethernet) SetEthernetType(typ EthernetType) {
	binary.PutBE16((*e)[12:14], uint16(typ))
}
