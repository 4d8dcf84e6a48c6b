package e1000

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"starMetal/layers"
)

// DecodedFrame is what the receive path hands to the frame handler,
// one concrete variant per protocol branch.
type DecodedFrame interface {
	decodedFrame()
}

// FrameIPv4 identifies an IPv4 payload. The driver stops at the
// Ethernet header; Payload starts at the IP header.
type FrameIPv4 struct {
	Ethernet layers.Ethernet
	Payload  []byte
}

// FrameIPv6 identifies an IPv6 payload, same shape as FrameIPv4.
type FrameIPv6 struct {
	Ethernet layers.Ethernet
	Payload  []byte
}

// FrameARP carries the parsed 28-byte Ethernet/IPv4 ARP body.
type FrameARP struct {
	Ethernet layers.Ethernet
	Packet   layers.ARP
}

// FrameUnknown is every other ether type, raw payload attached.
type FrameUnknown struct {
	Ethernet  layers.Ethernet
	EtherType layers.EthernetType
	Payload   []byte
}

func (FrameIPv4) decodedFrame()    {}
func (FrameIPv6) decodedFrame()    {}
func (FrameARP) decodedFrame()     {}
func (FrameUnknown) decodedFrame() {}

// FrameHandler receives decoded frames on the interrupt path. Handlers
// must not block. The views alias the ring buffers and stay valid only
// until the device reuses the descriptor.
type FrameHandler interface {
	HandleFrame(frame DecodedFrame)
}

// FrameHandlerFunc adapts a plain function to FrameHandler.
type FrameHandlerFunc func(frame DecodedFrame)

func (f FrameHandlerFunc) HandleFrame(frame DecodedFrame) { f(frame) }

// decodeFrame classifies one received buffer.
func decodeFrame(buf []byte) (DecodedFrame, error) {
	if len(buf) < layers.LengthEthernet {
		return nil, errors.Errorf("frame too short for an ethernet header: %d bytes", len(buf))
	}
	eth := layers.Ethernet(buf[:layers.LengthEthernet])
	payload := buf[layers.LengthEthernet:]

	switch typ := eth.GetEthernetType(); typ {
	case layers.EthernetTypeIPv4:
		return FrameIPv4{Ethernet: eth, Payload: payload}, nil
	case layers.EthernetTypeIPv6:
		return FrameIPv6{Ethernet: eth, Payload: payload}, nil
	case layers.EthernetTypeARP:
		if len(payload) < layers.LengthARPEthernetIPv4 {
			return nil, errors.Errorf("arp body too short: %d bytes", len(payload))
		}
		return FrameARP{Ethernet: eth, Packet: layers.ARP(payload[:layers.LengthARPEthernetIPv4])}, nil
	default:
		return FrameUnknown{Ethernet: eth, EtherType: typ, Payload: payload}, nil
	}
}

// loggingHandler is the default frame sink, printing the same
// identification lines the in-kernel driver printed.
type loggingHandler struct {
	log *logrus.Entry
}

func (h loggingHandler) HandleFrame(frame DecodedFrame) {
	switch f := frame.(type) {
	case FrameIPv4:
		h.log.Info("this is an IPv4 packet")
	case FrameIPv6:
		h.log.Info("this is an IPv6 packet")
	case FrameARP:
		p := f.Packet
		h.log.Infof("this is an ARP packet: op=%d sender=%s %s target=%s %s",
			p.GetOpCode(),
			p.GetSenderLinkAddress(), p.GetSenderProtocolAddress(),
			p.GetTargetLinkAddress(), p.GetTargetProtocolAddress())
	case FrameUnknown:
		h.log.Infof("unknown ethernet type 0x%04x", uint16(f.EtherType))
	}
}
