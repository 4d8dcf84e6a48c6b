package e1000_test

import (
	"io/ioutil"
	"net"
	"testing"

	"github.com/google/gopacket"
	glayers "github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"starMetal/e1000"
	"starMetal/pkg/simnic"
)

var _peerMAC = net.HardwareAddr{0x94, 0x94, 0x26, 0x01, 0x02, 0x03}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

func simHost(dev *simnic.Device) e1000.Host {
	return e1000.Host{Ports: dev, Mapper: dev, Memory: dev, Interrupts: dev}
}

func quietOptions(handler e1000.FrameHandler) *e1000.Options {
	opts := e1000.DefaultOptions
	opts.Logger = quietLogger()
	opts.Handler = handler
	return &opts
}

func attachSim(t *testing.T, dev *simnic.Device, handler e1000.FrameHandler) *e1000.NIC {
	nic, err := e1000.Attach(simHost(dev), quietOptions(handler))
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	return nic
}

// collector keeps every decoded frame in arrival order.
type collector struct {
	frames []e1000.DecodedFrame
}

func (c *collector) HandleFrame(frame e1000.DecodedFrame) {
	c.frames = append(c.frames, frame)
}

func wireFrame(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize frame failed: %v", err)
	}
	return buf.Bytes()
}

func arpFrame(t *testing.T) []byte {
	return wireFrame(t,
		&glayers.Ethernet{
			SrcMAC:       _peerMAC,
			DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			EthernetType: glayers.EthernetTypeARP,
		},
		&glayers.ARP{
			AddrType:          glayers.LinkTypeEthernet,
			Protocol:          glayers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         glayers.ARPRequest,
			SourceHwAddress:   _peerMAC,
			SourceProtAddress: net.IP{10, 0, 0, 2},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    net.IP{10, 0, 0, 1},
		},
	)
}

func icmpFrame(t *testing.T, dst net.HardwareAddr) []byte {
	return wireFrame(t,
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: dst, EthernetType: glayers.EthernetTypeIPv4},
		&glayers.IPv4{Version: 4, TTL: 64, Protocol: glayers.IPProtocolICMPv4,
			SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{10, 0, 0, 1}},
		&glayers.ICMPv4{TypeCode: glayers.CreateICMPv4TypeCode(glayers.ICMPv4TypeEchoRequest, 0)},
	)
}

func udpFrame(t *testing.T, dst net.HardwareAddr) []byte {
	ip := &glayers.IPv4{Version: 4, TTL: 64, Protocol: glayers.IPProtocolUDP,
		SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{10, 0, 0, 1}}
	udp := &glayers.UDP{SrcPort: 61313, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp checksum setup failed: %v", err)
	}
	return wireFrame(t,
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: dst, EthernetType: glayers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload("dns query"),
	)
}

func ipv6Frame(t *testing.T, dst net.HardwareAddr) []byte {
	ip6 := &glayers.IPv6{Version: 6, HopLimit: 64, NextHeader: glayers.IPProtocolUDP,
		SrcIP: net.ParseIP("fe80::2"), DstIP: net.ParseIP("fe80::1")}
	udp := &glayers.UDP{SrcPort: 5353, DstPort: 5353}
	if err := udp.SetNetworkLayerForChecksum(ip6); err != nil {
		t.Fatalf("udp checksum setup failed: %v", err)
	}
	return wireFrame(t,
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: dst, EthernetType: glayers.EthernetTypeIPv6},
		ip6, udp,
	)
}

func TestAttachProgramsAdapter(t *testing.T) {
	dev := simnic.New(nil)
	nic := attachSim(t, dev, nil)

	assert.Equal(t, simnic.DefaultOptions.MAC, nic.HardwareAddr())
	assert.Equal(t, uint8(1), nic.Slot())
	assert.True(t, dev.BusMasterEnabled())

	// 地址过滤条目是MAC的小端切片
	assert.Equal(t, uint32(0x12005452), dev.PeekRegister(uint32(e1000.RegRAL)))
	assert.Equal(t, uint32(0x5634), dev.PeekRegister(uint32(e1000.RegRAH)))

	assert.Equal(t, uint32(4096), dev.PeekRegister(uint32(e1000.RegRDLEN)))
	assert.Equal(t, uint32(0), dev.PeekRegister(uint32(e1000.RegRDH)))
	assert.Equal(t, uint32(255), dev.PeekRegister(uint32(e1000.RegRDT)))

	// 使能+坏包保留+全收+长包+广播+4096字节缓冲
	assert.Equal(t, uint32(0x0203803e), dev.PeekRegister(uint32(e1000.RegRCTL)))

	assert.Equal(t, uint32(4096), dev.PeekRegister(uint32(e1000.RegTDLEN)))
	assert.Equal(t, uint32(0x002000fa), dev.PeekRegister(uint32(e1000.RegTCTL)))
	assert.Equal(t, uint32(0xa), dev.PeekRegister(uint32(e1000.RegTIPG)))

	// TXDW, LSC, RXSEQ, RXDMT0, RXO, RXT0
	assert.Equal(t, uint32(0xdd), dev.PeekRegister(uint32(e1000.RegIMS)))

	stats := nic.Stats()
	assert.Zero(t, stats.Frames)
	assert.Zero(t, stats.Drains)
}

func TestAttachRequiresCollaborators(t *testing.T) {
	_, err := e1000.Attach(e1000.Host{}, quietOptions(nil))
	assert.Error(t, err)
}

func TestCoalesceAndCatchUp(t *testing.T) {
	dev := simnic.New(nil)
	sink := &collector{}
	nic := attachSim(t, dev, sink)

	// 占住排空路径,后面几帧的中断只能合并
	e1000.SetDraining(nic, true)
	assert.NoError(t, dev.InjectFrame(arpFrame(t)))
	assert.NoError(t, dev.InjectFrame(icmpFrame(t, nic.HardwareAddr())))
	assert.NoError(t, dev.InjectFrame(udpFrame(t, nic.HardwareAddr())))

	stats := nic.Stats()
	assert.Equal(t, uint64(3), stats.CoalescedInterrupts)
	assert.Zero(t, stats.Frames)
	assert.Empty(t, sink.frames)
	assert.Equal(t, uint32(255), dev.PeekRegister(uint32(e1000.RegRDT)))

	// 放开后下一个中断一次补齐全部四帧
	e1000.SetDraining(nic, false)
	assert.NoError(t, dev.InjectFrame(ipv6Frame(t, nic.HardwareAddr())))

	stats = nic.Stats()
	assert.Equal(t, uint64(4), stats.Frames)
	assert.Equal(t, uint64(1), stats.Drains)
	assert.Equal(t, uint64(3), stats.CoalescedInterrupts)

	if assert.Len(t, sink.frames, 4) {
		assert.IsType(t, e1000.FrameARP{}, sink.frames[0])
		assert.IsType(t, e1000.FrameIPv4{}, sink.frames[1])
		assert.IsType(t, e1000.FrameIPv4{}, sink.frames[2])
		assert.IsType(t, e1000.FrameIPv6{}, sink.frames[3])
	}

	// 排空后尾指针停在头指针身后一格
	assert.Equal(t, uint32(3), dev.PeekRegister(uint32(e1000.RegRDT)))
}

func TestBackToBackDrainsReplayTail(t *testing.T) {
	dev := simnic.New(nil)
	sink := &collector{}
	nic := attachSim(t, dev, sink)

	assert.NoError(t, dev.InjectFrame(arpFrame(t)))
	assert.Len(t, sink.frames, 1)

	// 尾指针停在头指针后一格,下一轮排空从同一格起步,
	// 上一帧会再送一次
	assert.NoError(t, dev.InjectFrame(ipv6Frame(t, nic.HardwareAddr())))

	stats := nic.Stats()
	assert.Equal(t, uint64(3), stats.Frames)
	assert.Equal(t, uint64(2), stats.Drains)

	if assert.Len(t, sink.frames, 3) {
		assert.IsType(t, e1000.FrameARP{}, sink.frames[0])
		assert.IsType(t, e1000.FrameARP{}, sink.frames[1])
		assert.IsType(t, e1000.FrameIPv6{}, sink.frames[2])
	}
	assert.Equal(t, uint32(1), dev.PeekRegister(uint32(e1000.RegRDT)))
}

func TestEOPUnsetCountsButSkipsDecode(t *testing.T) {
	dev := simnic.New(nil)
	sink := &collector{}
	nic := attachSim(t, dev, sink)

	e1000.SetDraining(nic, true)
	assert.NoError(t, dev.InjectRaw(arpFrame(t), false))
	e1000.SetDraining(nic, false)
	assert.NoError(t, dev.InjectFrame(icmpFrame(t, nic.HardwareAddr())))

	stats := nic.Stats()
	// 没有EOP的描述符也计一帧,但不会交给处理函数
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.CoalescedInterrupts)
	if assert.Len(t, sink.frames, 1) {
		assert.IsType(t, e1000.FrameIPv4{}, sink.frames[0])
	}
}

func TestReattachReallocates(t *testing.T) {
	dev := simnic.New(nil)
	first := attachSim(t, dev, nil)
	afterFirst := dev.AllocCount()

	// 描述符页 + 256个数据页 + 发送描述符页
	assert.Equal(t, 258, afterFirst)

	sink := &collector{}
	second := attachSim(t, dev, sink)
	assert.Equal(t, afterFirst*2, dev.AllocCount())

	// 新NIC接管硬件,旧NIC一帧也看不到
	assert.NoError(t, dev.InjectFrame(arpFrame(t)))
	assert.Len(t, sink.frames, 1)
	assert.Equal(t, uint64(1), second.Stats().Frames)
	assert.Equal(t, uint64(0), first.Stats().Frames)
}

func TestAttachFailures(t *testing.T) {
	// BAR0为0说明固件没给窗口,属于致命错误
	opts := simnic.DefaultOptions
	opts.BAR0 = 0
	_, err := e1000.Attach(simHost(simnic.New(&opts)), quietOptions(nil))
	assert.Error(t, err)

	// 第一页之后的分配全部失败,收环建不起来
	opts = simnic.DefaultOptions
	opts.FailAllocAfter = 1
	_, err = e1000.Attach(simHost(simnic.New(&opts)), quietOptions(nil))
	assert.Error(t, err)

	// EEPROM迟迟不就绪,有界轮询要把错误带出来
	opts = simnic.DefaultOptions
	opts.EEPROMLatency = 64
	aopts := quietOptions(nil)
	aopts.EEPROMPollLimit = 8
	_, err = e1000.Attach(simHost(simnic.New(&opts)), aopts)
	assert.Error(t, err)
}

func TestSpuriousInterrupt(t *testing.T) {
	dev := simnic.New(nil)
	nic := attachSim(t, dev, nil)

	// 中断原因寄存器是空的,什么都不该发生
	nic.HandleInterrupt()

	stats := nic.Stats()
	assert.Zero(t, stats.Frames)
	assert.Zero(t, stats.Drains)
	assert.Equal(t, uint32(255), dev.PeekRegister(uint32(e1000.RegRDT)))
}

func TestTransmitNotImplemented(t *testing.T) {
	dev := simnic.New(nil)
	nic := attachSim(t, dev, nil)

	err := nic.Transmit([]byte{0x00, 0x01, 0x02})
	assert.Equal(t, e1000.ErrTransmitNotImplemented, err)
	assert.Zero(t, nic.Stats().HwTotalTransmits)
}
