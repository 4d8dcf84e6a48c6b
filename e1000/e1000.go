// Package e1000 drives the Intel 8254x family of Gigabit Ethernet
// controllers (the 82540EM QEMU emulates). The driver owns the PCI
// bring-up, the EEPROM identity read, both descriptor rings and the
// interrupt-driven receive path; everything environment-specific
// (port I/O, MMIO mapping, DMA pages, the interrupt line) comes in
// through the Host collaborators.
package e1000

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"starMetal/utils/binary"
)

// Control bits and interrupt causes this driver uses, Section 13.4 of
// the manual.
const (
	_rctlEnable               = 1 << 1
	_rctlStoreBadPackets      = 1 << 2
	_rctlUnicastPromiscuous   = 1 << 3
	_rctlMulticastPromiscuous = 1 << 4
	_rctlLongPacketEnable     = 1 << 5
	_rctlBroadcastAccept      = 1 << 15
	_rctlBufferSize4096       = 3 << 16
	_rctlBufferSizeExtend     = 1 << 25

	_tctlEnable             = 1 << 1
	_tctlPadShortPackets    = 1 << 3
	_tctlCollisionThreshold = 0xF << 4
	_tctlCollisionDistance  = 0x200 << 12

	_tipgDefault = 0xA

	_icrTxWriteback    = 1 << 0
	_icrLinkChange     = 1 << 2
	_icrRxSeqError     = 1 << 3
	_icrRxMinThreshold = 1 << 4
	_icrRxOverrun      = 1 << 6
	_icrRxTimer        = 1 << 7
)

// ErrTransmitNotImplemented is what Transmit returns until the send
// path exists.
var ErrTransmitNotImplemented = errors.New("transmit path not implemented")

// NIC is one attached 82540EM. All adapter state lives here; attaching
// again builds an independent NIC and the newest one owns the
// hardware.
type NIC struct {
	host Host
	log  *logrus.Entry

	slot uint8
	regs registers
	mac  net.HardwareAddr

	rxArena   []byte
	rxCount   uint32
	rxBuffers [][]byte
	txArena   []byte

	handler FrameHandler

	draining  uint32
	frames    uint64
	drains    uint64
	coalesced uint64
}

// Attach locates the adapter on the bus, brings it up and registers
// the interrupt handler. 初始化顺序照手册14.4: 总线扫描 -> 使能DMA ->
// MMIO映射 -> 读MAC -> 收发环 -> 中断掩码。
func Attach(host Host, options *Options) (*NIC, error) {
	if options == nil {
		options = &DefaultOptions
	}
	if host.Ports == nil || host.Mapper == nil || host.Memory == nil || host.Interrupts == nil {
		return nil, errors.New("attach needs all four host collaborators")
	}

	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	n := &NIC{
		host: host,
		log:  logger.WithField("module", "e1000"),
	}

	slot, err := findAdapter(host.Ports)
	if err != nil {
		return nil, err
	}
	n.slot = slot

	enableBusMaster(host.Ports, slot)

	base, err := readBaseAddress(host.Ports, slot)
	if err != nil {
		return nil, errors.Wrap(err, "read BAR0 failed")
	}

	window, err := host.Mapper.MapMMIO(base, _mmioWindowSize)
	if err != nil {
		return nil, errors.Wrap(err, "map MMIO window failed")
	}
	n.regs = registers{mem: window}

	n.log.Infof("82540EM at slot %d, registers at 0x%08x", slot, base)

	pollLimit := options.EEPROMPollLimit
	if pollLimit <= 0 {
		pollLimit = DefaultOptions.EEPROMPollLimit
	}
	mac, err := readHardwareAddress(n.regs, pollLimit)
	if err != nil {
		return nil, errors.Wrap(err, "read hardware address failed")
	}
	n.mac = mac
	n.log.Infof("hardware address %s", mac)

	if err := n.initReceive(); err != nil {
		return nil, errors.Wrap(err, "init receive ring failed")
	}
	if err := n.initTransmit(); err != nil {
		return nil, errors.Wrap(err, "init transmit ring failed")
	}
	n.initInterrupts()

	n.handler = options.Handler
	if n.handler == nil {
		n.handler = loggingHandler{log: n.log}
	}

	if err := host.Interrupts.EnableInterrupt(n.HandleInterrupt); err != nil {
		return nil, errors.Wrap(err, "enable interrupt failed")
	}

	return n, nil
}

// initReceive builds the receive ring: address filter, descriptor
// arena, one data page per descriptor, then RCTL.
func (n *NIC) initReceive() error {
	// 地址过滤装EEPROM里读出的MAC
	n.regs.write(RegRAL, binary.LE32(n.mac[0:4]))
	n.regs.write(RegRAH, uint32(binary.LE16(n.mac[4:6])))

	for reg := RegMTALow; reg <= RegMTAHigh; reg += 4 {
		n.regs.write(reg, 0)
	}

	arena, err := n.host.Memory.AllocPage()
	if err != nil {
		return errors.Wrap(err, "alloc descriptor page failed")
	}
	n.rxArena = arena
	n.rxCount = ringCapacity(len(arena))
	if n.rxCount < 2 {
		return errors.Errorf("rx ring of %d descriptors is unusable", n.rxCount)
	}

	arenaAddr, err := n.host.Memory.DeviceAddress(arena)
	if err != nil {
		return errors.Wrap(err, "translate descriptor page failed")
	}

	n.regs.write(RegRDBAL, uint32(arenaAddr))
	n.regs.write(RegRDBAH, uint32(arenaAddr>>32))
	n.regs.write(RegRDLEN, uint32(len(arena)))
	n.regs.write(RegRDH, 0)
	n.regs.write(RegRDT, 0)

	n.rxBuffers = make([][]byte, n.rxCount)
	for i := uint32(0); i < n.rxCount; i++ {
		buf, err := n.host.Memory.AllocPage()
		if err != nil {
			return errors.Wrapf(err, "alloc data buffer %d failed", i)
		}
		addr, err := n.host.Memory.DeviceAddress(buf)
		if err != nil {
			return errors.Wrapf(err, "translate data buffer %d failed", i)
		}
		n.rxBuffers[i] = buf

		desc := n.rxDescriptor(i)
		desc.SetBufferAddress(addr)
		desc.SetLength(0)
		desc.SetStatus(0)
	}

	// One past the last descriptor the device may use.
	n.regs.write(RegRDT, n.rxCount-1)

	n.regs.write(RegRCTL, _rctlEnable|_rctlStoreBadPackets|
		_rctlUnicastPromiscuous|_rctlMulticastPromiscuous|
		_rctlLongPacketEnable|_rctlBroadcastAccept|
		_rctlBufferSize4096|_rctlBufferSizeExtend)
	return nil
}

// initTransmit programs the transmit ring. Setup only; nothing
// enqueues into it yet.
func (n *NIC) initTransmit() error {
	arena, err := n.host.Memory.AllocPage()
	if err != nil {
		return errors.Wrap(err, "alloc descriptor page failed")
	}
	n.txArena = arena

	addr, err := n.host.Memory.DeviceAddress(arena)
	if err != nil {
		return errors.Wrap(err, "translate descriptor page failed")
	}

	n.regs.write(RegTDBAL, uint32(addr))
	n.regs.write(RegTDBAH, uint32(addr>>32))
	n.regs.write(RegTDLEN, uint32(len(arena)))
	n.regs.write(RegTDH, 0)
	n.regs.write(RegTDT, 0)

	n.regs.write(RegTCTL, _tctlEnable|_tctlPadShortPackets|
		_tctlCollisionThreshold|_tctlCollisionDistance)
	n.regs.write(RegTIPG, _tipgDefault)
	return nil
}

func (n *NIC) initInterrupts() {
	n.regs.write(RegIMS, _icrTxWriteback|_icrLinkChange|_icrRxSeqError|
		_icrRxMinThreshold|_icrRxOverrun|_icrRxTimer)
}

func (n *NIC) rxDescriptor(i uint32) RxDescriptor {
	off := i * LengthRxDescriptor
	return RxDescriptor(n.rxArena[off : off+LengthRxDescriptor])
}

// HandleInterrupt services one legacy interrupt. Reading ICR clears
// it, so all causes dispatch off the single read.
func (n *NIC) HandleInterrupt() {
	causes := n.regs.read(RegICR)
	if causes&_icrTxWriteback != 0 {
		n.log.Debug("transmit descriptor writeback")
	} else if causes&_icrRxTimer != 0 {
		n.drainReceive()
	}
}

// drainReceive walks the descriptors the device completed between tail
// and head, classifies every end-of-packet buffer and hands the ring
// back. 跑在中断上下文,不加锁不分配;重入只记一笔然后放弃。
func (n *NIC) drainReceive() {
	if !atomic.CompareAndSwapUint32(&n.draining, 0, 1) {
		atomic.AddUint64(&n.coalesced, 1)
		n.log.Debug("receive interrupt coalesced, drain already running")
		return
	}
	defer atomic.StoreUint32(&n.draining, 0)

	tail := n.regs.read(RegRDT)
	head := n.regs.read(RegRDH)

	pending := ringPending(head, tail, n.rxCount)
	idx := ringStart(tail, n.rxCount)

	for j := uint32(0); j < pending; j++ {
		desc := n.rxDescriptor(idx)
		size := desc.GetLength()
		endOfPacket := desc.IsEndOfPacket()

		buf, err := n.host.Memory.Buffer(desc.GetBufferAddress())
		if err != nil {
			n.log.Errorf("descriptor %d points nowhere: %v", idx, err)
			atomic.AddUint64(&n.frames, 1)
			idx = ringNext(idx, n.rxCount)
			continue
		}
		if int(size) > len(buf) {
			size = uint16(len(buf))
		}

		n.log.Debugf("frame %d: descriptor=%d size=%d eop=%v",
			atomic.LoadUint64(&n.frames), idx, size, endOfPacket)

		if endOfPacket {
			decoded, err := decodeFrame(buf[:size])
			if err != nil {
				n.log.Errorf("decode frame failed: %v", err)
			} else {
				n.handler.HandleFrame(decoded)
			}
		}

		// 不管有没有EOP都算一帧,和计数器语义一致
		atomic.AddUint64(&n.frames, 1)
		idx = ringNext(idx, n.rxCount)
	}

	n.regs.write(RegRDT, ringReturnTail(head, n.rxCount))
	atomic.AddUint64(&n.drains, 1)
}

// Transmit is declared for symmetry with the receive path. The
// transmit ring is programmed but nothing fills it.
// TODO: fill a descriptor and bump TDT once a send path is needed.
func (n *NIC) Transmit(frame []byte) error {
	return ErrTransmitNotImplemented
}

// HardwareAddr returns the adapter's factory MAC.
func (n *NIC) HardwareAddr() net.HardwareAddr {
	return n.mac
}

// Slot returns the PCI slot the adapter was found in.
func (n *NIC) Slot() uint8 {
	return n.slot
}

// Stats snapshots the receive counters plus two of the adapter's own
// transmit counters.
func (n *NIC) Stats() Stats {
	return Stats{
		Frames:              atomic.LoadUint64(&n.frames),
		Drains:              atomic.LoadUint64(&n.drains),
		CoalescedInterrupts: atomic.LoadUint64(&n.coalesced),
		HwGoodTransmits:     n.regs.read(RegGPTC),
		HwTotalTransmits:    n.regs.read(RegTPT),
	}
}
