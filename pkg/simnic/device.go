// Package simnic simulates enough of an Intel 82540EM to run the
// driver without hardware: configuration space behind the 0xCF8/0xCFC
// ports, the MMIO register file, EEPROM reads with adjustable latency,
// DMA into allocated pages and a synchronous legacy interrupt line.
// 测试和演示用,不追求完整模拟。
package simnic

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"starMetal/e1000"
	"starMetal/utils/binary"
)

const (
	_portConfigAddress uint16 = 0x0CF8
	_portConfigData    uint16 = 0x0CFC

	_configSpaceSize     = 256
	_configOffsetCommand = 4
	_commandBusMaster    = 1 << 2

	_regEERD  = 0x00014
	_regICR   = 0x000C0
	_regRDBAL = 0x02800
	_regRDBAH = 0x02804
	_regRDLEN = 0x02808
	_regRDH   = 0x02810
	_regRDT   = 0x02818

	_icrRxTimer = 1 << 7

	_eepromStart = 1 << 0
	_eepromDone  = 1 << 4

	_descSize             = 16
	_statusDescriptorDone = 1 << 0
	_statusEndOfPacket    = 1 << 1

	_pageSize      = 4096
	_firstPageAddr = 0x10000000
)

// ErrRingFull means the device has no descriptor to DMA into.
var ErrRingFull = errors.New("rx ring is full")

// Options configures the simulated adapter.
type Options struct {
	// Slot is the device's position on bus 0, must be below 4.
	Slot uint8
	// MAC is the address stored in the EEPROM.
	MAC net.HardwareAddr
	// BAR0 is the register window base the config space reports.
	BAR0 uint32
	// EEPROMLatency is how many not-done reads precede every done.
	EEPROMLatency int
	// FailAllocAfter makes AllocPage fail once that many pages were
	// handed out. Zero means never fail.
	FailAllocAfter int
}

var DefaultOptions = Options{
	Slot:          1,
	MAC:           net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56},
	BAR0:          0xfebc0000,
	EEPROMLatency: 2,
}

// Device is one simulated adapter. It satisfies all four host
// collaborator interfaces of the driver.
type Device struct {
	mu sync.Mutex

	opts Options

	configSpace [4][_configSpaceSize]byte
	configReg   uint32

	regs map[uint32]uint32

	eepromWord    uint32
	eepromPending int

	rxHead uint32

	pages     map[uint64][]byte
	addrs     map[*byte]uint64
	nextAddr  uint64
	allocated int

	handler func()
}

func New(opts *Options) *Device {
	if opts == nil {
		o := DefaultOptions
		opts = &o
	}
	if opts.Slot >= 4 {
		panic("simnic: slot out of range")
	}

	d := &Device{
		opts:     *opts,
		regs:     make(map[uint32]uint32),
		pages:    make(map[uint64][]byte),
		addrs:    make(map[*byte]uint64),
		nextAddr: _firstPageAddr,
	}

	// 不存在的槽位读出来全是FF
	for s := range d.configSpace {
		for i := range d.configSpace[s] {
			d.configSpace[s][i] = 0xff
		}
	}

	if int(opts.Slot) < len(d.configSpace) {
		cs := &d.configSpace[opts.Slot]
		for i := range cs {
			cs[i] = 0
		}
		binary.PutLE16(cs[0:2], 0x8086)
		binary.PutLE16(cs[2:4], 0x100e)
		binary.PutLE32(cs[16:20], opts.BAR0)
	}

	return d
}

// Out32 implements the config-address and config-data port writes.
func (d *Device) Out32(port uint16, value uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch port {
	case _portConfigAddress:
		d.configReg = value
	case _portConfigData:
		slot, offset, ok := d.selectedConfig(0)
		if !ok {
			return
		}
		if offset+4 <= _configSpaceSize {
			binary.PutLE32(d.configSpace[slot][offset:], value)
		}
	}
}

// In8 serves one byte of the selected configuration dword.
func (d *Device) In8(port uint16) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if port < _portConfigData || port > _portConfigData+3 {
		return 0xff
	}
	slot, offset, ok := d.selectedConfig(uint32(port - _portConfigData))
	if !ok {
		return 0xff
	}
	return d.configSpace[slot][offset]
}

// selectedConfig decodes the latched config address. The byte lane of
// the data port is ORed with the latched low bits, matching what QEMU
// does and what the byte-at-a-time scan relies on.
func (d *Device) selectedConfig(lane uint32) (int, int, bool) {
	if d.configReg&0x80000000 == 0 {
		return 0, 0, false
	}
	bus := d.configReg >> 16 & 0xff
	slot := d.configReg >> 11 & 0x1f
	offset := (d.configReg | lane) & 0xff
	if bus != 0 || int(slot) >= len(d.configSpace) {
		return 0, 0, false
	}
	return int(slot), int(offset), true
}

// MapMMIO hands out the register window when the base matches BAR0.
func (d *Device) MapMMIO(base uint32, size int) (e1000.MMIO, error) {
	if base != d.opts.BAR0 {
		return nil, errors.Errorf("no MMIO window at 0x%08x", base)
	}
	return mmioWindow{d: d}, nil
}

type mmioWindow struct {
	d *Device
}

func (w mmioWindow) Read32(offset uint32) uint32 {
	return w.d.mmioRead(offset)
}

func (w mmioWindow) Write32(offset uint32, value uint32) {
	w.d.mmioWrite(offset, value)
}

func (d *Device) mmioRead(offset uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset {
	case _regICR:
		// 读清零
		v := d.regs[offset]
		d.regs[offset] = 0
		return v
	case _regEERD:
		if d.eepromPending > 0 {
			d.eepromPending--
			return 0
		}
		return d.eepromWord
	default:
		return d.regs[offset]
	}
}

func (d *Device) mmioWrite(offset uint32, value uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset {
	case _regEERD:
		if value&_eepromStart != 0 {
			word := value >> 8 & 0xff
			d.eepromPending = d.opts.EEPROMLatency
			d.eepromWord = uint32(d.eepromData(word))<<16 | _eepromDone
		}
	case _regRDH:
		d.regs[offset] = value
		d.rxHead = value
	default:
		d.regs[offset] = value
	}
}

func (d *Device) eepromData(word uint32) uint16 {
	hi := int(word*2 + 1)
	if hi >= len(d.opts.MAC) {
		return 0
	}
	return uint16(d.opts.MAC[hi])<<8 | uint16(d.opts.MAC[word*2])
}

// AllocPage hands out one zeroed page with a fake bus address.
func (d *Device) AllocPage() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.FailAllocAfter > 0 && d.allocated >= d.opts.FailAllocAfter {
		return nil, errors.New("page allocator exhausted")
	}

	buf := make([]byte, _pageSize)
	addr := d.nextAddr
	d.nextAddr += _pageSize
	d.pages[addr] = buf
	d.addrs[&buf[0]] = addr
	d.allocated++
	return buf, nil
}

// DeviceAddress translates an allocated page back to its bus address.
func (d *Device) DeviceAddress(buf []byte) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(buf) == 0 {
		return 0, errors.New("empty buffer")
	}
	addr, ok := d.addrs[&buf[0]]
	if !ok {
		return 0, errors.New("buffer was not allocated here")
	}
	return addr, nil
}

// Buffer translates a bus address back to the page behind it.
func (d *Device) Buffer(addr uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.pages[addr]
	if !ok {
		return nil, errors.Errorf("no page at 0x%x", addr)
	}
	return buf, nil
}

// EnableInterrupt registers the line handler. The newest registration
// wins, like rewiring the ioapic entry.
func (d *Device) EnableInterrupt(handler func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
	return nil
}

// InjectFrame DMAs one complete frame into the ring and raises the
// receive interrupt, as if it had arrived on the wire.
func (d *Device) InjectFrame(frame []byte) error {
	return d.inject(frame, true)
}

// InjectRaw is InjectFrame with control over the end-of-packet bit so
// tests can stage continuation descriptors.
func (d *Device) InjectRaw(frame []byte, endOfPacket bool) error {
	return d.inject(frame, endOfPacket)
}

func (d *Device) inject(frame []byte, endOfPacket bool) error {
	d.mu.Lock()

	if d.configSpace[d.opts.Slot][_configOffsetCommand]&_commandBusMaster == 0 {
		d.mu.Unlock()
		return errors.New("bus mastering disabled, DMA refused")
	}

	ringLen := d.regs[_regRDLEN]
	if ringLen == 0 {
		d.mu.Unlock()
		return errors.New("rx ring not programmed")
	}
	count := ringLen / _descSize

	tail := d.regs[_regRDT]
	if d.rxHead == tail {
		d.mu.Unlock()
		return ErrRingFull
	}

	ringAddr := uint64(d.regs[_regRDBAL]) | uint64(d.regs[_regRDBAH])<<32
	ring, ok := d.pages[ringAddr]
	if !ok {
		d.mu.Unlock()
		return errors.Errorf("descriptor ring at 0x%x is unknown", ringAddr)
	}
	if int(d.rxHead+1)*_descSize > len(ring) {
		d.mu.Unlock()
		return errors.Errorf("descriptor %d is outside the ring page", d.rxHead)
	}

	desc := ring[d.rxHead*_descSize : d.rxHead*_descSize+_descSize]
	bufAddr := binary.LE64(desc[0:8])
	buf, ok := d.pages[bufAddr]
	if !ok {
		d.mu.Unlock()
		return errors.Errorf("descriptor %d points at unknown page 0x%x", d.rxHead, bufAddr)
	}
	if len(frame) > len(buf) {
		d.mu.Unlock()
		return errors.Errorf("frame of %d bytes exceeds the %d byte buffer", len(frame), len(buf))
	}

	copy(buf, frame)
	binary.PutLE16(desc[8:10], uint16(len(frame)))
	status := byte(_statusDescriptorDone)
	if endOfPacket {
		status |= _statusEndOfPacket
	}
	desc[12] = status

	d.rxHead = (d.rxHead + 1) % count
	d.regs[_regRDH] = d.rxHead
	d.regs[_regICR] |= _icrRxTimer

	handler := d.handler
	// 回调前必须放锁,中断处理函数会立刻回读寄存器
	d.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

// PeekRegister returns register state without read side effects.
func (d *Device) PeekRegister(offset uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[offset]
}

// AllocCount reports how many pages were handed out so far.
func (d *Device) AllocCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// BusMasterEnabled reports the command-register DMA bit.
func (d *Device) BusMasterEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configSpace[d.opts.Slot][_configOffsetCommand]&_commandBusMaster != 0
}
