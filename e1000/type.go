package e1000

import "github.com/sirupsen/logrus"

// PortIO does legacy x86 port I/O for the configuration-space scan.
type PortIO interface {
	Out32(port uint16, value uint32)
	In8(port uint16) uint8
}

// MMIO is a mapped window over the adapter's register space.
type MMIO interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// MMIOMapper turns the BAR0 base into a usable window.
type MMIOMapper interface {
	MapMMIO(base uint32, size int) (MMIO, error)
}

// Memory hands out zeroed page-sized DMA buffers and translates both
// ways between driver slices and the addresses the adapter sees.
type Memory interface {
	AllocPage() ([]byte, error)
	DeviceAddress(buf []byte) (uint64, error)
	Buffer(addr uint64) ([]byte, error)
}

// Interrupts ties the driver's handler to the host's interrupt fabric.
type Interrupts interface {
	EnableInterrupt(handler func()) error
}

// Host bundles the collaborators Attach needs. 四个接口由宿主提供,
// 驱动不关心背后是模拟器还是真机。
type Host struct {
	Ports      PortIO
	Mapper     MMIOMapper
	Memory     Memory
	Interrupts Interrupts
}

// Options tunes an Attach. Start from DefaultOptions.
type Options struct {
	// Logger receives driver diagnostics, nil means the logrus
	// standard logger.
	Logger *logrus.Logger
	// Handler receives decoded frames, nil installs the logging
	// handler.
	Handler FrameHandler
	// EEPROMPollLimit bounds every EERD done-poll.
	EEPROMPollLimit int
}

var DefaultOptions = Options{
	EEPROMPollLimit: 1024,
}

// Stats is a snapshot of the receive-path counters.
type Stats struct {
	// Frames counts processed descriptors, end-of-packet or not.
	Frames uint64
	// Drains counts completed drain passes.
	Drains uint64
	// CoalescedInterrupts counts receive interrupts that arrived while
	// a drain was already running.
	CoalescedInterrupts uint64
	// HwGoodTransmits and HwTotalTransmits mirror the adapter's own
	// GPTC and TPT counters.
	HwGoodTransmits  uint32
	HwTotalTransmits uint32
}
