package e1000

import "github.com/pkg/errors"

// Legacy PCI configuration mechanism #1: a dword written to 0xCF8
// selects bus/slot/offset, the data port at 0xCFC serves the bytes.
// The byte lane of a data-port access is ORed with the latched low
// address bits, so a byte read at 0xCFC after latching offset 17
// really returns byte 17. The scan below leans on that.
const (
	_portConfigAddress uint16 = 0x0CF8
	_portConfigData    uint16 = 0x0CFC
)

const (
	_vendorIntel   uint32 = 0x8086
	_device82540EM uint32 = 0x100E
	_maxBusSlots          = 4

	_configOffsetVendor  = 0
	_configOffsetDevice  = 2
	_configOffsetCommand = 4
	_configOffsetBAR0    = 16

	_commandBusMaster uint32 = 1 << 2
)

// ErrNoDevice means the scan finished without finding the adapter.
// 扫不到设备不是故障,调用方决定要不要继续。
var ErrNoDevice = errors.New("no 8254x adapter on the bus")

func configAddress(slot uint8, offset uint8) uint32 {
	return 0x80000000 | uint32(slot)<<11 | uint32(offset)
}

// readConfigField assembles a little-endian field of size bytes
// starting at offset, reading the highest byte first.
func readConfigField(ports PortIO, slot uint8, offset uint8, size int) uint32 {
	var v uint32
	for i := size - 1; i >= 0; i-- {
		ports.Out32(_portConfigAddress, configAddress(slot, offset+uint8(i)))
		v |= uint32(ports.In8(_portConfigData)) << (8 * i)
	}
	return v
}

// findAdapter scans slots 0..3 on bus 0 for the 82540EM. First match
// wins.
func findAdapter(ports PortIO) (uint8, error) {
	for slot := uint8(0); slot < _maxBusSlots; slot++ {
		if readConfigField(ports, slot, _configOffsetVendor, 2) != _vendorIntel {
			continue
		}
		if readConfigField(ports, slot, _configOffsetDevice, 2) == _device82540EM {
			return slot, nil
		}
	}
	return 0, ErrNoDevice
}

// enableBusMaster sets command bit 2 so the adapter may DMA. The
// write-back goes through the data port as a single dword at offset 4.
func enableBusMaster(ports PortIO, slot uint8) {
	command := readConfigField(ports, slot, _configOffsetCommand, 2)
	command |= _commandBusMaster
	ports.Out32(_portConfigAddress, configAddress(slot, _configOffsetCommand))
	ports.Out32(_portConfigData, command)
}

// readBaseAddress returns BAR0, the base of the MMIO register window.
func readBaseAddress(ports PortIO, slot uint8) (uint32, error) {
	bar := readConfigField(ports, slot, _configOffsetBAR0, 4)
	if bar == 0 {
		return 0, errors.Errorf("slot %d reports no base address", slot)
	}
	return bar, nil
}
