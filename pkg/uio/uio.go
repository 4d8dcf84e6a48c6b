// Package uio adapts a real PCI adapter to the driver's Host
// collaborators: configuration space through sysfs, the register
// window through a resource0 mapping, DMA pages through mlocked
// anonymous memory and the interrupt line through uio_pci_generic.
// 全程要root,而且设备得先绑到uio_pci_generic上。
package uio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"starMetal/e1000"
)

const (
	_portConfigAddress uint16 = 0x0CF8
	_portConfigData    uint16 = 0x0CFC
)

// Host serves all four collaborator interfaces for one physical
// adapter. Attach期间只有一个协程在用,latched不需要锁。
type Host struct {
	pciAddr string
	uioPath string
	log     *logrus.Entry

	latched uint32

	pages map[*byte]uint64
	addrs map[uint64][]byte
	irq   *os.File
}

// NewHost points at one adapter, pciAddr in full "0000:00:03.0" form
// and uioPath like "/dev/uio0".
func NewHost(pciAddr string, uioPath string, logger *logrus.Logger) (*Host, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := &Host{
		pciAddr: pciAddr,
		uioPath: uioPath,
		log:     logger.WithField("module", "uio"),
		pages:   make(map[*byte]uint64),
		addrs:   make(map[uint64][]byte),
	}

	if _, err := os.Stat(h.configPathFor(pciAddr)); err != nil {
		return nil, errors.Wrapf(err, "pci device %s is not visible", pciAddr)
	}
	return h, nil
}

func (h *Host) configPathFor(addr string) string {
	return fmt.Sprintf("/sys/bus/pci/devices/%s/config", addr)
}

// configPath 按照总线扫描约定,latched地址里的槽位对应0号总线上的
// 设备号,功能号恒为0。
func (h *Host) configPath(slot uint32) string {
	return h.configPathFor(fmt.Sprintf("0000:00:%02x.0", slot))
}

func (h *Host) Out32(port uint16, value uint32) {
	switch port {
	case _portConfigAddress:
		h.latched = value
	case _portConfigData:
		slot := h.latched >> 11 & 0x1f
		offset := int64(h.latched & 0xfc)

		f, err := os.OpenFile(h.configPath(slot), os.O_WRONLY, 0)
		if err != nil {
			h.log.Warnf("config write to absent slot %d dropped", slot)
			return
		}
		defer f.Close()

		raw := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
		if _, err := f.WriteAt(raw, offset); err != nil {
			h.log.Warnf("config write at 0x%02x failed: %v", offset, err)
		}
	}
}

func (h *Host) In8(port uint16) uint8 {
	slot := h.latched >> 11 & 0x1f
	offset := int64(h.latched & 0xff)

	f, err := os.Open(h.configPath(slot))
	if err != nil {
		// 空槽位读出来就是一串0xFF
		return 0xff
	}
	defer f.Close()

	raw := make([]byte, 1)
	if _, err := f.ReadAt(raw, offset); err != nil {
		return 0xff
	}
	return raw[0]
}

// MapMMIO maps resource0 of the adapter this host was built for. The
// base the driver found on the bus has to agree with it.
func (h *Host) MapMMIO(base uint32, size int) (e1000.MMIO, error) {
	path := fmt.Sprintf("/sys/bus/pci/devices/%s/resource0", h.pciAddr)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open resource0 failed")
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap resource0 failed")
	}

	h.log.Infof("mapped %s at base 0x%08x, %d bytes", path, base, size)
	return &mmioRegion{mem: mem}, nil
}

// mmioRegion 寄存器访问必须是不可拆分的32位读写,走atomic保证
// 编译器不合并不重排。
type mmioRegion struct {
	mem []byte
}

func (m *mmioRegion) Read32(offset uint32) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m.mem[offset])))
}

func (m *mmioRegion) Write32(offset uint32, value uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.mem[offset])), value)
}
