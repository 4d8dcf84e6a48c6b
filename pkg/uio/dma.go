package uio

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"starMetal/utils/binary"
)

// 描述符环和数据缓冲都按整页算,和RCTL里选的4096字节缓冲对齐
const _pageSize = 4096

const (
	_pagemapEntrySize = 8
	_pagemapPresent   = uint64(1) << 63
	_pagemapPFNMask   = uint64(1)<<55 - 1
)

// AllocPage mmaps one anonymous page, pins it and records the physical
// translation. 没开IOMMU时物理地址就是设备看到的DMA地址,开了的话
// 这套就不适用了。
func (h *Host) AllocPage() ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, _pageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_POPULATE)
	if err != nil {
		return nil, errors.Wrap(err, "mmap page failed")
	}

	// 钉住,换页一发生DMA地址就全作废了
	if err := unix.Mlock(buf); err != nil {
		_ = unix.Munmap(buf)
		return nil, errors.Wrap(err, "mlock page failed")
	}

	phys, err := physAddr(uintptr(unsafe.Pointer(&buf[0])))
	if err != nil {
		_ = unix.Munmap(buf)
		return nil, err
	}

	h.pages[&buf[0]] = phys
	h.addrs[phys] = buf
	h.log.Debugf("page at %p pinned, bus address 0x%x", &buf[0], phys)
	return buf, nil
}

func (h *Host) DeviceAddress(buf []byte) (uint64, error) {
	if len(buf) == 0 {
		return 0, errors.New("empty buffer has no device address")
	}
	phys, ok := h.pages[&buf[0]]
	if !ok {
		return 0, errors.Errorf("buffer at %p was not allocated here", &buf[0])
	}
	return phys, nil
}

func (h *Host) Buffer(addr uint64) ([]byte, error) {
	buf, ok := h.addrs[addr]
	if !ok {
		return nil, errors.Errorf("no pinned page at bus address 0x%x", addr)
	}
	return buf, nil
}

// physAddr 查/proc/self/pagemap把虚拟地址翻成物理地址。
func physAddr(va uintptr) (uint64, error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return 0, errors.Wrap(err, "open pagemap failed")
	}
	defer f.Close()

	entry := make([]byte, _pagemapEntrySize)
	offset := int64(va/_pageSize) * _pagemapEntrySize
	if _, err := f.ReadAt(entry, offset); err != nil {
		return 0, errors.Wrap(err, "read pagemap entry failed")
	}

	v := binary.LE64(entry)
	if v&_pagemapPresent == 0 {
		return 0, errors.New("page is not present")
	}

	pfn := v & _pagemapPFNMask
	return pfn*_pageSize + uint64(va%_pageSize), nil
}
