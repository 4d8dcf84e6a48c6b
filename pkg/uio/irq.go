package uio

import (
	"os"

	"github.com/pkg/errors"
)

// EnableInterrupt opens the uio device and runs the handler once per
// interrupt. uio_pci_generic的约定: 写入4字节的1开中断,读阻塞到
// 下一次中断,处理完要再写一次1重新开闸。
func (h *Host) EnableInterrupt(handler func()) error {
	f, err := os.OpenFile(h.uioPath, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "open %s failed", h.uioPath)
	}
	h.irq = f

	go func() {
		enable := []byte{1, 0, 0, 0}
		count := make([]byte, 4)

		for {
			if _, err := f.Write(enable); err != nil {
				h.log.Warnf("enable interrupt failed, loop exiting: %v", err)
				return
			}
			if _, err := f.Read(count); err != nil {
				h.log.Warnf("interrupt wait failed, loop exiting: %v", err)
				return
			}
			handler()
		}
	}()

	return nil
}

// Close stops interrupt delivery. 读循环会在下一次系统调用时出错退出。
func (h *Host) Close() error {
	if h.irq == nil {
		return nil
	}
	err := h.irq.Close()
	h.irq = nil
	return err
}
