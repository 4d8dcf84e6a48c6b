package tap

import (
	"os"
	"syscall"
)

// req 就是内核的ifreq,总长0x28字节,前16字节是接口名。
type req struct {
	Name  [0x10]byte
	Flags uint16
	pad   [0x28 - 0x10 - 2]byte
}

func ioctl(fd uintptr, request uintptr, argp uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, request, argp)
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

// SetPersist 控制tap口在fd关闭后是否保留。
func SetPersist(fd uintptr, persist bool) error {
	var v uintptr
	if persist {
		v = 1
	}
	return ioctl(fd, syscall.TUNSETPERSIST, v)
}
