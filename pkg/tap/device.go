// Package tap attaches to single-queue TAP interfaces and hands the
// file descriptor to whoever moves the frames.
package tap

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

// NewPtr 附着到name并返回裸fd,给自己管理读写循环的调用方。
// 阻塞模式,读侧要用独立协程。
func NewPtr(name string) (uintptr, error) {
	fd, err := createFd()
	if err != nil {
		return 0, err
	}

	err = attach(fd, name)
	if err != nil {
		syscall.Close(int(fd))
		return 0, errors.Wrap(err, "attach tap failed")
	}

	return fd, nil
}

// NewFile 附着到name并包成os.File。IFF_NO_PI去掉了4字节的
// packet info前缀,Read出来就是完整的以太网帧。
func NewFile(name string) (*os.File, error) {
	fd, err := NewPtr(name)
	if err != nil {
		return nil, err
	}

	return os.NewFile(fd, "tap:"+name), nil
}

func createFd() (uintptr, error) {
	res, err := syscall.Open("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return 0, errors.Wrap(err, "open /dev/net/tun failed")
	}

	return uintptr(res), nil
}

func attach(fd uintptr, name string) error {
	var r req

	copy(r.Name[:], name)
	r.Flags = syscall.IFF_TAP | syscall.IFF_NO_PI
	err := ioctl(fd, syscall.TUNSETIFF, uintptr(unsafe.Pointer(&r)))
	if err != nil {
		return errors.Wrap(err, "ioctl set IFF_TAP and IFF_NO_PI failed")
	}

	return nil
}
