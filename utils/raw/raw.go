// Package raw moves whole Ethernet frames through an AF_PACKET socket
// bound to one interface.
package raw

import (
	"net"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"starMetal/utils/binary"
)

const (
	// 放得下巨型帧
	_buffLen = 9000
)

var (
	ErrBufferIsFull = errors.New("buffer is full")
)

type Raw struct {
	fd        int
	ifindex   int
	buf       []byte
	filter    func([]byte) bool // return true to pass, or false to drop
	linkLayer syscall.SockaddrLinklayer
}

// New 在interfaceName上开一个SOCK_RAW口。protocol是ETH_P_*族的
// 以太类型,ETH_P_ALL表示全收。filter在Read内逐帧执行,可以为nil。
func New(interfaceName string, protocol int, filter func([]byte) bool) (*Raw, error) {
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, int(binary.Htons16(uint16(protocol))))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		syscall.Close(fd)
		return nil, errors.WithStack(err)
	}

	if err = syscall.BindToDevice(fd, interfaceName); err != nil {
		syscall.Close(fd)
		return nil, errors.WithStack(err)
	}

	if err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return nil, errors.WithStack(err)
	}

	var l2Addr [8]byte
	copy(l2Addr[:], iface.HardwareAddr[:])
	return &Raw{
		fd:      fd,
		ifindex: iface.Index,
		buf:     make([]byte, _buffLen),
		filter:  filter,
		linkLayer: syscall.SockaddrLinklayer{
			Protocol: binary.Htons16(uint16(protocol)),
			Ifindex:  iface.Index,
			Hatype:   0,
			Pkttype:  0,
			Halen:    6,
			Addr:     l2Addr,
		},
	}, nil
}

// EnablePromiscuous 让接口连别人的帧也收,桥接场景必开。
func (r *Raw) EnablePromiscuous() error {
	mreq := unix.PacketMreq{
		Ifindex: int32(r.ifindex),
		Type:    unix.PACKET_MR_PROMISC,
	}
	err := unix.SetsockoptPacketMreq(r.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq)
	return errors.WithStack(err)
}

func (r *Raw) Read(buf []byte) (int, error) {
	for {
		n, _, err := syscall.Recvfrom(r.fd, r.buf, 0)
		if err != nil {
			return 0, errors.WithStack(err)
		}

		if r.filter != nil {
			if !r.filter(r.buf[:n]) {
				continue
			}
		}

		if n > len(buf) {
			return 0, errors.WithStack(ErrBufferIsFull)
		}

		copy(buf, r.buf[:n])
		return n, nil
	}
}

func (r *Raw) Write(buf []byte) (int, error) {
	return len(buf), syscall.Sendto(r.fd, buf, 0, &r.linkLayer)
}

func (r *Raw) Close() error {
	return syscall.Close(r.fd)
}
