// Package xdptrace hangs a counting XDP program off a network
// interface. The program is assembled in memory, no clang involved:
// it bumps one array slot per frame and always returns XDP_PASS, so
// it observes the interface without touching the traffic. 用来核对
// 驱动的帧计数和内核视角是否一致。
package xdptrace

import (
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
)

// DefaultXdpFlags are the flags which are passed when the XDP program
// is attached. Possible values include unix.XDP_FLAGS_DRV_MODE,
// unix.XDP_FLAGS_HW_MODE, unix.XDP_FLAGS_SKB_MODE,
// unix.XDP_FLAGS_UPDATE_IF_NOEXIST.
var DefaultXdpFlags uint32 = 0

const _xdpPass = 2

// Counter is one loaded trace program plus its hit map.
type Counter struct {
	program *ebpf.Program
	mapHits *ebpf.Map
}

// NewCounter 组装并载入程序。需要CAP_BPF或root。
func NewCounter() (*Counter, error) {
	hits, err := ebpf.NewMap(&ebpf.MapSpec{
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create hit map failed")
	}

	// r0槽位号放到栈上,查表,查到就原子加一,怎么都放行
	insns := asm.Instructions{
		asm.StoreImm(asm.RFP, -4, 0, asm.Word),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -4),
		asm.LoadMapPtr(asm.R1, hits.FD()),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, "pass"),
		asm.Mov.Imm(asm.R1, 1),
		asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
		asm.Mov.Imm(asm.R0, _xdpPass).Sym("pass"),
		asm.Return(),
	}

	program, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Type:         ebpf.XDP,
		Instructions: insns,
		License:      "GPL",
	})
	if err != nil {
		_ = hits.Close()
		return nil, errors.Wrap(err, "load trace program failed")
	}

	return &Counter{
		program: program,
		mapHits: hits,
	}, nil
}

// Attach the trace program to an interface.
func (c *Counter) Attach(ifindex int) error {
	if err := removeProgram(ifindex); err != nil {
		return err
	}
	return attachProgram(ifindex, c.program)
}

// Detach the trace program from an interface.
func (c *Counter) Detach(ifindex int) error {
	return removeProgram(ifindex)
}

// Hits 返回挂上以来经过该接口的帧数。
func (c *Counter) Hits() (uint64, error) {
	var count uint64
	if err := c.mapHits.Lookup(uint32(0), &count); err != nil {
		return 0, errors.Wrap(err, "lookup hit slot failed")
	}
	return count, nil
}

// ResetHits 把计数清零。
func (c *Counter) ResetHits() error {
	if err := c.mapHits.Put(uint32(0), uint64(0)); err != nil {
		return errors.Wrap(err, "reset hit slot failed")
	}
	return nil
}

func (c *Counter) Close() error {
	if c.mapHits != nil {
		if err := c.mapHits.Close(); err != nil {
			return err
		}
		c.mapHits = nil
	}

	if c.program != nil {
		if err := c.program.Close(); err != nil {
			return err
		}
		c.program = nil
	}

	return nil
}

// removeProgram removes an existing XDP program from the given network
// interface.
func removeProgram(ifindex int) error {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return errors.Wrap(err, "get link by index failed")
	}
	if !isXdpAttached(link) {
		return nil
	}
	if err = netlink.LinkSetXdpFd(link, -1); err != nil {
		return errors.Wrap(err, "netlink.LinkSetXdpFd(link, -1) failed")
	}
	for {
		link, err = netlink.LinkByIndex(ifindex)
		if err != nil {
			return errors.Wrap(err, "get link by index failed")
		}
		if !isXdpAttached(link) {
			break
		}
		time.Sleep(time.Second)
	}
	return nil
}

func isXdpAttached(link netlink.Link) bool {
	return link.Attrs() != nil && link.Attrs().Xdp != nil && link.Attrs().Xdp.Attached
}

// attachProgram attaches the given XDP program to the network
// interface.
func attachProgram(ifindex int, program *ebpf.Program) error {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return errors.Wrap(err, "get link by index failed")
	}

	if err = netlink.LinkSetXdpFdWithFlags(link, program.FD(), int(DefaultXdpFlags)); err != nil {
		return errors.Wrap(err, "netlink.LinkSetXdpFdWithFlags set failed")
	}

	return nil
}
