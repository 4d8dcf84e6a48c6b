package tap

import (
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Create 新建一个单队列TAP口。同名接口已存在时报错。
func Create(name string) error {
	link := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Mode:      netlink.TUNTAP_MODE_TAP,
		Flags:     netlink.TUNTAP_DEFAULTS | netlink.TUNTAP_ONE_QUEUE,
	}
	if err := netlink.LinkAdd(link); err != nil {
		return errors.Wrap(err, "create tap failed")
	}
	return nil
}

// SetUp 校验name确实是单队列TAP口,调MTU然后拉起。
// mtu为0时保持原样。
func SetUp(name string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return errors.Wrap(err, "get link by name failed")
	}

	if link.Type() != "tuntap" {
		return errors.Errorf("%s is not a tuntap device", name)
	}

	tuntap, ok := link.(*netlink.Tuntap)
	if !ok {
		return errors.Errorf("%s did not decode as tuntap", name)
	}

	if tuntap.Mode != unix.IFF_TAP {
		return errors.New("invalid tuntap type: not tap")
	}

	if tuntap.Flags&netlink.TUNTAP_ONE_QUEUE != netlink.TUNTAP_ONE_QUEUE {
		return errors.New("invalid tap property: not one queue")
	}

	if mtu > 0 {
		if err := netlink.LinkSetMTU(link, mtu); err != nil {
			return errors.Wrap(err, "set mtu failed")
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return errors.Wrap(err, "set link up failed")
	}

	return nil
}
