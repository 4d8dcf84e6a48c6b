// 把宿主机的一个以太网口桥到模拟的82540EM上: 从tap或AF_PACKET源
// 读帧注入模拟网卡,驱动解出来的ARP请求和ICMP echo由这里代答,
// 发送方顺带学进邻居表。
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"starMetal/e1000"
	"starMetal/layers"
	"starMetal/neigh"
	"starMetal/pkg/simnic"
	"starMetal/pkg/tap"
	"starMetal/pkg/xdptrace"
	"starMetal/utils/checksum"
	"starMetal/utils/raw"
)

const (
	_gcWaitSec         = 30
	_neighborMaxAgeSec = 300
)

var (
	_localIP  net.IP
	_localMAC net.HardwareAddr
)

func main() {
	source := flag.String("source", "tap", "frame source, tap or raw")
	ifname := flag.String("interface", "starmetal0", "interface to bridge")
	create := flag.Bool("create", false, "create the tap interface first")
	mtu := flag.Int("mtu", 1500, "mtu to set on the tap")
	localIP := flag.String("ip", "", "address this bridge answers ARP and ping for")
	trace := flag.Bool("trace", false, "attach the XDP frame counter to the interface")
	statsEvery := flag.Duration("stats", 30*time.Second, "statistics print interval")
	debug := flag.Bool("debug", false, "per-frame driver logging")
	flag.Parse()

	log.SetOutput(os.Stdout)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	_localIP = net.ParseIP(*localIP).To4()
	if _localIP == nil {
		panic(fmt.Errorf("parse ip failed: %s", *localIP))
	}

	src := openSource(*source, *ifname, *create, *mtu)

	dev := simnic.New(nil)
	table := neigh.New(time.Second * _gcWaitSec)
	defer table.Close()

	br := &bridge{src: src, table: table}

	nic, err := e1000.Attach(e1000.Host{
		Ports:      dev,
		Mapper:     dev,
		Memory:     dev,
		Interrupts: dev,
	}, &e1000.Options{Logger: log.StandardLogger(), Handler: br})
	if err != nil {
		panic(err)
	}
	_localMAC = nic.HardwareAddr()

	var counter *xdptrace.Counter
	ifindex := 0
	if *trace {
		// eBPF的map要占锁定内存
		newLimit := unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
		if err := unix.Prlimit(0, unix.RLIMIT_MEMLOCK, &newLimit, nil); err != nil {
			panic(fmt.Errorf("failed to set memlock rlimit: %v", err))
		}

		iface, err := net.InterfaceByName(*ifname)
		if err != nil {
			panic(err)
		}
		ifindex = iface.Index

		counter, err = xdptrace.NewCounter()
		if err != nil {
			panic(err)
		}
		if err = counter.Attach(ifindex); err != nil {
			panic(err)
		}
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	go func() {
		<-sc
		if counter != nil {
			if err := counter.Detach(ifindex); err != nil {
				log.Errorf("detach trace program failed: %v", err)
			}
			_ = counter.Close()
		}
		_ = src.Close()
		os.Exit(0)
	}()

	go func() {
		tc := time.NewTicker(time.Minute)
		defer tc.Stop()
		for {
			<-tc.C
			table.Expire(_neighborMaxAgeSec)
		}
	}()

	go statusLoop(nic, table, counter, *statsEvery)

	// 读循环起在主协程上,单队列口一个读者就够了
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if err != nil {
			log.Errorf("read frame source failed: %v", err)
			return
		}
		if err := dev.InjectFrame(buf[:n]); err != nil {
			// 环满了就丢,真网卡也是这么干的
			log.Debugf("inject failed: %v", err)
		}
	}
}

func openSource(kind, ifname string, create bool, mtu int) io.ReadWriteCloser {
	switch kind {
	case "tap":
		if create {
			if err := tap.Create(ifname); err != nil {
				panic(err)
			}
		}
		if err := tap.SetUp(ifname, mtu); err != nil {
			panic(err)
		}
		f, err := tap.NewFile(ifname)
		if err != nil {
			panic(err)
		}
		return f
	case "raw":
		r, err := raw.New(ifname, syscall.ETH_P_ALL, nil)
		if err != nil {
			panic(err)
		}
		if err := r.EnablePromiscuous(); err != nil {
			panic(err)
		}
		return r
	default:
		panic(fmt.Errorf("unknown frame source: %s", kind))
	}
}

func statusLoop(nic *e1000.NIC, table *neigh.RCUTable, counter *xdptrace.Counter, every time.Duration) {
	tc := time.NewTicker(every)
	defer tc.Stop()
	for {
		<-tc.C
		stats := nic.Stats()

		neighbors := 0
		table.Each(func(ip net.IP, e *neigh.Entry) {
			neighbors++
			log.Debugf("neighbor %s at %s, age tick %d", ip, e.MAC, e.LearnedAt)
		})

		hits := uint64(0)
		if counter != nil {
			h, err := counter.Hits()
			if err != nil {
				log.Errorf("read trace counter failed: %v", err)
			} else {
				hits = h
			}
		}

		fmt.Printf("[Status][%s]\n"+
			"  - Frames:              %d\n"+
			"  - Drains:              %d\n"+
			"  - CoalescedInterrupts: %d\n"+
			"  - Neighbors:           %d\n"+
			"  - XdpHits:             %d\n",
			time.Now().String(),
			stats.Frames,
			stats.Drains,
			stats.CoalescedInterrupts,
			neighbors,
			hits)
	}
}

// bridge answers on the driver's receive path. 排空描述符的协程直接
// 跑到这里,回包是同步写回源fd。
type bridge struct {
	src   io.ReadWriteCloser
	table *neigh.RCUTable
}

func (b *bridge) HandleFrame(frame e1000.DecodedFrame) {
	switch f := frame.(type) {
	case e1000.FrameARP:
		b.handleARP(f)
	case e1000.FrameIPv4:
		b.handleIPv4(f)
	case e1000.FrameIPv6:
		log.Debug("ipv6 frame ignored")
	case e1000.FrameUnknown:
		log.Debugf("unknown ethernet type 0x%04x ignored", uint16(f.EtherType))
	}
}

func (b *bridge) handleARP(f e1000.FrameARP) {
	req := f.Packet

	// 不管问的是谁,发送方先学进邻居表
	b.table.Learn(req.GetSenderProtocolAddress(), req.GetSenderLinkAddress())

	if req.GetOpCode() != layers.ARPRequest || !req.GetTargetProtocolAddress().Equal(_localIP) {
		return
	}
	if req.GetLinkType() != layers.LinkTypeEthernet ||
		req.GetProtocolType() != layers.EthernetTypeIPv4 ||
		req.GetLinkAddressLength() != 6 ||
		req.GetProtocolAddressLength() != 4 {
		log.Errorf("packet content error: %x", req)
		return
	}

	reply := make([]byte, layers.LengthEthernet+layers.LengthARPEthernetIPv4)
	eth := layers.Ethernet(reply[:layers.LengthEthernet])
	eth.SetDstAddress(req.GetSenderLinkAddress())
	eth.SetSrcAddress(_localMAC)
	eth.SetEthernetType(layers.EthernetTypeARP)
	layers.BuildReply(req, _localMAC, _localIP, layers.ARP(reply[layers.LengthEthernet:]))

	if _, err := b.src.Write(reply); err != nil {
		log.Errorf("write arp reply failed: %v", err)
	}
}

func (b *bridge) handleIPv4(f e1000.FrameIPv4) {
	if len(f.Payload) < layers.LengthIPv4Min {
		return
	}
	ip := layers.IPv4(f.Payload)
	if ip.GetVersion() != 4 {
		return
	}
	hlen := ip.GetHeaderLength()
	total := int(ip.GetTotalLen())
	// 帧尾可能带着链路层填充,一切长度以IP头里说的为准
	if hlen < layers.LengthIPv4Min || total < hlen || total > len(f.Payload) {
		return
	}

	b.table.Learn(ip.GetSrcAddr(), f.Ethernet.GetSrcAddress())

	if !ip.GetDstAddr().Equal(_localIP) {
		return
	}

	switch ip.GetProtocol() {
	case layers.IPProtocolICMPv4:
		b.replyEcho(f, ip, hlen, total)
	case layers.IPProtocolUDP:
		if total < hlen+layers.LengthUDP {
			return
		}
		udp := layers.UDP(f.Payload[hlen : hlen+layers.LengthUDP])
		log.Infof("udp %s:%d -> %s:%d, %d bytes",
			ip.GetSrcAddr(), udp.GetSrcPort(), ip.GetDstAddr(), udp.GetDstPort(), udp.GetLen())
	case layers.IPProtocolTCP:
		if total < hlen+layers.LengthTCPMin {
			return
		}
		tcp := layers.TCP(f.Payload[hlen:total])
		log.Infof("tcp %s:%d -> %s:%d, syn=%v ack=%v fin=%v rst=%v",
			ip.GetSrcAddr(), tcp.GetSrcPort(), ip.GetDstAddr(), tcp.GetDstPort(),
			tcp.IsFlagSyn(), tcp.IsFlagAck(), tcp.IsFlagFin(), tcp.IsFlagRst())
	}
}

// replyEcho 原地把echo request改成echo reply再发回去,不另拷一帧。
func (b *bridge) replyEcho(f e1000.FrameIPv4, ip layers.IPv4, hlen, total int) {
	if total < hlen+layers.LengthICMPv4 {
		return
	}
	icmp := layers.ICMPv4(f.Payload[hlen:total])
	if icmp.GetType() != layers.ICMPv4TypeEchoRequest || icmp.GetCode() != 0 {
		return
	}

	eth := f.Ethernet
	tmpMAC := make(net.HardwareAddr, 6)
	copy(tmpMAC, eth.GetSrcAddress())
	eth.SetSrcAddress(eth.GetDstAddress())
	eth.SetDstAddress(tmpMAC)

	tmpIP := make(net.IP, 4)
	copy(tmpIP, ip.GetSrcAddr())
	ip.SetSrcAddr(ip.GetDstAddr())
	ip.SetDstAddr(tmpIP)
	ip.SetTTL(64)
	ip.SetFlagDontFrag(true)
	ip.SetFragOff(0)
	ip.SetChecksum(0)
	ip.SetChecksum(checksum.TCPIPChecksum(f.Payload[:hlen], 0))

	icmp.SetType(layers.ICMPv4TypeEchoReply)
	icmp.SetChecksum(0)
	icmp.SetChecksum(checksum.TCPIPChecksum(f.Payload[hlen:total], 0))

	// Ethernet和Payload共享一片缓冲,重新拼出完整帧
	full := []byte(f.Ethernet)[:layers.LengthEthernet+total]
	if _, err := b.src.Write(full); err != nil {
		log.Errorf("write echo reply failed: %v", err)
	}
}
