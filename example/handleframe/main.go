// 不碰真硬件的驱动演示: 在模拟的82540EM上走完整个附着流程,然后
// 持续注入流量,看驱动的分类和计数。
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	glayers "github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"

	"starMetal/e1000"
	"starMetal/pkg/simnic"
)

var _peerMAC = net.HardwareAddr{0x94, 0x94, 0x26, 0x01, 0x02, 0x03}

func main() {
	rate := flag.Duration("rate", 200*time.Millisecond, "delay between injected frames")
	count := flag.Int("count", 0, "frames to inject before exiting, 0 runs forever")
	statsEvery := flag.Duration("stats", 10*time.Second, "statistics print interval")
	debug := flag.Bool("debug", false, "per-frame driver logging")
	flag.Parse()

	log.SetOutput(os.Stdout)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	dev := simnic.New(nil)

	nic, err := e1000.Attach(e1000.Host{
		Ports:      dev,
		Mapper:     dev,
		Memory:     dev,
		Interrupts: dev,
	}, &e1000.Options{Logger: log.StandardLogger()})
	if err != nil {
		panic(err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	go func() {
		<-sc
		stats := nic.Stats()
		fmt.Printf("final: frames=%d drains=%d coalesced=%d\n",
			stats.Frames, stats.Drains, stats.CoalescedInterrupts)
		os.Exit(0)
	}()

	go func() {
		tc := time.NewTicker(*statsEvery)
		defer tc.Stop()
		for {
			<-tc.C
			stats := nic.Stats()
			fmt.Printf("[Status][%s]\n"+
				"  - Frames:              %d\n"+
				"  - Drains:              %d\n"+
				"  - CoalescedInterrupts: %d\n"+
				"  - SimPagesAllocated:   %d\n",
				time.Now().String(),
				stats.Frames,
				stats.Drains,
				stats.CoalescedInterrupts,
				dev.AllocCount())
		}
	}()

	frames := [][]byte{
		arpRequest(nic.HardwareAddr()),
		icmpEcho(nic.HardwareAddr()),
		udpQuery(nic.HardwareAddr()),
		ipv6Hello(nic.HardwareAddr()),
	}

	// 轮着注入四种帧,驱动那头的日志会按协议逐帧报出来
	for i := 0; *count == 0 || i < *count; i++ {
		if err := dev.InjectFrame(frames[i%len(frames)]); err != nil {
			log.Errorf("inject failed: %v", err)
		}
		time.Sleep(*rate)
	}

	stats := nic.Stats()
	fmt.Printf("final: frames=%d drains=%d coalesced=%d\n",
		stats.Frames, stats.Drains, stats.CoalescedInterrupts)
}

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func arpRequest(local net.HardwareAddr) []byte {
	return serialize(
		&glayers.Ethernet{
			SrcMAC:       _peerMAC,
			DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			EthernetType: glayers.EthernetTypeARP,
		},
		&glayers.ARP{
			AddrType:          glayers.LinkTypeEthernet,
			Protocol:          glayers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         glayers.ARPRequest,
			SourceHwAddress:   _peerMAC,
			SourceProtAddress: net.IP{10, 0, 0, 2},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    net.IP{10, 0, 0, 1},
		},
	)
}

func icmpEcho(local net.HardwareAddr) []byte {
	return serialize(
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: local, EthernetType: glayers.EthernetTypeIPv4},
		&glayers.IPv4{Version: 4, TTL: 64, Protocol: glayers.IPProtocolICMPv4,
			SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{10, 0, 0, 1}},
		&glayers.ICMPv4{TypeCode: glayers.CreateICMPv4TypeCode(glayers.ICMPv4TypeEchoRequest, 0)},
		gopacket.Payload("abcdefghijklmnopqrstuvw"),
	)
}

func udpQuery(local net.HardwareAddr) []byte {
	ip := &glayers.IPv4{Version: 4, TTL: 64, Protocol: glayers.IPProtocolUDP,
		SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{10, 0, 0, 1}}
	udp := &glayers.UDP{SrcPort: 61313, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		panic(err)
	}
	return serialize(
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: local, EthernetType: glayers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload("dns query"),
	)
}

func ipv6Hello(local net.HardwareAddr) []byte {
	ip6 := &glayers.IPv6{Version: 6, HopLimit: 64, NextHeader: glayers.IPProtocolUDP,
		SrcIP: net.ParseIP("fe80::2"), DstIP: net.ParseIP("fe80::1")}
	udp := &glayers.UDP{SrcPort: 5353, DstPort: 5353}
	if err := udp.SetNetworkLayerForChecksum(ip6); err != nil {
		panic(err)
	}
	return serialize(
		&glayers.Ethernet{SrcMAC: _peerMAC, DstMAC: local, EthernetType: glayers.EthernetTypeIPv6},
		ip6, udp,
	)
}
