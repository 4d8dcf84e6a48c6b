// 驱动一块真的82540EM。先把设备从内核驱动上解绑,绑给
// uio_pci_generic,再以root跑这个程序:
//
//	echo 0000:00:03.0 > /sys/bus/pci/devices/0000:00:03.0/driver/unbind
//	echo 8086 100e > /sys/bus/pci/drivers/uio_pci_generic/new_id
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"starMetal/e1000"
	"starMetal/pkg/uio"
)

func main() {
	pciAddr := flag.String("pci", "0000:00:03.0", "pci address the adapter sits at")
	uioPath := flag.String("uio", "/dev/uio0", "uio device bound to the adapter")
	statsEvery := flag.Duration("stats", 30*time.Second, "statistics print interval")
	debug := flag.Bool("debug", false, "per-frame logging")
	flag.Parse()

	log.SetOutput(os.Stdout)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	host, err := uio.NewHost(*pciAddr, *uioPath, log.StandardLogger())
	if err != nil {
		panic(err)
	}

	nic, err := e1000.Attach(e1000.Host{
		Ports:      host,
		Mapper:     host,
		Memory:     host,
		Interrupts: host,
	}, &e1000.Options{Logger: log.StandardLogger()})
	if err != nil {
		panic(err)
	}
	log.Infof("adapter up at slot %d, mac %s", nic.Slot(), nic.HardwareAddr())

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	go func() {
		<-sc
		_ = host.Close()
		os.Exit(0)
	}()

	tc := time.NewTicker(*statsEvery)
	defer tc.Stop()
	for {
		<-tc.C
		stats := nic.Stats()
		fmt.Printf("[Status][%s]\n"+
			"  - Frames:              %d\n"+
			"  - Drains:              %d\n"+
			"  - CoalescedInterrupts: %d\n"+
			"  - HwGoodTransmits:     %d\n"+
			"  - HwTotalTransmits:    %d\n",
			time.Now().String(),
			stats.Frames,
			stats.Drains,
			stats.CoalescedInterrupts,
			stats.HwGoodTransmits,
			stats.HwTotalTransmits)
	}
}
