package e1000

import "fmt"

// Register is a byte offset into the adapter's MMIO window.
type Register uint32

// 8254x register map, offsets from Table 13-2 of the manual. Only the
// registers the driver touches are listed; everything else is out of
// bounds on purpose.
const (
	RegCTRL    Register = 0x00000
	RegSTATUS  Register = 0x00008
	RegEERD    Register = 0x00014
	RegICR     Register = 0x000C0
	RegIMS     Register = 0x000D0
	RegRCTL    Register = 0x00100
	RegTCTL    Register = 0x00400
	RegTIPG    Register = 0x00410
	RegRDBAL   Register = 0x02800
	RegRDBAH   Register = 0x02804
	RegRDLEN   Register = 0x02808
	RegRDH     Register = 0x02810
	RegRDT     Register = 0x02818
	RegTDFPC   Register = 0x03430
	RegTDBAL   Register = 0x03800
	RegTDBAH   Register = 0x03804
	RegTDLEN   Register = 0x03808
	RegTDH     Register = 0x03810
	RegTDT     Register = 0x03818
	RegGPTC    Register = 0x04080
	RegTPT     Register = 0x040D4
	RegMTALow  Register = 0x05200
	RegMTAHigh Register = 0x053FC
	RegRAL     Register = 0x05400
	RegRAH     Register = 0x05404
)

// _mmioWindowSize covers the register file and the packet buffer
// memory behind it.
const _mmioWindowSize = 0x20000

// registers is the typed window over the adapter's MMIO space. Every
// access is a single ordered 32-bit read or write at a checked offset;
// an offset outside the map is a driver bug and panics.
type registers struct {
	mem MMIO
}

func (r registers) read(reg Register) uint32 {
	checkRegister(reg)
	return r.mem.Read32(uint32(reg))
}

func (r registers) write(reg Register, value uint32) {
	checkRegister(reg)
	r.mem.Write32(uint32(reg), value)
}

func checkRegister(reg Register) {
	switch reg {
	case RegCTRL, RegSTATUS, RegEERD, RegICR, RegIMS, RegRCTL,
		RegTCTL, RegTIPG,
		RegRDBAL, RegRDBAH, RegRDLEN, RegRDH, RegRDT,
		RegTDFPC, RegTDBAL, RegTDBAH, RegTDLEN, RegTDH, RegTDT,
		RegGPTC, RegTPT, RegRAL, RegRAH:
		return
	}
	// 多播过滤表是一段寄存器数组,按4字节对齐整段放行
	if reg >= RegMTALow && reg <= RegMTAHigh && reg&3 == 0 {
		return
	}
	panic(fmt.Sprintf("e1000: bad register 0x%05x", uint32(reg)))
}
