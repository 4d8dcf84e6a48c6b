package e1000

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeEEPROM serves EERD and nothing else. Every trigger write starts
// a fresh read count so the test can see the polls per word.
type fakeEEPROM struct {
	words   [3]uint16
	latency int

	pending      int
	current      uint16
	readsPerWord []int
}

func (f *fakeEEPROM) Read32(offset uint32) uint32 {
	if offset != uint32(RegEERD) {
		return 0
	}
	f.readsPerWord[len(f.readsPerWord)-1]++
	if f.pending > 0 {
		f.pending--
		return 0
	}
	return uint32(f.current)<<16 | _eepromDone
}

func (f *fakeEEPROM) Write32(offset uint32, value uint32) {
	if offset != uint32(RegEERD) || value&_eepromStart == 0 {
		return
	}
	f.current = f.words[value>>_eepromAddrShift&0xff]
	f.pending = f.latency
	f.readsPerWord = append(f.readsPerWord, 0)
}

func TestReadHardwareAddress(t *testing.T) {
	f := &fakeEEPROM{words: [3]uint16{0x00ab, 0xccdd, 0xeeff}, latency: 2}

	mac, err := readHardwareAddress(registers{mem: f}, 1024)
	assert.NoError(t, err)
	assert.Equal(t, net.HardwareAddr{0xab, 0x00, 0xdd, 0xcc, 0xff, 0xee}, mac)

	// 每个字恰好3次: 2次未就绪,第3次带着数据
	assert.Equal(t, []int{3, 3, 3}, f.readsPerWord)
}

func TestReadHardwareAddressInstant(t *testing.T) {
	f := &fakeEEPROM{words: [3]uint16{0x5452, 0x1200, 0x5634}}

	mac, err := readHardwareAddress(registers{mem: f}, 1024)
	assert.NoError(t, err)
	assert.Equal(t, "52:54:00:12:34:56", mac.String())
	assert.Equal(t, []int{1, 1, 1}, f.readsPerWord)
}

func TestReadHardwareAddressTimeout(t *testing.T) {
	f := &fakeEEPROM{latency: 64}

	_, err := readHardwareAddress(registers{mem: f}, 8)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "word 0")
	assert.Equal(t, []int{8}, f.readsPerWord)
}
