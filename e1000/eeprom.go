package e1000

import (
	"net"

	"github.com/pkg/errors"
)

const (
	_eepromStart     = 1 << 0
	_eepromDone      = 1 << 4
	_eepromAddrShift = 8
	_eepromMACWords  = 3
)

// readHardwareAddress pulls the factory MAC out of EEPROM words 0..2.
// Each word is requested through EERD and polled until the done bit
// shows; the data rides the upper half of the same read that reported
// done, so a word that completes after k not-done polls costs exactly
// k+1 reads. The poll is bounded: a wedged part surfaces as an error,
// not a hang.
func readHardwareAddress(regs registers, pollLimit int) (net.HardwareAddr, error) {
	mac := make(net.HardwareAddr, 6)
	for word := 0; word < _eepromMACWords; word++ {
		regs.write(RegEERD, _eepromStart|uint32(word)<<_eepromAddrShift)

		var value uint32
		done := false
		for attempt := 0; attempt < pollLimit; attempt++ {
			value = regs.read(RegEERD)
			if value&_eepromDone != 0 {
				done = true
				break
			}
		}
		if !done {
			return nil, errors.Errorf("eeprom word %d not ready after %d polls", word, pollLimit)
		}

		// 低字节在前,和设备里存的字节序一致
		data := uint16(value >> 16)
		mac[word*2] = byte(data)
		mac[word*2+1] = byte(data >> 8)
	}
	return mac, nil
}
