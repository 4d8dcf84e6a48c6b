package neigh

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

const _gcWait = 10 * time.Millisecond

func (r *RCUTable) TraceEntryCount() int {
	ptr := atomic.LoadUintptr(&r.instancePtr)
	table := *(*map[uint32]*Entry)(unsafe.Pointer(ptr))
	return len(table)
}

// waitSettled 轮询到表项数达到期望为止,更新协程每轮要睡一个gcWait。
func waitSettled(tbl *RCUTable, want int) bool {
	for i := 0; i < 200; i++ {
		if tbl.TraceEntryCount() == want {
			return true
		}
		time.Sleep(_gcWait)
	}
	return false
}

func generateKV(num uint16) (net.IP, net.HardwareAddr) {
	ip := net.IP{10, 1, byte(num >> 8), byte(num)}
	mac := net.HardwareAddr{0xEE, 0, 0, 0, byte(num >> 8), byte(num)}
	return ip, mac
}

func TestNew(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	assert.Equal(t, 0, tbl.TraceEntryCount())
	assert.Nil(t, tbl.Lookup(net.IP{10, 1, 0, 0}))
}

func TestLearnAndLookup(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	for i := uint16(0); i < 1000; i++ {
		ip, mac := generateKV(i)
		tbl.Learn(ip, mac)
	}
	assert.True(t, waitSettled(tbl, 1000))

	ip, mac := generateKV(42)
	entry := tbl.Lookup(ip)
	if assert.NotNil(t, entry) {
		assert.Equal(t, mac, entry.MAC)
	}

	// 再学一遍只是覆盖,表项数不变
	tbl.Learn(ip, net.HardwareAddr{2, 2, 2, 2, 2, 2})
	assert.True(t, waitSettled(tbl, 1000))
	entry = tbl.Lookup(ip)
	if assert.NotNil(t, entry) {
		assert.Equal(t, net.HardwareAddr{2, 2, 2, 2, 2, 2}, entry.MAC)
	}
}

func TestLearnCopiesMAC(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	// 模拟借用收包缓冲的MAC,入表后缓冲被复写
	buf := []byte{0xEE, 1, 2, 3, 4, 5}
	tbl.Learn(net.IP{10, 1, 0, 1}, net.HardwareAddr(buf))
	assert.True(t, waitSettled(tbl, 1))
	copy(buf, []byte{9, 9, 9, 9, 9, 9})

	entry := tbl.Lookup(net.IP{10, 1, 0, 1})
	if assert.NotNil(t, entry) {
		assert.Equal(t, net.HardwareAddr{0xEE, 1, 2, 3, 4, 5}, entry.MAC)
	}
}

func TestLearnRejectsGarbage(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	// 纯IPv6地址进不了IPv4邻居表,太短的MAC也一样
	tbl.Learn(net.ParseIP("fe80::1"), net.HardwareAddr{1, 2, 3, 4, 5, 6})
	tbl.Learn(net.IP{10, 0, 0, 1}, net.HardwareAddr{1, 2})
	time.Sleep(5 * _gcWait)
	assert.Equal(t, 0, tbl.TraceEntryCount())
}

func TestForget(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	for i := uint16(0); i < 100; i++ {
		ip, mac := generateKV(i)
		tbl.Learn(ip, mac)
	}
	assert.True(t, waitSettled(tbl, 100))

	ip, _ := generateKV(1)
	tbl.Forget(ip)
	assert.True(t, waitSettled(tbl, 99))
	assert.Nil(t, tbl.Lookup(ip))

	other, _ := generateKV(2)
	assert.NotNil(t, tbl.Lookup(other))
}

func TestExpire(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	for i := uint16(0); i < 50; i++ {
		ip, mac := generateKV(i)
		tbl.Learn(ip, mac)
	}
	assert.True(t, waitSettled(tbl, 50))

	// 所有表项都是刚学的,一个滴答的老化线删不掉东西
	tbl.Expire(1)
	time.Sleep(5 * _gcWait)
	assert.Equal(t, 50, tbl.TraceEntryCount())

	// 老化线划到未来,整张表清空
	tbl.Expire(-1)
	assert.True(t, waitSettled(tbl, 0))
}

func TestEach(t *testing.T) {
	tbl := New(_gcWait)
	defer tbl.Close()

	seen := map[string]string{}
	tbl.Each(func(ip net.IP, e *Entry) { seen[ip.String()] = e.MAC.String() })
	assert.Empty(t, seen)

	ip, mac := generateKV(7)
	tbl.Learn(ip, mac)
	assert.True(t, waitSettled(tbl, 1))

	tbl.Each(func(ip net.IP, e *Entry) { seen[ip.String()] = e.MAC.String() })
	assert.Equal(t, map[string]string{ip.String(): mac.String()}, seen)
}

func BenchmarkLookup(b *testing.B) {
	tbl := New(_gcWait)
	defer tbl.Close()

	for i := uint16(0); i < 4000; i++ {
		ip, mac := generateKV(i)
		tbl.Learn(ip, mac)
	}
	waitSettled(tbl, 4000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ip, _ := generateKV(uint16(i % 4000))
		if tbl.Lookup(ip) == nil {
			panic("nil entry")
		}
	}
}

func BenchmarkLookupMutex(b *testing.B) {
	tbl := New(_gcWait)
	defer tbl.Close()

	for i := uint16(0); i < 4000; i++ {
		ip, mac := generateKV(i)
		tbl.Learn(ip, mac)
	}
	waitSettled(tbl, 4000)

	var lock sync.RWMutex

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ip, _ := generateKV(uint16(i % 4000))
		lock.RLock()
		entry := tbl.Lookup(ip)
		lock.RUnlock()
		if entry == nil {
			panic("nil entry")
		}
	}
}
