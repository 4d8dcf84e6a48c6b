package neigh

import (
	"net"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"starMetal/pkg/timer"
)

// TableSize 仅为默认值,在此值内可取得最好效能,超出后仍然可用,效能会下降。
var TableSize = 1024

// Entry 一条IPv4邻居,MAC加上学到它时的滴答数。
type Entry struct {
	MAC       net.HardwareAddr
	LearnedAt int64
}

// RCUTable 读多写少的IPv4邻居表。查表无锁,全部修改串行化到后台
// 协程,克隆打补丁后整表原子替换。
type RCUTable struct {
	instance    *map[uint32]*Entry
	instancePtr uintptr
	updateChan  chan *rcuRequest
	closeChan   chan struct{}
}

type rcuRequest struct {
	op     int
	key    uint32
	value  *Entry
	cutoff int64
}

const (
	opLearn = iota
	opForget
	opExpire
)

// Learn 记住ip对应的mac,已有表项直接覆盖,时间戳取当前滴答。
func (r *RCUTable) Learn(ip net.IP, mac net.HardwareAddr) {
	key := convertIPToU32(ip)
	if key == 0 || len(mac) < 6 {
		return
	}

	// mac多半借用收包缓冲,入表前必须复制
	m := make(net.HardwareAddr, 6)
	copy(m, mac[0:6])

	r.updateChan <- &rcuRequest{
		op:  opLearn,
		key: key,
		value: &Entry{
			MAC:       m,
			LearnedAt: timer.Tick(),
		},
	}
}

// Forget 删除表项,不存在时是空操作。
func (r *RCUTable) Forget(ip net.IP) {
	key := convertIPToU32(ip)
	if key == 0 {
		return
	}

	r.updateChan <- &rcuRequest{op: opForget, key: key}
}

// Expire 删除maxAge个滴答之前学到的所有表项。
func (r *RCUTable) Expire(maxAge int64) {
	r.updateChan <- &rcuRequest{op: opExpire, cutoff: timer.Tick() - maxAge}
}

// Lookup 无锁读,查不到返回nil。
func (r *RCUTable) Lookup(ip net.IP) *Entry {
	ptr := atomic.LoadUintptr(&r.instancePtr)
	if ptr == 0 {
		return nil
	}

	table := *(*map[uint32]*Entry)(unsafe.Pointer(ptr))
	defer runtime.KeepAlive(table)

	key := convertIPToU32(ip)
	if key == 0 {
		return nil
	}
	res, ok := table[key]
	if !ok {
		return nil
	}

	return res
}

// Each 对当前一代表做一次只读遍历。遍历期间的写落在克隆上,互不干扰。
func (r *RCUTable) Each(fn func(ip net.IP, entry *Entry)) {
	ptr := atomic.LoadUintptr(&r.instancePtr)
	if ptr == 0 {
		return
	}

	table := *(*map[uint32]*Entry)(unsafe.Pointer(ptr))
	defer runtime.KeepAlive(table)

	for k, v := range table {
		fn(convertU32ToIP(k), v)
	}
}

func (r *RCUTable) updateLoop(waitTime time.Duration) {
	changed := make([]*rcuRequest, 0, TableSize)

	for {
		var first *rcuRequest
		select {
		case <-r.closeChan:
			return
		case first = <-r.updateChan:
		}

		// 复用同一片暂存区,把积压的请求一次收完
		changed = changed[:0]
		changed = append(changed, first)
		l := len(r.updateChan)
		for i := 0; i < l; i++ {
			changed = append(changed, <-r.updateChan)
		}

		// r.instance始终不为nil,克隆才有东西可抄
		cloned := cloneTable(r.instance)
		patchTable(changed, cloned)

		// 指针替换后旧表再留一段时间,还在读旧表的协程不能踩到已回收的内存
		kp := r.instance
		r.instance = cloned
		atomic.StoreUintptr(&r.instancePtr, uintptr(unsafe.Pointer(cloned)))
		time.Sleep(waitTime)
		runtime.KeepAlive(kp)
	}
}

// patchTable 把一批更新合并进传入的表。
func patchTable(reqs []*rcuRequest, table *map[uint32]*Entry) {
	for _, p := range reqs {
		switch p.op {
		case opLearn:
			(*table)[p.key] = p.value
		case opForget:
			delete(*table, p.key)
		case opExpire:
			for k, v := range *table {
				if v.LearnedAt < p.cutoff {
					delete(*table, k)
				}
			}
		}
	}
}

func convertIPToU32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}

	var res uint32
	(*(*[4]byte)(unsafe.Pointer(&res)))[0] = v4[0]
	(*(*[4]byte)(unsafe.Pointer(&res)))[1] = v4[1]
	(*(*[4]byte)(unsafe.Pointer(&res)))[2] = v4[2]
	(*(*[4]byte)(unsafe.Pointer(&res)))[3] = v4[3]

	return res
}

func convertU32ToIP(addr uint32) net.IP {
	res := make(net.IP, 4)
	res[0] = (*(*[4]byte)(unsafe.Pointer(&addr)))[0]
	res[1] = (*(*[4]byte)(unsafe.Pointer(&addr)))[1]
	res[2] = (*(*[4]byte)(unsafe.Pointer(&addr)))[2]
	res[3] = (*(*[4]byte)(unsafe.Pointer(&addr)))[3]
	return res
}

// New 开启一张新的邻居表。gcWait为指针替换后旧表的保留时间。
func New(gcWait time.Duration) *RCUTable {
	timer.StartTicker()

	m := make(map[uint32]*Entry, TableSize)

	r := RCUTable{
		instance:    &m,
		instancePtr: uintptr(unsafe.Pointer(&m)),
		updateChan:  make(chan *rcuRequest, TableSize),
		closeChan:   make(chan struct{}, 1),
	}

	go r.updateLoop(gcWait)

	return &r
}

func (r *RCUTable) Close() {
	r.closeChan <- struct{}{}
}

// cloneTable 只克隆map本身,Entry指针原样搬过去。
func cloneTable(ori *map[uint32]*Entry) *map[uint32]*Entry {
	res := make(map[uint32]*Entry, TableSize)

	for k, v := range *ori {
		res[k] = v
	}

	return &res
}
