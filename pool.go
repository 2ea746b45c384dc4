package dataproto

import (
	"sync"
)

// MaxCapSize 定义了缓冲区的最大容量限制
// 超过此限制的写入包不会被放入对象池
//
// MaxCapSize defines the maximum capacity limit for buffers
// Packets exceeding this limit will not be put into the object pool
const MaxCapSize = 1 << 20

// writerPool 用于复用 Marshal 的写入包，减少内存分配
// writerPool is used to reuse Marshal packets to reduce allocations
var writerPool = sync.Pool{
	New: func() interface{} {
		return &WritablePacket{}
	},
}

// acquireWriter 从对象池获取写入包
// acquireWriter gets a packet from the pool
func acquireWriter(options *Options) *WritablePacket {
	w := writerPool.Get().(*WritablePacket)
	w.Reset()
	w.options = options
	if len(w.buf) < options.InitialCapacity {
		w.buf = make([]byte, options.InitialCapacity)
	}
	return w
}

// releaseWriter 将写入包放回对象池
// Finalize 已经复制了数据，所以缓冲区可以安全复用
//
// releaseWriter returns a packet to the pool. Finalize copies, so the buffer
// can be reused safely.
func releaseWriter(w *WritablePacket) {
	if w == nil || w.Cap() > MaxCapSize {
		return
	}
	w.options = nil
	writerPool.Put(w)
}
