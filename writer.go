package dataproto

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// WritablePacket 是一个只追加的写入包，拥有可增长的缓冲区和写游标。
// 所有定长值均以大端序写入。实例不能被多个 goroutine 并发使用，
// 任何写入失败后该实例都不应再继续使用。
//
// WritablePacket is an append-only packet that owns a growable buffer and a
// write cursor. It is not safe for concurrent use, and must be discarded after
// any failed write.
type WritablePacket struct {
	buf     []byte // len(buf) 为物理容量 / len(buf) is the physical capacity
	pos     int    // 写游标，即逻辑长度 / write cursor, the logical length
	options *Options
}

// NewWritablePacket 创建一个空的写入包，初始容量来自选项
// NewWritablePacket creates an empty packet with Options.InitialCapacity bytes reserved.
func NewWritablePacket(options *Options) (*WritablePacket, error) {
	options, err := resolveOptions(options)
	if err != nil {
		return nil, err
	}
	return &WritablePacket{buf: make([]byte, options.InitialCapacity), options: options}, nil
}

// NewWritablePacketBuffer 包装调用方提供的缓冲区，从偏移 0 开始写入。
// 缓冲区的全部容量作为初始容量，扩容后不再与 buf 共享内存。
//
// NewWritablePacketBuffer wraps a caller-supplied buffer; writes start at offset 0
// and the whole capacity of buf is used before the first reallocation.
func NewWritablePacketBuffer(buf []byte, options *Options) (*WritablePacket, error) {
	options, err := resolveOptions(options)
	if err != nil {
		return nil, err
	}
	return &WritablePacket{buf: buf[:cap(buf)], options: options}, nil
}

// Len returns the number of bytes written so far.
func (w *WritablePacket) Len() int { return w.pos }

// Cap returns the physical capacity of the buffer.
func (w *WritablePacket) Cap() int { return len(w.buf) }

// Bytes 返回已写入的字节，与内部缓冲区共享内存，下一次写入前有效
// Bytes returns the written bytes. The slice aliases the packet buffer and is
// only valid until the next write.
func (w *WritablePacket) Bytes() []byte { return w.buf[:w.pos] }

// Finalize 返回已写入字节的独立副本（逻辑长度，而非容量）
// Finalize returns an owned copy of exactly the bytes written.
func (w *WritablePacket) Finalize() []byte {
	out := make([]byte, w.pos)
	copy(out, w.buf[:w.pos])
	return out
}

// Reset 清空写游标，保留已分配的容量
func (w *WritablePacket) Reset() {
	w.pos = 0
}

// ensureCapacity 保证游标之后至少有 size 字节可写。
// 容量按倍数增长，保证均摊 O(1)，且从不缩小。
func (w *WritablePacket) ensureCapacity(size int) {
	need := w.pos + size
	if need <= len(w.buf) {
		return
	}
	newCap := len(w.buf) * 2
	if newCap < need {
		newCap = need
	}
	buffer := make([]byte, newCap)
	copy(buffer, w.buf[:w.pos])
	w.options.Logger.Debug().Int("from", len(w.buf)).Int("to", newCap).Int("len", w.pos).Msg("grow packet buffer")
	w.buf = buffer
}

// WriteByte 写入单个字节
func (w *WritablePacket) WriteByte(v byte) error {
	w.ensureCapacity(1)
	w.buf[w.pos] = v
	w.pos++
	return nil
}

func (w *WritablePacket) WriteInt8(v int8) {
	_ = w.WriteByte(byte(v))
}

// WriteBool 写入 1 字节布尔值，true 为 1，false 为 0
func (w *WritablePacket) WriteBool(v bool) {
	var b byte
	if v {
		b = 1
	}
	_ = w.WriteByte(b)
}

func (w *WritablePacket) WriteUint16(v uint16) {
	w.ensureCapacity(2)
	binary.BigEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
}

func (w *WritablePacket) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *WritablePacket) WriteUint32(v uint32) {
	w.ensureCapacity(4)
	binary.BigEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *WritablePacket) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *WritablePacket) WriteUint64(v uint64) {
	w.ensureCapacity(8)
	binary.BigEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

func (w *WritablePacket) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFloat32 以 IEEE-754 单精度大端序写入
func (w *WritablePacket) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 以 IEEE-754 双精度大端序写入
func (w *WritablePacket) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteFlexInt 以最短的 FlexInt 形式写入 v
// WriteFlexInt writes v in its shortest FlexInt form.
func (w *WritablePacket) WriteFlexInt(v uint32) error {
	size, err := FlexIntSize(v)
	if err != nil {
		return err
	}
	w.ensureCapacity(size)
	// capacity is reserved, so the append writes in place
	if _, err := AppendFlexInt(w.buf[:w.pos], v); err != nil {
		return err
	}
	w.pos += size
	return nil
}

// WriteRaw 写入不带长度前缀的原始字节
func (w *WritablePacket) WriteRaw(p []byte) {
	w.ensureCapacity(len(p))
	w.pos += copy(w.buf[w.pos:], p)
}

// WriteBytes 写入 FlexInt 长度前缀和原始字节
// WriteBytes writes a FlexInt length prefix followed by p.
func (w *WritablePacket) WriteBytes(p []byte) error {
	if len(p) > w.options.MaxByteRun {
		return fmt.Errorf("byte run of %d bytes exceeds %d: %w", len(p), w.options.MaxByteRun, ErrOutOfRange)
	}
	if err := w.WriteFlexInt(uint32(len(p))); err != nil {
		return err
	}
	w.WriteRaw(p)
	return nil
}

// WriteString 以 UTF-8 字节串写入字符串，非法 UTF-8 被拒绝
// WriteString writes s as a length-prefixed UTF-8 byte run.
func (w *WritablePacket) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidEncoding
	}
	if len(s) > w.options.MaxByteRun {
		return fmt.Errorf("string of %d bytes exceeds %d: %w", len(s), w.options.MaxByteRun, ErrOutOfRange)
	}
	if err := w.WriteFlexInt(uint32(len(s))); err != nil {
		return err
	}
	w.ensureCapacity(len(s))
	w.pos += copy(w.buf[w.pos:], s)
	return nil
}
