package dataproto

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// ReadablePacket 是一个只读的读取包：借用的字节切片加上读游标。
// 它不复制 data，调用方在读取期间不得修改 data。
// 所有返回的字节串和字符串都是独立副本，不与 data 共享内存。
//
// ReadablePacket is a read-only cursor over a borrowed byte slice. data is not
// copied, so the caller must not mutate it while the packet is in use. Byte runs
// and strings returned by the packet are owned copies. A failed read leaves the
// cursor where it was, but the packet should be discarded anyway.
type ReadablePacket struct {
	data    []byte
	pos     int
	options *Options
}

// NewReadablePacket 创建一个读取 data 的数据包
func NewReadablePacket(data []byte, options *Options) (*ReadablePacket, error) {
	options, err := resolveOptions(options)
	if err != nil {
		return nil, err
	}
	return &ReadablePacket{data: data, options: options}, nil
}

// Position returns the read cursor.
func (r *ReadablePacket) Position() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *ReadablePacket) Remaining() int { return len(r.data) - r.pos }

// next 返回接下来的 n 个字节并推进游标，不足时不移动游标
func (r *ReadablePacket) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.pos, r.Remaining(), ErrUnexpectedEndOfData)
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

func (r *ReadablePacket) ReadByte() (byte, error) {
	p, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *ReadablePacket) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

// ReadBool 读取 1 字节布尔值，非零即为 true
func (r *ReadablePacket) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *ReadablePacket) ReadUint16() (uint16, error) {
	p, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (r *ReadablePacket) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *ReadablePacket) ReadUint32() (uint32, error) {
	p, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (r *ReadablePacket) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *ReadablePacket) ReadUint64() (uint64, error) {
	p, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

func (r *ReadablePacket) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *ReadablePacket) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *ReadablePacket) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadFlexInt 读取一个 FlexInt，宽度由首字节决定
// ReadFlexInt reads a FlexInt whose width is selected by its leading byte.
func (r *ReadablePacket) ReadFlexInt() (uint32, error) {
	v, n, err := DecodeFlexInt(r.data[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("flexint at offset %d: %w", r.pos, err)
	}
	r.pos += n
	return v, nil
}

// ReadBytes 读取 n 个原始字节（无长度前缀），返回副本
// ReadBytes reads n raw bytes and returns an owned copy.
func (r *ReadablePacket) ReadBytes(n int) ([]byte, error) {
	p, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// ReadByteArray 读取 FlexInt 长度前缀的字节串，返回副本
// ReadByteArray reads a FlexInt-prefixed byte run and returns an owned copy.
func (r *ReadablePacket) ReadByteArray() ([]byte, error) {
	start := r.pos
	p, err := r.byteRun()
	if err != nil {
		r.pos = start
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// ReadString 读取字节串并严格校验 UTF-8
// ReadString reads a byte run and decodes it as strict UTF-8.
func (r *ReadablePacket) ReadString() (string, error) {
	start := r.pos
	p, err := r.byteRun()
	if err != nil {
		r.pos = start
		return "", err
	}
	if !utf8.Valid(p) {
		r.pos = start
		return "", fmt.Errorf("string at offset %d: %w", start, ErrInvalidEncoding)
	}
	return string(p), nil
}

// byteRun 返回与 data 共享内存的字节串，调用方负责复制
func (r *ReadablePacket) byteRun() ([]byte, error) {
	length, err := r.ReadFlexInt()
	if err != nil {
		return nil, err
	}
	if int(length) > r.options.MaxByteRun {
		return nil, fmt.Errorf("byte run of %d bytes exceeds %d: %w", length, r.options.MaxByteRun, ErrOutOfRange)
	}
	return r.next(int(length))
}
