package dataproto

import (
	"encoding/binary"
	"fmt"
)

// FlexInt 是一种变长无符号整数编码，用于所有长度前缀。
// 首字节的高位决定总宽度：
//
//	00xxxxxx                            1 字节，0 ~ 63
//	01xxxxxx xxxxxxxx                   2 字节，64 ~ 16383
//	1xxxxxxx xxxxxxxx xxxxxxxx xxxxxxxx 4 字节，16384 ~ 2147483647
//
// FlexInt is the variable-width unsigned integer used for every length prefix.
// The leading bits of the first byte select the total width, so a decoder never
// needs an external length. A single 1 bit after a 0 selects the 2-byte form and
// a leading 1 the 4-byte form: 64 is sent as 40 40 and 16384 as 80 00 40 00.
// Decoders reject values sent in a wider form than needed.
const (
	FlexIntMax1 = 1<<6 - 1  // 63
	FlexIntMax2 = 1<<14 - 1 // 16383
	FlexIntMax  = 1<<31 - 1 // 2147483647

	flexTag2  = 0x4000
	flexTag4  = 0x80000000
	flexMask2 = 0x3FFF
	flexMask4 = 0x7FFFFFFF
)

// FlexIntSize 返回 v 编码后的字节数
// FlexIntSize returns the number of bytes v occupies on the wire.
func FlexIntSize(v uint32) (int, error) {
	switch {
	case v <= FlexIntMax1:
		return 1, nil
	case v <= FlexIntMax2:
		return 2, nil
	case v <= FlexIntMax:
		return 4, nil
	default:
		return 0, fmt.Errorf("flexint %d exceeds %d: %w", v, FlexIntMax, ErrOutOfRange)
	}
}

// AppendFlexInt appends the canonical (shortest) encoding of v to dst.
func AppendFlexInt(dst []byte, v uint32) ([]byte, error) {
	switch {
	case v <= FlexIntMax1:
		return append(dst, byte(v)), nil
	case v <= FlexIntMax2:
		return binary.BigEndian.AppendUint16(dst, uint16(v)|flexTag2), nil
	case v <= FlexIntMax:
		return binary.BigEndian.AppendUint32(dst, v|flexTag4), nil
	default:
		return dst, fmt.Errorf("flexint %d exceeds %d: %w", v, FlexIntMax, ErrOutOfRange)
	}
}

// DecodeFlexInt 解码 b 开头的 FlexInt，返回值和消耗的字节数
// DecodeFlexInt decodes the FlexInt at the start of b and returns the value and
// the number of bytes consumed.
func DecodeFlexInt(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrUnexpectedEndOfData
	}
	head := b[0]
	switch {
	case head&0x80 != 0:
		if len(b) < 4 {
			return 0, 0, ErrUnexpectedEndOfData
		}
		v := binary.BigEndian.Uint32(b) & flexMask4
		if v <= FlexIntMax2 {
			return 0, 0, fmt.Errorf("flexint %d in 4 bytes: %w", v, ErrInvalidEncoding)
		}
		return v, 4, nil
	case head&0x40 != 0:
		if len(b) < 2 {
			return 0, 0, ErrUnexpectedEndOfData
		}
		v := uint32(binary.BigEndian.Uint16(b) & flexMask2)
		if v <= FlexIntMax1 {
			return 0, 0, fmt.Errorf("flexint %d in 2 bytes: %w", v, ErrInvalidEncoding)
		}
		return v, 2, nil
	default:
		return uint32(head), 1, nil
	}
}
