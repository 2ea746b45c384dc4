// Package dataproto implements a compact big-endian packet codec for Go values.
// dataproto 包实现了 Go 值与紧凑二进制数据包之间的转换。
//
// 线上格式没有类型标记、魔数或版本号：一个值的编码就是其各字段按声明顺序的编码拼接。
// 读写双方必须在带外约定相同的 Go 类型。
//
// Features:
// - 大端序定长整数、浮点数和布尔值
// - FlexInt 长度前缀的字节串和 UTF-8 字符串
// - 嵌套结构体、定长数组、带元素个数的切片和指针
// - Encodable/Decodable 自定义编解码接口
//
// Features:
// - Big-endian fixed-width integers, floats and bools
// - FlexInt length-prefixed byte runs and UTF-8 strings
// - Nested structs, fixed arrays, counted slices and pointers
// - Encodable/Decodable hooks for custom wire representations
//
// The wire format carries no type tags, magic, or version: a value is the
// concatenation of its fields' encodings in declaration order, and both sides
// must agree on the Go type out of band. Nil pointers are skipped on both
// sides, so a nil written is only read back correctly into a nil template.
package dataproto

import (
	"fmt"
	"reflect"
)

// Write 将任意值按其形状写入数据包
// Write appends the encoding of v to the packet.
func (w *WritablePacket) Write(v interface{}) error {
	value, shape, err := prepareValueForWriting(v)
	if err != nil {
		return err
	}
	return shape.encode(w, value, "")
}

// Read 按模板 v 的形状从数据包读取值，v 必须是非空指针。
// 模板中已有的定长数组和 nocount 切片决定读取的元素个数。
//
// Read decodes the next value into the template v, which must be a non-nil
// pointer. Fixed arrays and nocount slices already present in the template
// decide how many elements are read.
func (r *ReadablePacket) Read(v interface{}) error {
	value, shape, err := prepareValueForReading(v)
	if err != nil {
		return err
	}
	return shape.decode(r, value, true, "")
}

// ReadValue 读取一个 T 类型的新值
// ReadValue decodes a fresh value of type T.
func ReadValue[T any](r *ReadablePacket) (T, error) {
	var v T
	err := r.Read(&v)
	return v, err
}

// Marshal 使用默认选项编码 v
// Marshal encodes v using default options.
func Marshal(v interface{}) ([]byte, error) {
	return MarshalWithOptions(v, nil)
}

// MarshalWithOptions 使用指定的选项编码 v，返回独立的字节副本
// MarshalWithOptions encodes v using the given options and returns an owned copy.
func MarshalWithOptions(v interface{}, options *Options) ([]byte, error) {
	options, err := resolveOptions(options)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	w := acquireWriter(options)
	defer releaseWriter(w)

	if err := w.Write(v); err != nil {
		options.Logger.Debug().Err(err).Str("type", fmt.Sprintf("%T", v)).Msg("marshal failed")
		return nil, err
	}
	return w.Finalize(), nil
}

// Unmarshal 使用默认选项把 data 解码到 v
// Unmarshal decodes data into v using default options.
func Unmarshal(data []byte, v interface{}) error {
	return UnmarshalWithOptions(data, v, nil)
}

// UnmarshalWithOptions 使用指定的选项把 data 解码到 v。
// Strict 模式下根值之后的剩余字节会返回 ErrTrailingData。
//
// UnmarshalWithOptions decodes data into v. In strict mode bytes left after the
// root value yield ErrTrailingData.
func UnmarshalWithOptions(data []byte, v interface{}, options *Options) error {
	options, err := resolveOptions(options)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	r := &ReadablePacket{data: data, options: options}
	if err := r.Read(v); err != nil {
		options.Logger.Debug().Err(err).Str("type", fmt.Sprintf("%T", v)).Int("offset", r.Position()).Msg("unmarshal failed")
		return err
	}
	if options.Strict && r.Remaining() > 0 {
		return fmt.Errorf("%d bytes left: %w", r.Remaining(), ErrTrailingData)
	}
	return nil
}

// Sizeof 返回 v 编码后的字节数，不进行实际写入
// Sizeof returns the encoded size of v without writing it.
func Sizeof(v interface{}) (int, error) {
	value, shape, err := prepareValueForWriting(v)
	if err != nil {
		return 0, err
	}
	return shape.size(value, defaultPackingOptions)
}

// prepareValueForWriting 准备一个值用于写入
// 解引用一层接口并解析形状
func prepareValueForWriting(data interface{}) (reflect.Value, *Shape, error) {
	if data == nil {
		return reflect.Value{}, nil, fmt.Errorf("cannot write nil data: %w", ErrUnsupportedType)
	}
	value := reflect.ValueOf(data)
	shape, err := parseShape(value.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return value, shape, nil
}

// prepareValueForReading 准备一个模板用于读取
// 模板必须是非空指针，读取目标是指针指向的值
func prepareValueForReading(data interface{}) (reflect.Value, *Shape, error) {
	value := reflect.ValueOf(data)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("read target must be a non-nil pointer, got %T: %w", data, ErrUnsupportedType)
	}
	value = value.Elem()
	shape, err := parseShape(value.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return value, shape, nil
}
