package dataproto

import (
	"reflect"
)

// Decodable 定义了自定义类型的解码接口。
// 通用读取器遇到实现了此接口的值时，直接把读取包交给它，不再按字段反射。
//
// Decodable lets a type take over its own decoding. The generic reader hands
// the cursor to DecodePacket instead of reflecting over the type's fields.
type Decodable interface {
	DecodePacket(r *ReadablePacket) error
}

// Encodable 是 Decodable 的写入端对应接口
// Encodable is the write-side counterpart of Decodable.
type Encodable interface {
	EncodePacket(w *WritablePacket) error
}

var (
	decodableType = reflect.TypeOf((*Decodable)(nil)).Elem()
	encodableType = reflect.TypeOf((*Encodable)(nil)).Elem()
)

// customHooks 检查类型 t 的值或指针是否实现了编解码接口
// 指针类型不单独处理，由指针遍历解引用后再检查
func customHooks(t reflect.Type) (encodes, decodes bool) {
	if t.Kind() == reflect.Ptr {
		return false, false
	}
	ptr := reflect.PointerTo(t)
	encodes = t.Implements(encodableType) || ptr.Implements(encodableType)
	decodes = ptr.Implements(decodableType)
	return encodes, decodes
}

// encodeCustom 调用值的 EncodePacket，优先使用可寻址值的指针方法集
func encodeCustom(w *WritablePacket, value reflect.Value) error {
	if value.CanAddr() {
		if enc, ok := value.Addr().Interface().(Encodable); ok {
			return enc.EncodePacket(w)
		}
	}
	if enc, ok := value.Interface().(Encodable); ok {
		return enc.EncodePacket(w)
	}
	// pointer-receiver hook on a non-addressable value: copy it first
	tmp := reflect.New(value.Type())
	tmp.Elem().Set(value)
	return tmp.Interface().(Encodable).EncodePacket(w)
}

// decodeCustom 调用可寻址值的 DecodePacket
func decodeCustom(r *ReadablePacket, value reflect.Value) error {
	return value.Addr().Interface().(Decodable).DecodePacket(r)
}
