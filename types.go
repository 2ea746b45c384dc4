package dataproto

import (
	"reflect"
)

// Type 定义了线上格式支持的值类型
type Type int

const (
	Invalid    Type = iota // 无效类型
	Bool                   // 布尔类型，1 字节
	Int8                   // 8位整数
	Uint8                  // 8位无符号整数
	Int16                  // 16位整数
	Uint16                 // 16位无符号整数
	Int32                  // 32位整数
	Uint32                 // 32位无符号整数
	Int64                  // 64位整数
	Uint64                 // 64位无符号整数
	Float32                // 32位浮点数
	Float64                // 64位浮点数
	String                 // 字符串，FlexInt 长度前缀
	Bytes                  // 字节串，FlexInt 长度前缀
	Struct                 // 结构体类型
	Array                  // 定长数组，长度由类型决定
	Slice                  // 切片，FlexInt 元素个数前缀
	Ptr                    // 指针类型
	CustomType             // 自定义类型（Encodable/Decodable）
)

// String 返回类型的字符串表示
func (t Type) String() string {
	if s, ok := typeToString[t]; ok {
		return s
	}
	return "invalid"
}

// Size 返回定长类型的字节大小，变长类型返回 0
func (t Type) Size() int {
	switch t {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// IsBasicType 判断是否为定长基本类型
func (t Type) IsBasicType() bool {
	return t.Size() > 0
}

// typeToString 定义了类型到字符串的映射关系
var typeToString = map[Type]string{
	Invalid:    "invalid",
	Bool:       "bool",
	Int8:       "int8",
	Uint8:      "uint8",
	Int16:      "int16",
	Uint16:     "uint16",
	Int32:      "int32",
	Uint32:     "uint32",
	Int64:      "int64",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	String:     "string",
	Bytes:      "bytes",
	Struct:     "struct",
	Array:      "array",
	Slice:      "slice",
	Ptr:        "ptr",
	CustomType: "custom",
}

// typeKindToType 定义了 reflect.Kind 到 Type 的映射关系
// int 和 uint 按 32 位编码，写入时检查范围
var typeKindToType = map[reflect.Kind]Type{
	reflect.Bool:    Bool,
	reflect.Int8:    Int8,
	reflect.Int16:   Int16,
	reflect.Int:     Int32,
	reflect.Int32:   Int32,
	reflect.Int64:   Int64,
	reflect.Uint8:   Uint8,
	reflect.Uint16:  Uint16,
	reflect.Uint:    Uint32,
	reflect.Uint32:  Uint32,
	reflect.Uint64:  Uint64,
	reflect.Float32: Float32,
	reflect.Float64: Float64,
	reflect.String:  String,
	reflect.Struct:  Struct,
	reflect.Array:   Array,
	reflect.Slice:   Slice,
	reflect.Ptr:     Ptr,
}
