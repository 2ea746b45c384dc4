package dataproto

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// 格式映射表定义了线上类型到格式字符的映射关系
// Format mapping table defines the mapping from wire types to format characters
var formatMap = map[Type]string{
	Int8:       "b", // signed char (有符号字符)
	Uint8:      "B", // unsigned char (无符号字符)
	Int16:      "h", // short (短整数)
	Uint16:     "H", // unsigned short (无符号短整数)
	Int32:      "i", // int (整数)
	Uint32:     "I", // unsigned int (无符号整数)
	Int64:      "q", // long long (长整数)
	Uint64:     "Q", // unsigned long long (无符号长整数)
	Float32:    "f", // float (单精度浮点数)
	Float64:    "d", // double (双精度浮点数)
	Bool:       "?", // _Bool (布尔值)
	String:     "s", // FlexInt 前缀的 UTF-8 字符串 / FlexInt-prefixed UTF-8 string
	Bytes:      "s", // FlexInt 前缀的字节串 / FlexInt-prefixed byte run
	CustomType: "X", // 自定义编码 / custom encoding
}

// GetFormatString 返回值的格式字符串，描述其二进制布局。
// 格式类似于 Python 的 struct 模块，并做了如下扩展：
//
//	s       FlexInt 长度前缀的字节串或字符串
//	4c      4 个原始字节（定长字节数组或 nocount 字节切片）
//	3(...)  定长数组，元素布局在括号内
//	*(...)  FlexInt 元素个数前缀的切片
//	~(...)  nocount 切片，元素个数取自模板
//	&(...)  指针，为 nil 时不占字节
//	X       Encodable/Decodable 自定义编码
//	@Name   递归引用已展开的结构体
//
// GetFormatString returns a format string that describes the binary layout of
// a value. A buyer with a name, an age and a slice of {name, price, quantity}
// products is described as ">si*(sfi)". Pointers at the root are dereferenced.
func GetFormatString(data interface{}) (string, error) {
	if data == nil {
		return "", fmt.Errorf("cannot describe nil data: %w", ErrUnsupportedType)
	}
	t := reflect.TypeOf(data)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	shape, err := parseShape(t)
	if err != nil {
		return "", fmt.Errorf("failed to parse shape: %w", err)
	}

	var format strings.Builder
	format.WriteString(">")
	formatShape(&format, shape, map[*Shape]bool{})
	return format.String(), nil
}

// formatShape 处理单个形状的格式化
// formatShape handles the formatting of a single shape
func formatShape(format *strings.Builder, shape *Shape, active map[*Shape]bool) {
	if shape.encodes || shape.decodes {
		format.WriteString(formatMap[CustomType])
		return
	}

	switch shape.Type {
	case Struct:
		if active[shape] {
			format.WriteString("@" + shape.rtype.Name())
			return
		}
		active[shape] = true
		formatFields(format, shape.Fields, active)
		delete(active, shape)
	case Array:
		if shape.Elem.Type == Uint8 && shape.Elem.fixedSize() > 0 {
			format.WriteString(strconv.Itoa(shape.Length) + "c")
			return
		}
		format.WriteString(strconv.Itoa(shape.Length))
		formatGroup(format, shape.Elem, active)
	case Slice:
		format.WriteString("*")
		formatGroup(format, shape.Elem, active)
	case Ptr:
		format.WriteString("&")
		formatGroup(format, shape.Elem, active)
	default:
		format.WriteString(formatMap[shape.Type])
	}
}

// formatGroup 把元素布局包在括号内
func formatGroup(format *strings.Builder, elem *Shape, active map[*Shape]bool) {
	format.WriteString("(")
	formatShape(format, elem, active)
	format.WriteString(")")
}

// formatFields 处理字段集合的格式化。
// 遍历所有字段，为每个字段生成对应的格式字符。
//
// formatFields handles the formatting of a collection of fields.
// Iterates through all fields, generating corresponding format characters for each field.
func formatFields(format *strings.Builder, fields Fields, active map[*Shape]bool) {
	for _, field := range fields {
		if !field.NoCount {
			formatShape(format, field.Shape, active)
			continue
		}
		format.WriteString("~")
		if field.Shape.Type == Bytes {
			format.WriteString("c")
			continue
		}
		formatGroup(format, field.Shape.Elem, active)
	}
}
