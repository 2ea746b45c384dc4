package dataproto

import (
	"reflect"
	"strings"
)

// Fields 是字段切片类型，用于管理结构体的字段集合
// 顺序即为线上顺序
//
// Fields is the ordered field list of a struct; slice order is wire order.
type Fields []*Field

// String 返回字段集合的字符串表示
// 主要用于调试和日志记录
func (f Fields) String() string {
	fieldStrings := make([]string, len(f))
	for i, field := range f {
		if field != nil {
			fieldStrings[i] = field.String()
		}
	}
	return "{" + strings.Join(fieldStrings, ", ") + "}"
}

// encode 按声明顺序写入结构体的每个字段
func (f Fields) encode(w *WritablePacket, structValue reflect.Value, path string) error {
	for _, field := range f {
		fieldValue := structValue.Field(field.Index)
		fieldPath := joinPath(path, field.Name)

		if field.NoCount {
			if err := field.encodeNoCount(w, fieldValue, fieldPath); err != nil {
				return err
			}
			continue
		}
		if err := field.Shape.encode(w, fieldValue, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

// decode 按声明顺序读取结构体的每个字段
func (f Fields) decode(r *ReadablePacket, structValue reflect.Value, path string) error {
	for _, field := range f {
		fieldValue := structValue.Field(field.Index)
		fieldPath := joinPath(path, field.Name)

		if field.NoCount {
			if err := field.decodeNoCount(r, fieldValue, fieldPath); err != nil {
				return err
			}
			continue
		}
		if err := field.Shape.decode(r, fieldValue, false, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

// Sizeof 计算字段集合编码后的总字节数
func (f Fields) Sizeof(structValue reflect.Value, options *Options) (int, error) {
	totalSize := 0
	for _, field := range f {
		fieldValue := structValue.Field(field.Index)
		n, err := field.Shape.size(fieldValue, options)
		if err != nil {
			return 0, fieldError(field.Name, err)
		}
		if field.NoCount {
			n -= field.countSize(fieldValue)
		}
		totalSize += n
	}
	return totalSize, nil
}

// encodeNoCount 写入不带元素个数的切片，读取端使用模板切片的长度
// encodeNoCount writes a slice without its element count; the reader relies on
// the length of its template slice.
func (field *Field) encodeNoCount(w *WritablePacket, v reflect.Value, path string) error {
	if field.Shape.Type == Bytes {
		w.WriteRaw(v.Bytes())
		return nil
	}
	return field.Shape.encodeElements(w, v, v.Len(), path)
}

func (field *Field) decodeNoCount(r *ReadablePacket, v reflect.Value, path string) error {
	if field.Shape.Type == Bytes {
		p, err := r.next(v.Len())
		if err != nil {
			return fieldError(path, err)
		}
		copy(v.Bytes(), p)
		return nil
	}
	return field.Shape.decodeElements(r, v, v.Len(), false, path)
}

// countSize 返回切片元素个数前缀占用的字节数
func (field *Field) countSize(v reflect.Value) int {
	count := v.Len()
	if field.Shape.Type == Slice {
		count = field.Shape.elemCount(v)
	}
	n, _ := FlexIntSize(uint32(count))
	return n
}
