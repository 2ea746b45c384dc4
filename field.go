package dataproto

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Shape 是一个 Go 类型的形状描述：线上类型、元素形状、嵌套字段和自定义接口。
// 形状由 reflect.Type 解析一次后缓存，之后的编解码不再重新反射类型结构。
//
// Shape describes how one Go type maps onto the wire: its wire type, element
// shape, nested fields and custom hooks. Shapes are resolved once per
// reflect.Type and cached.
type Shape struct {
	Type    Type   // 线上类型 / Wire type
	Length  int    // 定长数组的长度 / Length of a fixed array
	Elem    *Shape // 数组、切片、指针的元素形状 / Element shape of arrays, slices and pointers
	Fields  Fields // 结构体的字段 / Fields of a struct
	rtype   reflect.Type
	wide    bool // int/uint 按 32 位编码，需要范围检查 / int and uint travel as 32 bits and are range checked
	encodes bool // 实现了 Encodable / Implements Encodable
	decodes bool // 实现了 Decodable / Implements Decodable
}

// Field 表示结构体中的单个字段
// Field represents a single field in a struct
type Field struct {
	Name    string // 字段名称 / Field name
	Index   int    // 字段在结构体中的索引 / Field index in struct
	NoCount bool   // 切片长度取自模板 / Slice length comes from the template
	Shape   *Shape // 字段类型的形状 / Shape of the field type
}

// String 返回字段的字符串表示
// String returns a string representation of the field
func (f *Field) String() string {
	s := fmt.Sprintf("{name: %s, type: %s", f.Name, f.Shape.Type)
	if f.Shape.Type == Array {
		s += ", len: " + strconv.Itoa(f.Shape.Length)
	}
	if f.NoCount {
		s += ", nocount"
	}
	return s + "}"
}

// encode 将值 v 写入数据包，v 的类型必须是 s 描述的类型
// encode writes v, whose type must be the one s describes.
func (s *Shape) encode(w *WritablePacket, v reflect.Value, path string) error {
	if s.encodes {
		if err := encodeCustom(w, v); err != nil {
			return fieldError(path, err)
		}
		return nil
	}

	switch s.Type {
	case Bool:
		w.WriteBool(v.Bool())
	case Int8:
		w.WriteInt8(int8(v.Int()))
	case Uint8:
		_ = w.WriteByte(uint8(v.Uint()))
	case Int16:
		w.WriteInt16(int16(v.Int()))
	case Uint16:
		w.WriteUint16(uint16(v.Uint()))
	case Int32:
		if err := s.checkWide(v); err != nil {
			return fieldError(path, err)
		}
		w.WriteInt32(int32(v.Int()))
	case Uint32:
		if err := s.checkWide(v); err != nil {
			return fieldError(path, err)
		}
		w.WriteUint32(uint32(v.Uint()))
	case Int64:
		w.WriteInt64(v.Int())
	case Uint64:
		w.WriteUint64(v.Uint())
	case Float32:
		w.WriteFloat32(float32(v.Float()))
	case Float64:
		w.WriteFloat64(v.Float())
	case String:
		if err := w.WriteString(v.String()); err != nil {
			return fieldError(path, err)
		}
	case Bytes:
		if err := w.WriteBytes(v.Bytes()); err != nil {
			return fieldError(path, err)
		}
	case Struct:
		return s.Fields.encode(w, v, path)
	case Ptr:
		// 空指针不占用任何字节
		// nil pointers contribute zero bytes
		if v.IsNil() {
			return nil
		}
		return s.Elem.encode(w, v.Elem(), path)
	case Array:
		return s.encodeElements(w, v, v.Len(), path)
	case Slice:
		if err := s.writeCount(w, v, path); err != nil {
			return err
		}
		return s.encodeElements(w, v, v.Len(), path)
	default:
		return fieldError(path, fmt.Errorf("%v: %w", s.rtype, ErrUnsupportedType))
	}
	return nil
}

// checkWide 检查 int/uint 的值能否按 32 位传输
func (s *Shape) checkWide(v reflect.Value) error {
	if !s.wide {
		return nil
	}
	switch s.Type {
	case Int32:
		if n := v.Int(); n < math.MinInt32 || n > math.MaxInt32 {
			return fmt.Errorf("int %d does not fit in int32: %w", n, ErrOutOfRange)
		}
	case Uint32:
		if n := v.Uint(); n > math.MaxUint32 {
			return fmt.Errorf("uint %d does not fit in uint32: %w", n, ErrOutOfRange)
		}
	}
	return nil
}

// isNil 判断 v 是否不产生任何字节：指针链上任意一层为空即视为空
// isNil reports whether v writes nothing, i.e. some pointer along its chain is nil.
func (s *Shape) isNil(v reflect.Value) bool {
	for shape := s; shape.Type == Ptr; shape = shape.Elem {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return false
}

// elemCount 返回切片写入的元素个数，空元素不计入
func (s *Shape) elemCount(v reflect.Value) int {
	count := v.Len()
	if s.Elem.Type == Ptr {
		for i := 0; i < v.Len(); i++ {
			if s.Elem.isNil(v.Index(i)) {
				count--
			}
		}
	}
	return count
}

// writeCount 写入切片的元素个数，空指针元素不计入
func (s *Shape) writeCount(w *WritablePacket, v reflect.Value, path string) error {
	count := s.elemCount(v)
	if count > FlexIntMax {
		return fieldError(path, fmt.Errorf("slice of %d elements: %w", count, ErrOutOfRange))
	}
	if err := w.WriteFlexInt(uint32(count)); err != nil {
		return fieldError(path, err)
	}
	return nil
}

func (s *Shape) encodeElements(w *WritablePacket, v reflect.Value, n int, path string) error {
	if s.Elem.Type == Uint8 && !s.Elem.encodes && v.Kind() == reflect.Array && v.CanAddr() {
		w.WriteRaw(v.Slice(0, n).Bytes())
		return nil
	}
	for i := 0; i < n; i++ {
		if err := s.Elem.encode(w, v.Index(i), indexPath(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// decode 从数据包读取值到 v，v 必须可设置。
// alloc 为 false 时遇到空指针直接跳过（与写入端跳过空指针对应），
// 为 true 时为空指针分配新值再读取。
//
// decode reads into the settable value v. With alloc unset a nil pointer is
// skipped, mirroring the writer; with alloc set a fresh value is allocated.
func (s *Shape) decode(r *ReadablePacket, v reflect.Value, alloc bool, path string) error {
	if s.decodes {
		if err := decodeCustom(r, v); err != nil {
			return fieldError(path, err)
		}
		return nil
	}

	var err error
	switch s.Type {
	case Bool:
		var b bool
		if b, err = r.ReadBool(); err == nil {
			v.SetBool(b)
		}
	case Int8:
		var n int8
		if n, err = r.ReadInt8(); err == nil {
			v.SetInt(int64(n))
		}
	case Uint8:
		var n byte
		if n, err = r.ReadByte(); err == nil {
			v.SetUint(uint64(n))
		}
	case Int16:
		var n int16
		if n, err = r.ReadInt16(); err == nil {
			v.SetInt(int64(n))
		}
	case Uint16:
		var n uint16
		if n, err = r.ReadUint16(); err == nil {
			v.SetUint(uint64(n))
		}
	case Int32:
		var n int32
		if n, err = r.ReadInt32(); err == nil {
			v.SetInt(int64(n))
		}
	case Uint32:
		var n uint32
		if n, err = r.ReadUint32(); err == nil {
			v.SetUint(uint64(n))
		}
	case Int64:
		var n int64
		if n, err = r.ReadInt64(); err == nil {
			v.SetInt(n)
		}
	case Uint64:
		var n uint64
		if n, err = r.ReadUint64(); err == nil {
			v.SetUint(n)
		}
	case Float32:
		var f float32
		if f, err = r.ReadFloat32(); err == nil {
			v.SetFloat(float64(f))
		}
	case Float64:
		var f float64
		if f, err = r.ReadFloat64(); err == nil {
			v.SetFloat(f)
		}
	case String:
		var str string
		if str, err = r.ReadString(); err == nil {
			v.SetString(str)
		}
	case Bytes:
		var p []byte
		if p, err = r.ReadByteArray(); err == nil {
			v.SetBytes(p)
		}
	case Struct:
		return s.Fields.decode(r, v, path)
	case Ptr:
		if v.IsNil() {
			if !alloc {
				return nil
			}
			v.Set(reflect.New(s.rtype.Elem()))
		}
		return s.Elem.decode(r, v.Elem(), alloc, path)
	case Array:
		return s.decodeElements(r, v, v.Len(), false, path)
	case Slice:
		var count uint32
		if count, err = r.ReadFlexInt(); err != nil {
			break
		}
		if err = s.checkCount(r, count); err != nil {
			break
		}
		n := int(count)
		if v.Cap() >= n {
			v.SetLen(n)
		} else {
			v.Set(reflect.MakeSlice(s.rtype, n, n))
		}
		if s.Elem.rtype.Size() == 0 && s.Elem.carriesNothing() {
			return nil
		}
		return s.decodeElements(r, v, n, true, path)
	default:
		err = fmt.Errorf("%v: %w", s.rtype, ErrUnsupportedType)
	}
	if err != nil {
		return fieldError(path, err)
	}
	return nil
}

func (s *Shape) decodeElements(r *ReadablePacket, v reflect.Value, n int, alloc bool, path string) error {
	if s.Elem.Type == Uint8 && !s.Elem.decodes && v.Kind() == reflect.Array && v.CanAddr() {
		p, err := r.next(n)
		if err != nil {
			return fieldError(path, err)
		}
		copy(v.Slice(0, n).Bytes(), p)
		return nil
	}
	for i := 0; i < n; i++ {
		if err := s.Elem.decode(r, v.Index(i), alloc, indexPath(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// maxEmptyAlloc 限制不占线上字节的切片元素一次最多分配的内存
const maxEmptyAlloc = 1 << 20

// checkCount 在分配之前校验切片元素个数，拒绝剩余数据无法容纳的个数。
// 计数切片的指针元素总会被分配，所以按指针指向的值计算最小长度。
//
// checkCount rejects a slice count the remaining bytes cannot hold before
// anything is allocated.
func (s *Shape) checkCount(r *ReadablePacket, count uint32) error {
	base := s.Elem
	for base.Type == Ptr {
		base = base.Elem
	}
	n := int(count)
	if m := base.minSize(); m > 0 {
		if n > r.Remaining()/m {
			return fmt.Errorf("slice of %d elements with %d bytes left: %w", count, r.Remaining(), ErrUnexpectedEndOfData)
		}
		return nil
	}
	// 元素可能不占线上字节，个数同时受剩余数据和内存上限约束
	if size := int(s.Elem.rtype.Size()); size > 0 && n > r.Remaining() && n > maxEmptyAlloc/size {
		return fmt.Errorf("slice of %d elements with %d bytes left: %w", count, r.Remaining(), ErrUnexpectedEndOfData)
	}
	return nil
}

// carriesNothing 判断该形状的任何值都编码为零字节
func (s *Shape) carriesNothing() bool {
	if s.encodes || s.decodes {
		return false
	}
	switch s.Type {
	case Struct:
		for _, f := range s.Fields {
			if f.NoCount || !f.Shape.carriesNothing() {
				return false
			}
		}
		return true
	case Array:
		return s.Length == 0 || s.Elem.carriesNothing()
	default:
		return false
	}
}

// fixedSize 返回定长基本类型的大小，其他类型返回 0
func (s *Shape) fixedSize() int {
	if s.encodes || s.decodes {
		return 0
	}
	return s.Type.Size()
}

// minSize 返回该形状任意值编码后的最小字节数，用于在分配切片前校验元素个数
func (s *Shape) minSize() int {
	if n := s.fixedSize(); n > 0 {
		return n
	}
	switch {
	case s.encodes || s.decodes:
		return 0
	case s.Type == String || s.Type == Bytes || s.Type == Slice:
		return 1
	case s.Type == Array:
		return s.Length * s.Elem.minSize()
	case s.Type == Struct:
		total := 0
		for _, f := range s.Fields {
			if f.Shape != s && !f.NoCount {
				total += f.Shape.minSize()
			}
		}
		return total
	default:
		return 0
	}
}

// size 计算值 v 编码后的字节数
// size returns the encoded size of v.
func (s *Shape) size(v reflect.Value, options *Options) (int, error) {
	if s.encodes {
		scratch := &WritablePacket{options: options}
		if err := encodeCustom(scratch, v); err != nil {
			return 0, err
		}
		return scratch.Len(), nil
	}
	if err := s.checkWide(v); err != nil {
		return 0, err
	}
	if n := s.fixedSize(); n > 0 {
		return n, nil
	}

	switch s.Type {
	case String, Bytes:
		length := v.Len()
		if length > FlexIntMax {
			return 0, fmt.Errorf("byte run of %d bytes: %w", length, ErrOutOfRange)
		}
		prefix, _ := FlexIntSize(uint32(length))
		return prefix + length, nil
	case Struct:
		return s.Fields.Sizeof(v, options)
	case Ptr:
		if v.IsNil() {
			return 0, nil
		}
		return s.Elem.size(v.Elem(), options)
	case Array, Slice:
		total := 0
		if s.Type == Slice {
			prefix, err := FlexIntSize(uint32(s.elemCount(v)))
			if err != nil {
				return 0, err
			}
			total = prefix
		}
		if n := s.Elem.fixedSize(); n > 0 && !s.Elem.wide {
			return total + n*v.Len(), nil
		}
		for i := 0; i < v.Len(); i++ {
			n, err := s.Elem.size(v.Index(i), options)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	default:
		return 0, fmt.Errorf("%v: %w", s.rtype, ErrUnsupportedType)
	}
}
