package dataproto

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// 标签格式示例：packet:"-" 或 packet:"nocount"
// Tag format example: packet:"-" or packet:"nocount"
const tagName = "packet"

// packetTag 定义了结构体字段标签的解析结果
// packetTag defines the parsed result of a struct field tag
type packetTag struct {
	Skip    bool // 是否跳过 / Whether to skip
	NoCount bool // 切片不写元素个数，读取时使用模板长度 / Slice carries no count; the template length is used
}

// parsePacketTag 解析结构体字段的标签
// parsePacketTag parses the tag of a struct field
func parsePacketTag(tag reflect.StructTag) (packetTag, error) {
	var t packetTag
	for _, s := range strings.Split(tag.Get(tagName), ",") {
		switch strings.TrimSpace(s) {
		case "":
		case "-", "skip":
			t.Skip = true
		case "nocount":
			t.NoCount = true
		default:
			return t, fmt.Errorf("unknown %s tag option %q: %w", tagName, s, ErrUnsupportedType)
		}
	}
	return t, nil
}

// Cache for resolved shapes, one entry per reflect.Type
// 缓存已解析的形状，每个 reflect.Type 只解析一次
var (
	// parsedShapeCache 存储每个类型的已解析形状
	// parsedShapeCache stores the resolved shape of each type
	parsedShapeCache = sync.Map{}

	// shapeParsingMutex 防止同一类型的并发解析
	// shapeParsingMutex prevents concurrent parsing of the same type
	shapeParsingMutex sync.Mutex
)

// shapeCacheLookup 查找类型的缓存形状
// shapeCacheLookup looks up the cached shape of a type
func shapeCacheLookup(t reflect.Type) *Shape {
	if cached, ok := parsedShapeCache.Load(t); ok {
		return cached.(*Shape)
	}
	return nil
}

// parseShape 返回类型 t 的形状描述，结果被缓存，后续调用不再反射
// parseShape returns the shape of t. Shapes are resolved once and cached.
func parseShape(t reflect.Type) (*Shape, error) {
	if cached := shapeCacheLookup(t); cached != nil {
		return cached, nil
	}

	shapeParsingMutex.Lock()
	defer shapeParsingMutex.Unlock()

	// 另一个 goroutine 可能已经完成解析
	// Another goroutine may have finished while we waited
	if cached := shapeCacheLookup(t); cached != nil {
		return cached, nil
	}

	inProgress := make(map[reflect.Type]*Shape)
	shape, err := parseShapeLocked(t, inProgress)
	if err != nil {
		return nil, err
	}
	for typ, s := range inProgress {
		parsedShapeCache.Store(typ, s)
	}
	return shape, nil
}

// parseShapeLocked 在加锁状态下解析类型。
// 先登记占位形状再填充，使递归类型（如链表节点）能够引用自身。
//
// parseShapeLocked resolves t while holding the lock. A placeholder is
// registered before it is filled so recursive types can refer to themselves.
func parseShapeLocked(t reflect.Type, inProgress map[reflect.Type]*Shape) (*Shape, error) {
	if cached := shapeCacheLookup(t); cached != nil {
		return cached, nil
	}
	if s, ok := inProgress[t]; ok {
		return s, nil
	}

	s := &Shape{rtype: t}
	inProgress[t] = s
	s.encodes, s.decodes = customHooks(t)

	kind := t.Kind()
	typ, ok := typeKindToType[kind]
	if !ok && !s.encodes && !s.decodes {
		delete(inProgress, t)
		return nil, fmt.Errorf("type %v (kind %v): %w", t, kind, ErrUnsupportedType)
	}
	s.Type = typ
	s.wide = kind == reflect.Int || kind == reflect.Uint
	if s.encodes && s.decodes {
		s.Type = CustomType
		return s, nil
	}

	var err error
	switch kind {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !s.elemHooked(t.Elem()) {
			s.Type = Bytes
			return s, nil
		}
		s.Elem, err = parseShapeLocked(t.Elem(), inProgress)
	case reflect.Array:
		s.Length = t.Len()
		s.Elem, err = parseShapeLocked(t.Elem(), inProgress)
	case reflect.Ptr:
		s.Elem, err = parseShapeLocked(t.Elem(), inProgress)
	case reflect.Struct:
		s.Fields, err = parseFieldsLocked(t, inProgress)
	}
	if err != nil {
		delete(inProgress, t)
		return nil, err
	}
	return s, nil
}

// elemHooked 判断字节元素类型是否自带编解码接口，此时不能按字节串处理
func (s *Shape) elemHooked(elem reflect.Type) bool {
	enc, dec := customHooks(elem)
	return enc || dec
}

// parseFieldsLocked 在加锁状态下解析结构体的所有导出字段
// 字段顺序即声明顺序，也就是线上顺序
//
// parseFieldsLocked parses the exported fields of a struct while locked.
// Declaration order is wire order.
func parseFieldsLocked(t reflect.Type, inProgress map[reflect.Type]*Shape) (Fields, error) {
	fields := make(Fields, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue // 跳过不可设置的字段 / Skip fields that cannot be set
		}
		tag, err := parsePacketTag(sf.Tag)
		if err != nil {
			return nil, fmt.Errorf("%v.%s: %w", t, sf.Name, err)
		}
		if tag.Skip {
			continue // 跳过标记为 skip 的字段 / Skip fields marked with skip
		}

		shape, err := parseShapeLocked(sf.Type, inProgress)
		if err != nil {
			return nil, fmt.Errorf("%v.%s: %w", t, sf.Name, err)
		}
		if tag.NoCount && shape.Type != Slice && shape.Type != Bytes {
			return nil, fmt.Errorf("%v.%s: nocount on non-slice type %v: %w", t, sf.Name, sf.Type, ErrUnsupportedType)
		}

		fields = append(fields, &Field{
			Name:    sf.Name,
			Index:   i,
			NoCount: tag.NoCount,
			Shape:   shape,
		})
	}
	return fields, nil
}
