package dataproto

import (
	"errors"
	"fmt"
)

// 错误分类，所有错误都可以通过 errors.Is 与以下哨兵错误匹配
// Error taxonomy. Every error returned by this package matches one of these with errors.Is.
var (
	ErrUnexpectedEndOfData = errors.New("dataproto: unexpected end of data")
	ErrOutOfRange          = errors.New("dataproto: value out of range")
	ErrInvalidEncoding     = errors.New("dataproto: invalid encoding")
	ErrUnsupportedType     = errors.New("dataproto: unsupported type")
	ErrTrailingData        = errors.New("dataproto: trailing data after value")
	ErrInvalidOptions      = errors.New("dataproto: invalid options")
)

// fieldError 为错误附加字段路径，例如 "Bought[2].Name"
// fieldError attaches the field path to an error, e.g. "Bought[2].Name".
func fieldError(path string, err error) error {
	if path == "" {
		return err
	}
	return fmt.Errorf("field %s: %w", path, err)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
