package model

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断。
var (
	// ErrConfiguration 表示缺少凭证等配置，出现时不会发起任何远程调用。
	ErrConfiguration = errors.New("configuration error")
	// ErrConversion 表示文档无法读取或格式不支持，只影响该文档。
	ErrConversion = errors.New("conversion error")
	// ErrRemoteCall 表示 embedding 或生成调用失败。
	ErrRemoteCall = errors.New("remote call error")
	// ErrNotFound 表示引用了不存在的会话。
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput 表示请求参数不合法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnrecognizedIntent 只用于日志与指标，不会返回给调用方。
	ErrUnrecognizedIntent = errors.New("unrecognized intent")
)

// WrapError 给底层错误加上分类和操作名，err 为 nil 时返回 nil。
func WrapError(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
