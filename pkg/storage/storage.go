// Package storage 提供标签页级别（tab-scoped）的键值持久化抽象。
//
// 浏览器中的 sessionStorage 在这里被建模为 Storage 接口，
// 控制器只通过它读写历史记录与会话令牌，便于在测试中替换为内存实现。
package storage

import "errors"

var (
	// ErrQuotaExceeded 表示写入超过了存储配额。
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrInvalidKey 表示使用了空 key。
	ErrInvalidKey = errors.New("storage key is empty")
)

// Storage 定义标签页作用域内的字符串键值存储。
type Storage interface {
	// Get 返回 key 对应的值；不存在时 ok 为 false 且 err 为 nil。
	Get(key string) (value string, ok bool, err error)
	// Set 写入或覆盖 key 对应的值。
	Set(key, value string) error
	// Remove 删除 key；key 不存在时不报错。
	Remove(key string) error
}
