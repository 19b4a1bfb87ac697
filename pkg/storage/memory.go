package storage

import "sync"

// MemoryStorage 提供基于内存的 Storage 实现。
// 生命周期与进程一致，相当于标签页关闭即丢失的 sessionStorage。
type MemoryStorage struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int // 所有值的总字节上限，<=0 表示不限制
}

// MemoryOption 自定义 MemoryStorage。
type MemoryOption func(*MemoryStorage)

// WithQuota 设置总字节配额，超出时 Set 返回 ErrQuotaExceeded。
func WithQuota(bytes int) MemoryOption {
	return func(s *MemoryStorage) {
		s.quota = bytes
	}
}

// NewMemoryStorage 创建内存存储实例。
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{data: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get 返回指定 key 的值。
func (s *MemoryStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok, nil
}

// Set 写入值；配额按写入后的总大小计算。
func (s *MemoryStorage) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		total := len(key) + len(value)
		for k, v := range s.data {
			if k == key {
				continue
			}
			total += len(k) + len(v)
		}
		if total > s.quota {
			return ErrQuotaExceeded
		}
	}
	s.data[key] = value
	return nil
}

// Remove 删除 key。
func (s *MemoryStorage) Remove(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len 返回当前 key 的数量，主要用于测试。
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
