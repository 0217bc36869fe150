package config

import (
	"strings"
	"sync"
)

// ModelSettings 保存运行时可修改的模型凭证和模型名。
// 在启动时由配置创建，通过依赖注入传给需要的组件，并由 /api/v1/config 更新。
type ModelSettings struct {
	mu     sync.RWMutex
	apiKey string
	model  string
}

// NewModelSettings 使用初始凭证和模型名创建 ModelSettings。
func NewModelSettings(apiKey, model string) *ModelSettings {
	return &ModelSettings{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model)}
}

// Snapshot 返回当前的凭证与模型名。
func (s *ModelSettings) Snapshot() (apiKey, model string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey, s.model
}

// HasCredential 判断是否已配置凭证。
func (s *ModelSettings) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey != ""
}

// Update 更新凭证，model 为空时保留原模型名。
func (s *ModelSettings) Update(apiKey, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(apiKey)
	if m := strings.TrimSpace(model); m != "" {
		s.model = m
	}
}
