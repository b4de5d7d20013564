package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager 配置管理器接口
type Manager interface {
	// LoadFile 加载配置文件
	LoadFile(path string) error
	// BindEnv 绑定环境变量，prefix 为 "APP" 时匹配 APP_DATABASE_HOST
	BindEnv(prefix string)
	// Unmarshal 解析整个配置到结构体
	Unmarshal(v any) error
	// UnmarshalKey 解析指定路径的配置，例如 "spawn" 或 "market.capacity"
	UnmarshalKey(key string, v any) error
	// Watch 监听配置文件变化，回调在 fsnotify 协程中执行
	Watch(callback func()) error
	// IsSet 检查配置项是否存在
	IsSet(key string) bool
}

type manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	callbacks []func()
	watching  bool
}

// NewManager 创建配置管理器
func NewManager(opts ...Option) Manager {
	m := &manager{v: viper.New()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.v.SetConfigFile(path)
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func (m *manager) BindEnv(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix != "" {
		m.v.SetEnvPrefix(prefix)
	}
	m.v.AutomaticEnv()
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (m *manager) Unmarshal(v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.Unmarshal(v); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func (m *manager) UnmarshalKey(key string, v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.UnmarshalKey(key, v); err != nil {
		return fmt.Errorf("failed to unmarshal key %s: %w", key, err)
	}
	return nil
}

func (m *manager) Watch(callback func()) error {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	start := !m.watching
	m.watching = true
	m.mu.Unlock()

	if !start {
		return nil
	}

	m.v.OnConfigChange(func(fsnotify.Event) {
		m.mu.RLock()
		callbacks := append([]func(){}, m.callbacks...)
		m.mu.RUnlock()

		for _, cb := range callbacks {
			cb()
		}
	})
	m.v.WatchConfig()
	return nil
}

func (m *manager) IsSet(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.IsSet(key)
}
