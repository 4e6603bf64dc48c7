package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"glue-economy-go/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Provider 持有当前生效的配置快照，支持热加载。
// 引擎的每次操作都取一份快照，绝不读取可变的全局状态，
// 这样利率等参数的调整会在下一个结算周期生效，而无需重启进程。
type Provider struct {
	mu   sync.RWMutex
	path string
	cfg  *models.Config
}

// NewProvider 加载初始配置并返回一个 Provider
func NewProvider(path string) (*Provider, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &Provider{path: path, cfg: cfg}, nil
}

// Snapshot 返回当前配置的一份值拷贝
func (p *Provider) Snapshot() models.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.cfg
}

// Reload 重新读取配置文件。解析失败时保留旧配置并返回错误，
// 保证热加载永远不会让系统落入无配置状态。
func (p *Provider) Reload() error {
	cfg, err := LoadConfig(p.path)
	if err != nil {
		return fmt.Errorf("reload config %s: %w", p.path, err)
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}
