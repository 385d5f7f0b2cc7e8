package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Node is a store server address.
type Node struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port, defaulting the port to 6379.
func (n Node) Addr() string {
	port := n.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", n.Host, port)
}

// ClientOptions are the client settings shared by every node of a topology.
type ClientOptions struct {
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Size is the maximum number of keys kept by the memory provider.
	Size int `mapstructure:"size"`
}

// TopologyConfig describes one store deployment.
type TopologyConfig struct {
	// Provider selects the backend implementation; empty means "redis".
	Provider string        `mapstructure:"provider"`
	Cluster  bool          `mapstructure:"cluster"`
	Nodes    []Node        `mapstructure:"config"`
	Options  ClientOptions `mapstructure:"default_options"`
}

// Provider is a constructor function that opens a Backend from config.
type Provider func(ctx context.Context, cfg TopologyConfig) (Backend, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a backend provider under the given name.
// It panics if the name is already registered or the provider is nil.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("store: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("store: provider %q already registered", name))
	}
	providers[name] = p
}

// Open creates a Backend using the provider named in cfg.
func Open(ctx context.Context, cfg TopologyConfig) (Backend, error) {
	name := cfg.Provider
	if name == "" {
		name = "redis"
	}

	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("store: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}
	return p(ctx, cfg)
}

// RegisteredProviders returns a sorted list of registered provider names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
