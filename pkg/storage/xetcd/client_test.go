package xetcd

import (
	"errors"
	"testing"
	"time"
)

func TestNewClient_NilConfig(t *testing.T) {
	if _, err := NewClient(nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("NewClient(nil) error = %v, want %v", err, ErrNilConfig)
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	if _, err := NewClient(&Config{}); !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("NewClient with empty endpoints error = %v, want %v", err, ErrNoEndpoints)
	}
	if _, err := NewClient(&Config{Endpoints: []string{"etcd"}}); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("NewClient with bad endpoint error = %v, want %v", err, ErrInvalidEndpoint)
	}
}

// 客户端创建不拨号，没有 etcd 服务也能拿到客户端。
func TestNewClient_Lazy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoints = []string{"127.0.0.1:1"}
	cfg.DialTimeout = 100 * time.Millisecond

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.KV() != client.RawClient().KV {
		t.Error("KV() without namespace should be the raw KV")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestNewClient_Namespace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoints = []string{"127.0.0.1:1"}
	cfg.Namespace = "/staging"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if client.KV() == client.RawClient().KV {
		t.Error("KV() with namespace should wrap the raw KV")
	}
	if client.config.Namespace != "/staging" {
		t.Errorf("config.Namespace = %q", client.config.Namespace)
	}
}

func TestClient_Close_ZeroValue(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero-value client should return nil, got %v", err)
	}
}
