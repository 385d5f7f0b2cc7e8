package store

import (
	"context"
	"testing"
)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), TopologyConfig{Provider: "memory", Options: ClientOptions{Size: 10}})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	defer b.Close()

	if _, err := b.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := b.Get(context.Background(), "k"); v != "v" {
		t.Fatal("Memory backend should work after creation via factory")
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	if _, err := Open(context.Background(), TopologyConfig{Provider: "nonexistent"}); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestRegisteredProviders(t *testing.T) {
	names := RegisteredProviders()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["memory"] || !found["redis"] {
		t.Fatalf("Expected memory and redis providers, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Providers not sorted: %v", names)
			break
		}
	}
}

func TestRegister_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic on duplicate registration")
		}
	}()
	Register("memory", openMemory)
}

func TestNode_Addr(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{Node{Host: "localhost"}, "localhost:6379"},
		{Node{Host: "cache", Port: 7000}, "cache:7000"},
	}
	for _, tt := range tests {
		if got := tt.node.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}
