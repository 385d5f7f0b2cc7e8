package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *memoryBackend {
	t.Helper()
	b, err := NewMemoryBackend(100)
	if err != nil {
		t.Fatalf("NewMemoryBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b.(*memoryBackend)
}

func TestMemoryBackend_GetSet(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	// Miss
	v, err := m.Get(ctx, "k")
	if err != nil || v != "" {
		t.Fatalf("Expected empty miss, got %q, %v", v, err)
	}

	reply, err := m.Set(ctx, "k", "v")
	if err != nil || reply != "OK" {
		t.Fatalf("Set: %q, %v", reply, err)
	}
	v, err = m.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("Expected v, got %q, %v", v, err)
	}
}

func TestMemoryBackend_SetExExpires(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	if _, err := m.SetEx(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	if v, _ := m.Get(ctx, "k"); v != "v" {
		t.Fatalf("Expected v before expiry, got %q", v)
	}

	now = now.Add(10 * time.Second)
	if v, _ := m.Get(ctx, "k"); v != "" {
		t.Fatalf("Expected key to expire, got %q", v)
	}
	if n, _ := m.Exists(ctx, "k"); n != 0 {
		t.Fatalf("Expected Exists 0 after expiry, got %d", n)
	}
}

func TestMemoryBackend_SetExRejectsNonPositiveTTL(t *testing.T) {
	m := newTestMemory(t)
	if _, err := m.SetEx(context.Background(), "k", "v", 0); err == nil {
		t.Fatal("Expected error for zero TTL")
	}
}

func TestMemoryBackend_Expire(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	ok, err := m.Expire(ctx, "absent", time.Second)
	if err != nil || ok {
		t.Fatalf("Expected false for absent key, got %v, %v", ok, err)
	}

	_, _ = m.SAdd(ctx, "s", "a")
	ok, err = m.Expire(ctx, "s", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected true, got %v, %v", ok, err)
	}
	now = now.Add(6 * time.Second)
	if n, _ := m.Exists(ctx, "s"); n != 0 {
		t.Fatal("Expected set to expire")
	}
}

func TestMemoryBackend_Sets(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	added, err := m.SAdd(ctx, "s", "b", "a", "b")
	if err != nil || added != 2 {
		t.Fatalf("Expected 2 added, got %d, %v", added, err)
	}
	added, _ = m.SAdd(ctx, "s", "a", 3)
	if added != 1 {
		t.Fatalf("Expected 1 new member, got %d", added)
	}

	members, err := m.SMembers(ctx, "s")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	want := []string{"3", "a", "b"}
	if len(members) != len(want) {
		t.Fatalf("Expected %v, got %v", want, members)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, members)
		}
	}

	if ok, _ := m.SIsMember(ctx, "s", 3); !ok {
		t.Error("Expected 3 to be a member")
	}
	if ok, _ := m.SIsMember(ctx, "s", "zz"); ok {
		t.Error("Expected zz not to be a member")
	}

	empty, err := m.SMembers(ctx, "absent")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("Expected empty non-nil slice, got %#v, %v", empty, err)
	}
}

func TestMemoryBackend_SAddNoMembers(t *testing.T) {
	m := newTestMemory(t)
	if _, err := m.SAdd(context.Background(), "s"); err == nil {
		t.Fatal("Expected error for SADD without members")
	}
}

func TestMemoryBackend_SPopN(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	_, _ = m.SAdd(ctx, "s", "a", "b", "c")

	popped, err := m.SPopN(ctx, "s", 2)
	if err != nil || len(popped) != 2 {
		t.Fatalf("Expected 2 popped, got %v, %v", popped, err)
	}
	rest, _ := m.SMembers(ctx, "s")
	if len(rest) != 1 {
		t.Fatalf("Expected 1 remaining, got %v", rest)
	}

	popped, _ = m.SPopN(ctx, "s", 5)
	if len(popped) != 1 {
		t.Fatalf("Expected last member, got %v", popped)
	}
	if n, _ := m.Exists(ctx, "s"); n != 0 {
		t.Fatal("Expected emptied set to be removed")
	}

	popped, err = m.SPopN(ctx, "s", 1)
	if err != nil || len(popped) != 0 {
		t.Fatalf("Expected empty pop on absent key, got %v, %v", popped, err)
	}
}

func TestMemoryBackend_WrongType(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	_, _ = m.Set(ctx, "str", "v")

	if _, err := m.SAdd(ctx, "str", "a"); !errors.Is(err, errWrongType) {
		t.Errorf("SAdd on string: expected WRONGTYPE, got %v", err)
	}
	if _, err := m.ZAdd(ctx, "str", 1, "a"); !errors.Is(err, errWrongType) {
		t.Errorf("ZAdd on string: expected WRONGTYPE, got %v", err)
	}
	if _, err := m.JSONSet(ctx, "str", "$", `{}`); !errors.Is(err, errWrongType) {
		t.Errorf("JSONSet on string: expected WRONGTYPE, got %v", err)
	}
}

func TestMemoryBackend_SortedSets(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	if n, _ := m.ZAdd(ctx, "z", 2, "b"); n != 1 {
		t.Fatalf("Expected 1 for new member, got %d", n)
	}
	_, _ = m.ZAdd(ctx, "z", 1, "a")
	_, _ = m.ZAdd(ctx, "z", 3, "c")
	if n, _ := m.ZAdd(ctx, "z", 5, "c"); n != 0 {
		t.Fatalf("Expected 0 for score update, got %d", n)
	}

	tests := []struct {
		name     string
		min, max string
		want     []string
	}{
		{"all", "-inf", "+inf", []string{"a", "b", "c"}},
		{"inclusive", "1", "2", []string{"a", "b"}},
		{"exclusive min", "(1", "5", []string{"b", "c"}},
		{"exclusive max", "-inf", "(5", []string{"a", "b"}},
		{"none", "10", "20", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ZRangeByScoreWithScores(ctx, "z", tt.min, tt.max)
			if err != nil {
				t.Fatalf("ZRangeByScore: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i].Member != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	removed, err := m.ZRemRangeByScore(ctx, "z", "-inf", "2")
	if err != nil || removed != 2 {
		t.Fatalf("Expected 2 removed, got %d, %v", removed, err)
	}
	left, _ := m.ZRangeByScoreWithScores(ctx, "z", "-inf", "+inf")
	if len(left) != 1 || left[0].Member != "c" || left[0].Score != 5 {
		t.Fatalf("Expected only c:5, got %v", left)
	}

	if _, err := m.ZRangeByScoreWithScores(ctx, "z", "abc", "1"); !errors.Is(err, errScoreFormat) {
		t.Fatalf("Expected score format error, got %v", err)
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	_, _ = m.Set(ctx, "k", "v")

	if n, _ := m.Del(ctx, "k"); n != 1 {
		t.Fatalf("Expected 1 deleted, got %d", n)
	}
	if n, _ := m.Del(ctx, "k"); n != 0 {
		t.Fatalf("Expected 0 on second delete, got %d", n)
	}
}

func TestMemoryBackend_JSON(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	v, err := m.JSONGet(ctx, "doc", "$")
	if err != nil || v != "" {
		t.Fatalf("Expected miss, got %q, %v", v, err)
	}

	if _, err := m.JSONSet(ctx, "doc", "$", `{"a":1}`); err != nil {
		t.Fatalf("JSONSet: %v", err)
	}
	v, _ = m.JSONGet(ctx, "doc", "$")
	if v != `[{"a":1}]` {
		t.Fatalf("Expected wrapped document, got %q", v)
	}
	v, _ = m.JSONGet(ctx, "doc", ".")
	if v != `{"a":1}` {
		t.Fatalf("Expected bare document, got %q", v)
	}

	if _, err := m.JSONSet(ctx, "doc", "$.a", `2`); !errors.Is(err, errJSONPath) {
		t.Errorf("Expected path error, got %v", err)
	}
	if _, err := m.JSONSet(ctx, "doc", "$", `{not json`); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestMemoryBackend_LRUEviction(t *testing.T) {
	ctx := context.Background()
	b, err := NewMemoryBackend(2)
	if err != nil {
		t.Fatalf("NewMemoryBackend: %v", err)
	}
	defer b.Close()

	_, _ = b.Set(ctx, "a", "1")
	_, _ = b.Set(ctx, "b", "2")
	_, _ = b.Set(ctx, "c", "3")

	if n, _ := b.Exists(ctx, "a"); n != 0 {
		t.Error("Expected oldest key to be evicted")
	}
	if n, _ := b.Exists(ctx, "c"); n != 1 {
		t.Error("Expected newest key to be present")
	}
}

func TestMemberString(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{"x", "x", false},
		{[]byte("y"), "y", false},
		{true, "1", false},
		{false, "0", false},
		{42, "42", false},
		{int64(-7), "-7", false},
		{1.5, "1.5", false},
		{nil, "", false},
		{map[string]int{"a": 1}, "", true},
	}
	for _, tt := range tests {
		got, err := memberString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("memberString(%#v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("memberString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
