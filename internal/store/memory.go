package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemorySize = 10000

func init() {
	Register("memory", openMemory)
}

var (
	errWrongType   = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	errInvalidTTL  = errors.New("ERR invalid expire time in 'setex' command")
	errJSONPath    = errors.New("ERR memory provider only supports the root JSON path ($ or .)")
	errScoreFormat = errors.New("ERR min or max is not a float")
)

type kind int

const (
	kindString kind = iota
	kindSet
	kindZSet
	kindJSON
)

type item struct {
	kind      kind
	str       string
	set       map[string]struct{}
	zset      map[string]float64
	doc       json.RawMessage
	expiresAt time.Time
}

// memoryBackend is an in-process Backend bounded by an LRU of keys. It supports
// strings, sets, sorted sets and root-level JSON documents with lazy per-key
// expiry. It is meant for local development and tests.
type memoryBackend struct {
	mu    sync.Mutex
	items *lru.Cache[string, *item]
	now   func() time.Time
}

func openMemory(_ context.Context, cfg TopologyConfig) (Backend, error) {
	return NewMemoryBackend(cfg.Options.Size)
}

// NewMemoryBackend creates an in-process backend holding at most size keys.
// A non-positive size selects the default.
func NewMemoryBackend(size int) (Backend, error) {
	if size <= 0 {
		size = defaultMemorySize
	}
	items, err := lru.New[string, *item](size)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return &memoryBackend{items: items, now: time.Now}, nil
}

// lookup returns the live item for key, dropping it if it has expired.
// Callers must hold m.mu.
func (m *memoryBackend) lookup(key string) *item {
	it, ok := m.items.Get(key)
	if !ok {
		return nil
	}
	if !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt) {
		m.items.Remove(key)
		return nil
	}
	return it
}

func (m *memoryBackend) lookupKind(key string, k kind) (*item, error) {
	it := m.lookup(key)
	if it == nil {
		return nil, nil
	}
	if it.kind != k {
		return nil, errWrongType
	}
	return it, nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindString)
	if err != nil || it == nil {
		return "", err
	}
	return it.str, nil
}

func (m *memoryBackend) Set(_ context.Context, key, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items.Add(key, &item{kind: kindString, str: value})
	return "OK", nil
}

func (m *memoryBackend) SetEx(_ context.Context, key, value string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items.Add(key, &item{kind: kindString, str: value, expiresAt: m.now().Add(ttl)})
	return "OK", nil
}

func (m *memoryBackend) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.lookup(key)
	if it == nil {
		return false, nil
	}
	if ttl <= 0 {
		m.items.Remove(key)
		return true, nil
	}
	it.expiresAt = m.now().Add(ttl)
	return true, nil
}

func (m *memoryBackend) SAdd(_ context.Context, key string, members ...any) (int64, error) {
	if len(members) == 0 {
		return 0, errors.New("ERR wrong number of arguments for 'sadd' command")
	}
	strs, err := memberStrings(members)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindSet)
	if err != nil {
		return 0, err
	}
	if it == nil {
		it = &item{kind: kindSet, set: make(map[string]struct{}, len(strs))}
		m.items.Add(key, it)
	}
	var added int64
	for _, s := range strs {
		if _, ok := it.set[s]; !ok {
			it.set[s] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *memoryBackend) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindSet)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if it == nil {
		return out, nil
	}
	for s := range it.set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryBackend) SIsMember(_ context.Context, key string, member any) (bool, error) {
	s, err := memberString(member)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindSet)
	if err != nil || it == nil {
		return false, err
	}
	_, ok := it.set[s]
	return ok, nil
}

func (m *memoryBackend) SPopN(_ context.Context, key string, count int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindSet)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if it == nil {
		return out, nil
	}
	// Map iteration order is randomized, which gives SPOP its random pick.
	for s := range it.set {
		if int64(len(out)) >= count {
			break
		}
		out = append(out, s)
		delete(it.set, s)
	}
	if len(it.set) == 0 {
		m.items.Remove(key)
	}
	return out, nil
}

func (m *memoryBackend) ZAdd(_ context.Context, key string, score float64, member any) (int64, error) {
	s, err := memberString(member)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if it == nil {
		it = &item{kind: kindZSet, zset: make(map[string]float64)}
		m.items.Add(key, it)
	}
	_, existed := it.zset[s]
	it.zset[s] = score
	if existed {
		return 0, nil
	}
	return 1, nil
}

func (m *memoryBackend) ZRangeByScoreWithScores(_ context.Context, key, min, max string) ([]ScoredMember, error) {
	lo, err := parseScoreBound(min)
	if err != nil {
		return nil, err
	}
	hi, err := parseScoreBound(max)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindZSet)
	if err != nil {
		return nil, err
	}
	out := []ScoredMember{}
	if it == nil {
		return out, nil
	}
	for member, score := range it.zset {
		if lo.below(score) && hi.above(score) {
			out = append(out, ScoredMember{Member: member, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out, nil
}

func (m *memoryBackend) ZRemRangeByScore(_ context.Context, key, min, max string) (int64, error) {
	lo, err := parseScoreBound(min)
	if err != nil {
		return 0, err
	}
	hi, err := parseScoreBound(max)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindZSet)
	if err != nil || it == nil {
		return 0, err
	}
	var removed int64
	for member, score := range it.zset {
		if lo.below(score) && hi.above(score) {
			delete(it.zset, member)
			removed++
		}
	}
	if len(it.zset) == 0 {
		m.items.Remove(key)
	}
	return removed, nil
}

func (m *memoryBackend) Exists(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookup(key) == nil {
		return 0, nil
	}
	return 1, nil
}

func (m *memoryBackend) Del(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookup(key) == nil {
		return 0, nil
	}
	m.items.Remove(key)
	return 1, nil
}

func (m *memoryBackend) JSONSet(_ context.Context, key, path, value string) (string, error) {
	if !isRootPath(path) {
		return "", errJSONPath
	}
	if !json.Valid([]byte(value)) {
		return "", errors.New("ERR invalid JSON value")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if it := m.lookup(key); it != nil && it.kind != kindJSON {
		return "", errWrongType
	}
	m.items.Add(key, &item{kind: kindJSON, doc: json.RawMessage(value)})
	return "OK", nil
}

func (m *memoryBackend) JSONGet(_ context.Context, key, path string) (string, error) {
	if !isRootPath(path) {
		return "", errJSONPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.lookupKind(key, kindJSON)
	if err != nil || it == nil {
		return "", err
	}
	// JSONPath queries ($...) reply with an array of matches; legacy paths reply with the value.
	if strings.HasPrefix(path, "$") {
		return "[" + string(it.doc) + "]", nil
	}
	return string(it.doc), nil
}

func (m *memoryBackend) Ping(context.Context) error {
	return nil
}

func (m *memoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Purge()
	return nil
}

func isRootPath(path string) bool {
	return path == "$" || path == "."
}

// memberString renders a member the way the redis client writes arguments.
func memberString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 64), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("redis: can't marshal %T (implement encoding.BinaryMarshaler)", v)
	}
}

func memberStrings(vs []any) ([]string, error) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		s, err := memberString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type scoreBound struct {
	value     float64
	exclusive bool
}

// below reports whether score is on the upper side of a min bound.
func (b scoreBound) below(score float64) bool {
	if b.exclusive {
		return score > b.value
	}
	return score >= b.value
}

// above reports whether score is on the lower side of a max bound.
func (b scoreBound) above(score float64) bool {
	if b.exclusive {
		return score < b.value
	}
	return score <= b.value
}

func parseScoreBound(s string) (scoreBound, error) {
	var b scoreBound
	if strings.HasPrefix(s, "(") {
		b.exclusive = true
		s = s[1:]
	}
	switch strings.ToLower(s) {
	case "-inf":
		b.value = math.Inf(-1)
		return b, nil
	case "+inf", "inf":
		b.value = math.Inf(1)
		return b, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return b, errScoreFormat
	}
	b.value = v
	return b, nil
}
