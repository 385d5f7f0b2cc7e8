package bucket

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Belphemur/flash/internal/apperrors"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(ServiceConfig{
		"bucket_with_default_3600": {
			RegisteredServices: []string{"svc"},
			DefaultTTL:         3600,
			HighAvailability:   true,
		},
		"bucket_without_default": {
			RegisteredServices: []string{"svc", "other"},
		},
	})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func TestNewPolicy_RejectsInvalidBucketNames(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "a:b"} {
		if _, err := NewPolicy(ServiceConfig{name: {}}); err == nil {
			t.Errorf("expected error for bucket name %q", name)
		}
	}
}

func TestNewPolicy_RejectsNegativeTTL(t *testing.T) {
	t.Parallel()
	if _, err := NewPolicy(ServiceConfig{"b": {DefaultTTL: -5}}); err == nil {
		t.Error("expected error for negative default_ttl")
	}
}

func TestNewPolicy_IsSnapshot(t *testing.T) {
	t.Parallel()
	cfg := ServiceConfig{"b": {RegisteredServices: []string{"svc"}}}
	p, err := NewPolicy(cfg)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	cfg["b"].RegisteredServices[0] = "intruder"
	delete(cfg, "b")

	if err := p.Validate("b", "svc"); err != nil {
		t.Errorf("snapshot changed after mutating source config: %v", err)
	}
}

func TestResolveTTL(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)
	tests := []struct {
		name     string
		explicit int
		bucket   string
		want     int
	}{
		{"default applies", 0, "bucket_with_default_3600", 3600},
		{"explicit wins", 120, "bucket_with_default_3600", 120},
		{"no default", 0, "bucket_without_default", NoExpiry},
		{"explicit without default", 10, "bucket_without_default", 10},
		{"unknown bucket", 0, "nope", NoExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := p.ResolveTTL(tt.explicit, tt.bucket); got != tt.want {
				t.Errorf("ResolveTTL(%d, %q) = %d, want %d", tt.explicit, tt.bucket, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)
	var nilSlice []any
	var nilMap map[string]any

	tests := []struct {
		name      string
		bucket    string
		service   string
		fields    []Field
		wantErr   error
		wantField string
	}{
		{
			name:    "ok",
			bucket:  "bucket_with_default_3600",
			service: "svc",
			fields:  []Field{Required("cacheKey", "b:k"), Required("data", map[string]any{"a": 1})},
		},
		{
			name:    "zero values are present",
			bucket:  "bucket_with_default_3600",
			service: "svc",
			fields:  []Field{Required("data", 0), Required("flag", false), Required("values", []any{})},
		},
		{
			name:      "empty cache key",
			bucket:    "bucket_with_default_3600",
			service:   "svc",
			fields:    []Field{Required("cacheKey", ""), Required("data", 1)},
			wantErr:   &apperrors.ErrMissingField{},
			wantField: "cacheKey",
		},
		{
			name:      "nil data",
			bucket:    "bucket_with_default_3600",
			service:   "svc",
			fields:    []Field{Required("cacheKey", "b:k"), Required("data", nil)},
			wantErr:   &apperrors.ErrMissingField{},
			wantField: "data",
		},
		{
			name:      "nil slice",
			bucket:    "bucket_with_default_3600",
			service:   "svc",
			fields:    []Field{Required("values", nilSlice)},
			wantErr:   &apperrors.ErrMissingField{},
			wantField: "values",
		},
		{
			name:      "nil map",
			bucket:    "bucket_with_default_3600",
			service:   "svc",
			fields:    []Field{Required("data", nilMap)},
			wantErr:   &apperrors.ErrMissingField{},
			wantField: "data",
		},
		{
			name:      "first missing field reported",
			bucket:    "bucket_with_default_3600",
			service:   "svc",
			fields:    []Field{Required("cacheKey", ""), Required("data", nil)},
			wantErr:   &apperrors.ErrMissingField{},
			wantField: "cacheKey",
		},
		{
			name:    "missing field checked before authorization",
			bucket:  "unknown",
			service: "svc",
			fields:  []Field{Required("cacheKey", "")},
			wantErr: &apperrors.ErrMissingField{},
		},
		{
			name:    "unknown bucket",
			bucket:  "unknown",
			service: "svc",
			wantErr: &apperrors.ErrAuthentication{},
		},
		{
			name:    "service not registered",
			bucket:  "bucket_with_default_3600",
			service: "other",
			wantErr: &apperrors.ErrAuthentication{},
		},
		{
			name:    "empty service",
			bucket:  "bucket_without_default",
			service: "",
			wantErr: &apperrors.ErrAuthentication{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := p.Validate(tt.bucket, tt.service, tt.fields...)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v (%T), want %T", err, err, tt.wantErr)
			}
			if tt.wantField != "" {
				var mf *apperrors.ErrMissingField
				if !errors.As(err, &mf) || mf.Field != tt.wantField {
					t.Errorf("missing field = %v, want %q", err, tt.wantField)
				}
			}
		})
	}
}

func TestValidate_AuthenticationReason(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)

	var authErr *apperrors.ErrAuthentication
	if err := p.Validate("unknown", "svc"); !errors.As(err, &authErr) || authErr.Reason != apperrors.ReasonUnknownBucket {
		t.Errorf("unknown bucket reason = %v", err)
	}
	if err := p.Validate("bucket_with_default_3600", "other"); !errors.As(err, &authErr) || authErr.Reason != apperrors.ReasonServiceNotRegistered {
		t.Errorf("unregistered service reason = %v", err)
	}
}

func TestHighAvailabilityAndBuckets(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)
	if !p.HighAvailability("bucket_with_default_3600") {
		t.Error("expected bucket_with_default_3600 to be high availability")
	}
	if p.HighAvailability("bucket_without_default") {
		t.Error("expected bucket_without_default to be low availability")
	}
	if !p.HighAvailability("unknown") {
		t.Error("unknown buckets should default to high availability")
	}

	want := []string{"bucket_with_default_3600", "bucket_without_default"}
	if got := p.Buckets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Buckets() = %v, want %v", got, want)
	}
}
