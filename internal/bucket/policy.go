// Package bucket holds the per-bucket access policy loaded from service configuration.
package bucket

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/Belphemur/flash/internal/apperrors"
	"github.com/Belphemur/flash/internal/keys"
)

// NoExpiry is the TTL of keys written without expiration.
const NoExpiry = -1

// Config describes a single bucket.
type Config struct {
	RegisteredServices []string `mapstructure:"registered_services" json:"registered_services"`
	DefaultTTL         int      `mapstructure:"default_ttl" json:"default_ttl"` // seconds, 0 means none
	HighAvailability   bool     `mapstructure:"high_availability" json:"high_availability"`
}

// ServiceConfig maps bucket names to their configuration.
type ServiceConfig map[string]Config

type entry struct {
	services         map[string]struct{}
	defaultTTL       int
	highAvailability bool
}

// Policy is an immutable snapshot of the service configuration.
type Policy struct {
	buckets map[string]entry
}

// NewPolicy validates cfg and builds a snapshot. Later changes to cfg are not observed.
func NewPolicy(cfg ServiceConfig) (*Policy, error) {
	buckets := make(map[string]entry, len(cfg))
	for name, bc := range cfg {
		if !keys.ValidBucketName(name) {
			return nil, fmt.Errorf("bucket: invalid bucket name %q (must be non-empty and must not contain %q)", name, keys.Separator)
		}
		if bc.DefaultTTL < 0 {
			return nil, fmt.Errorf("bucket: %q has negative default_ttl %d", name, bc.DefaultTTL)
		}
		services := make(map[string]struct{}, len(bc.RegisteredServices))
		for _, s := range bc.RegisteredServices {
			services[s] = struct{}{}
		}
		buckets[name] = entry{
			services:         services,
			defaultTTL:       bc.DefaultTTL,
			highAvailability: bc.HighAvailability,
		}
	}
	return &Policy{buckets: buckets}, nil
}

// Field is a named required input of a cache call.
type Field struct {
	Name  string
	Value any
}

// Required builds a Field.
func Required(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Validate checks that every field is present, then that bucketName is known and
// service is registered for it. Fields are checked in the given order and the
// first missing one is reported.
func (p *Policy) Validate(bucketName, service string, fields ...Field) error {
	for _, f := range fields {
		if isMissing(f.Value) {
			return &apperrors.ErrMissingField{Field: f.Name}
		}
	}

	b, ok := p.buckets[bucketName]
	if !ok {
		return &apperrors.ErrAuthentication{
			Bucket:  bucketName,
			Service: service,
			Reason:  apperrors.ReasonUnknownBucket,
		}
	}
	if _, ok := b.services[service]; !ok {
		return &apperrors.ErrAuthentication{
			Bucket:  bucketName,
			Service: service,
			Reason:  apperrors.ReasonServiceNotRegistered,
		}
	}
	return nil
}

// ResolveTTL returns explicit when nonzero, otherwise the bucket default, otherwise NoExpiry.
func (p *Policy) ResolveTTL(explicit int, bucketName string) int {
	if explicit != 0 {
		return explicit
	}
	if b, ok := p.buckets[bucketName]; ok && b.defaultTTL != 0 {
		return b.defaultTTL
	}
	return NoExpiry
}

// HighAvailability reports whether the bucket is served by the high availability topology.
// Unknown buckets report true.
func (p *Policy) HighAvailability(bucketName string) bool {
	b, ok := p.buckets[bucketName]
	return !ok || b.highAvailability
}

// Buckets returns the configured bucket names, sorted.
func (p *Policy) Buckets() []string {
	names := make([]string, 0, len(p.buckets))
	for name := range p.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
