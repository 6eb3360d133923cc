package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is the persisted form of one entity: an ordered list of key=value
// pairs. Keys keep their first insertion order so encoded records are stable.
type Record struct {
	keys   []string
	values map[string]string
}

var (
	escaper   = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D")
	unescaper = strings.NewReplacer("%3B", ";", "%3D", "=", "%25", "%")
)

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores value under key. Overwriting keeps the key's position.
func (r *Record) Set(key, value string) *Record {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// SetInt stores an integer value.
func (r *Record) SetInt(key string, value int64) *Record {
	return r.Set(key, strconv.FormatInt(value, 10))
}

// SetUint stores an unsigned integer value.
func (r *Record) SetUint(key string, value uint64) *Record {
	return r.Set(key, strconv.FormatUint(value, 10))
}

// SetBool stores a boolean as "1" or "0".
func (r *Record) SetBool(key string, value bool) *Record {
	if value {
		return r.Set(key, "1")
	}
	return r.Set(key, "0")
}

// Get returns the raw value for key.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// String returns the value for key, or def when absent.
func (r *Record) String(key, def string) string {
	if v, ok := r.values[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value for key, or def when absent or malformed.
func (r *Record) Int(key string, def int64) int64 {
	v, ok := r.values[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Uint returns the unsigned value for key, or def when absent or malformed.
func (r *Record) Uint(key string, def uint64) uint64 {
	v, ok := r.values[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key, or def when absent.
// "1" and "true" are true; anything else present is false.
func (r *Record) Bool(key string, def bool) bool {
	v, ok := r.values[key]
	if !ok {
		return def
	}
	return v == "1" || v == "true"
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// Encode renders the record as "key=value;key=value". Separators inside
// keys or values are percent-escaped.
func (r *Record) Encode() string {
	var b strings.Builder
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(escaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(escaper.Replace(r.values[k]))
	}
	return b.String()
}

// ParseRecord decodes the output of Encode.
func ParseRecord(s string) (*Record, error) {
	r := NewRecord()
	if s == "" {
		return r, nil
	}
	for i, pair := range strings.Split(s, ";") {
		k, v, found := strings.Cut(pair, "=")
		if !found || k == "" {
			return nil, fmt.Errorf("%w: pair %d %q", ErrMalformedRecord, i, pair)
		}
		r.Set(unescaper.Replace(k), unescaper.Replace(v))
	}
	return r, nil
}
