package storage

import (
	"errors"
	"reflect"
	"testing"
)

func TestRecord_EncodeKeepsInsertionOrder(t *testing.T) {
	r := NewRecord().
		Set("objectType", "Track").
		SetUint("trackID", 7).
		Set("name", "Platform 1").
		SetBool("blocked", false)

	// Overwrite keeps position.
	r.Set("name", "Platform 1a")

	want := "objectType=Track;trackID=7;name=Platform 1a;blocked=0"
	if got := r.Encode(); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(r.Keys(), []string{"objectType", "trackID", "name", "blocked"}) {
		t.Errorf("Keys() = %v", r.Keys())
	}
}

func TestRecord_EscapesSeparators(t *testing.T) {
	r := NewRecord().Set("name", "a=b;c%d").Set("k;=", "v")

	encoded := r.Encode()
	parsed, err := ParseRecord(encoded)
	if err != nil {
		t.Fatalf("ParseRecord(%q) error = %v", encoded, err)
	}
	if got := parsed.String("name", ""); got != "a=b;c%d" {
		t.Errorf("name = %q, want %q", got, "a=b;c%d")
	}
	if got := parsed.String("k;=", ""); got != "v" {
		t.Errorf("escaped key value = %q, want v", got)
	}
}

func TestRecord_LiteralPercentSequences(t *testing.T) {
	// A value that already looks escaped must survive unchanged.
	r := NewRecord().Set("name", "100%3B")
	parsed, err := ParseRecord(r.Encode())
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if got := parsed.String("name", ""); got != "100%3B" {
		t.Errorf("name = %q, want %q", got, "100%3B")
	}
}

func TestRecord_TypedGetters(t *testing.T) {
	r, err := ParseRecord("speed=512;neg=-3;on=1;off=0;yes=true;bad=x")
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}

	if got := r.Uint("speed", 0); got != 512 {
		t.Errorf("Uint(speed) = %d, want 512", got)
	}
	if got := r.Int("neg", 0); got != -3 {
		t.Errorf("Int(neg) = %d, want -3", got)
	}
	if got := r.Int("bad", 9); got != 9 {
		t.Errorf("Int(bad) = %d, want default 9", got)
	}
	if got := r.Uint("missing", 4); got != 4 {
		t.Errorf("Uint(missing) = %d, want default 4", got)
	}
	if !r.Bool("on", false) || r.Bool("off", true) || !r.Bool("yes", false) {
		t.Error("Bool() parsing wrong")
	}
	if !r.Bool("missing", true) {
		t.Error("Bool(missing) should return default")
	}
	if got := r.String("missing", "dflt"); got != "dflt" {
		t.Errorf("String(missing) = %q", got)
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "empty", input: "", wantLen: 0},
		{name: "single", input: "a=1", wantLen: 1},
		{name: "empty value", input: "a=", wantLen: 1},
		{name: "missing equals", input: "a=1;b", wantErr: true},
		{name: "empty key", input: "=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRecord(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecord) {
					t.Errorf("ParseRecord(%q) error = %v, want ErrMalformedRecord", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord(%q) error = %v", tt.input, err)
			}
			if r.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.wantLen)
			}
		})
	}
}
