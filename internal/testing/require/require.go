// Package require provides minimal, dependency-free test assertions used
// throughout this module's test suites, in place of pulling in testify.
package require

import (
	"reflect"
	"testing"
)

// Equal fails the test if want != got, using reflect.DeepEqual.
func Equal(t *testing.T, want, got interface{}) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

// NotEqual fails the test if want == got.
func NotEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if reflect.DeepEqual(want, got) {
		t.Fatalf("expected values to differ, both were %#v", want)
	}
}

// NoError fails the test if err is non-nil.
func NoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Error fails the test if err is nil.
func Error(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// True fails the test if v is false.
func True(t *testing.T, v bool) {
	t.Helper()
	if !v {
		t.Fatal("expected true, got false")
	}
}

// False fails the test if v is true.
func False(t *testing.T, v bool) {
	t.Helper()
	if v {
		t.Fatal("expected false, got true")
	}
}

// Nil fails the test if v is not nil.
func Nil(t *testing.T, v interface{}) {
	t.Helper()
	if v != nil && !reflect.ValueOf(v).IsZero() {
		t.Fatalf("expected nil, got %#v", v)
	}
}

// NotNil fails the test if v is nil.
func NotNil(t *testing.T, v interface{}) {
	t.Helper()
	if v == nil {
		t.Fatal("expected non-nil value")
	}
}

// Len fails the test if the slice/map/string v does not have the given length.
func Len(t *testing.T, v interface{}, length int) {
	t.Helper()
	rv := reflect.ValueOf(v)
	if rv.Len() != length {
		t.Fatalf("expected length %d, got %d", length, rv.Len())
	}
}

// Contains fails the test if the substring is not present in s.
func Contains(t *testing.T, s, substr string) {
	t.Helper()
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return
		}
	}
	t.Fatalf("expected %q to contain %q", s, substr)
}
