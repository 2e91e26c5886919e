package utils

import (
	"errors"
	"testing"
)

func TestParseInt32(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{"0", 0, nil},
		{"42", 42, nil},
		{"-7", -7, nil},
		{"2147483647", 2147483647, nil},
		{"2147483648", 0, ErrOutOfRange},
		{"", 0, ErrNotInteger},
		{"abc", 0, ErrNotInteger},
		{"1.5", 0, ErrNotInteger},
	}
	for _, tc := range cases {
		got, err := ParseInt32(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("ParseInt32(%q) err=%v want %v", tc.in, err, tc.err)
		}
		if err == nil && got != tc.want {
			t.Fatalf("ParseInt32(%q)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseOptionalCursor(t *testing.T) {
	if v, err := ParseOptionalCursor(""); v != nil || err != nil {
		t.Fatalf("empty: got %v, %v", v, err)
	}
	if v, err := ParseOptionalCursor("5"); err != nil || v == nil || *v != 5 {
		t.Fatalf("5: got %v, %v", v, err)
	}
	if v, err := ParseOptionalCursor("0"); err != nil || v == nil || *v != 0 {
		t.Fatalf("0: got %v, %v", v, err)
	}

	for in, want := range map[string]error{
		"-1":                   ErrNegative,
		"x":                    ErrNotInteger,
		"2147483648":           ErrOutOfRange,
		"99999999999999999999": ErrOutOfRange,
	} {
		if _, err := ParseOptionalCursor(in); !errors.Is(err, want) {
			t.Fatalf("%q: err=%v want %v", in, err, want)
		}
	}
}
