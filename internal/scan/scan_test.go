package scan

import "testing"

func TestSkipChar(t *testing.T) {
	s := New([]byte("abc"))
	n, ok := s.SkipChar('a')
	if !ok || n != 1 {
		t.Fatalf("want ok=true n=1, got ok=%v n=%d", ok, n)
	}
	if n, ok := s.SkipChar('z'); ok || n != 0 {
		t.Fatalf("want no match, got ok=%v n=%d", ok, n)
	}
}

func TestParseUnsignedDec(t *testing.T) {
	s := New([]byte("1234 "))
	v, ok := s.ParseUnsignedDec()
	if !ok || v != 1234 {
		t.Fatalf("want 1234, got v=%d ok=%v", v, ok)
	}
}

func TestParseUnsignedHex(t *testing.T) {
	tests := []struct {
		in            string
		requirePrefix bool
		want          uint64
		ok            bool
	}{
		{"0xff", true, 0xff, true},
		{"ff", true, 0, false},
		{"ff", false, 0xff, true},
		{"0XABCD", true, 0xabcd, true},
	}
	for _, tt := range tests {
		s := New([]byte(tt.in))
		v, ok := s.ParseUnsignedHex(tt.requirePrefix)
		if ok != tt.ok || (ok && v != tt.want) {
			t.Errorf("ParseUnsignedHex(%q, %v) = %d, %v; want %d, %v", tt.in, tt.requirePrefix, v, ok, tt.want, tt.ok)
		}
	}
}

func TestParseUntil(t *testing.T) {
	s := New([]byte("foo:bar"))
	out, ok := s.ParseUntil(":")
	if !ok || out != "foo" {
		t.Fatalf("want foo, got %q ok=%v", out, ok)
	}
	if _, ok := s.SkipChar(':'); !ok {
		t.Fatalf("expected to consume separator")
	}
	out, ok = s.ParseUntil(":")
	if !ok || out != "bar" {
		t.Fatalf("want bar, got %q ok=%v", out, ok)
	}
}

func TestCursorTracksLines(t *testing.T) {
	s := New([]byte("ab\ncd"))
	s.SkipRun("ab\ncd")
	if s.Pos().Line != 2 || s.Pos().Col != 2 {
		t.Fatalf("want line=2 col=2, got %+v", s.Pos())
	}
}

func TestFailRecordsFirstErrorOnly(t *testing.T) {
	s := New([]byte("xyz"))
	s.Fail("kind1", "first")
	s.Fail("kind2", "second")
	err, ok := s.Err().(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", s.Err())
	}
	if err.Kind != "kind1" {
		t.Fatalf("want first error to win, got %q", err.Kind)
	}
}

func TestOverflowFailsLoudly(t *testing.T) {
	s := New([]byte("99999999999999999999999"))
	if _, ok := s.ParseUnsignedDec(); ok {
		t.Fatalf("expected overflow to fail")
	}
	if s.Err() == nil {
		t.Fatalf("expected overflow to record an error")
	}
}
