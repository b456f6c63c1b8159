package booking_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/iliyamo/study-space-booking/internal/booking"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestCodeGeneratorFormatAndUniqueness(t *testing.T) {
	g := booking.NewCodeGenerator(10, 10)
	seen := make(map[string]bool)
	exists := func(_ context.Context, code string) (bool, error) { return seen[code], nil }
	for i := 0; i < 10000; i++ {
		code, err := g.Generate(context.Background(), exists)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match %s", code, codePattern)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q after %d codes", code, i)
		}
		seen[code] = true
	}
}

func TestCodeGeneratorExhausted(t *testing.T) {
	g := booking.NewCodeGenerator(10, 10).WithReader(zeroReader{})
	calls := 0
	_, err := g.Generate(context.Background(), func(_ context.Context, code string) (bool, error) {
		calls++
		if code != "AAAAAAAAAA" {
			t.Errorf("code = %q, want AAAAAAAAAA", code)
		}
		return true, nil
	})
	if got := booking.KindOf(err); got != booking.KindCodeExhausted {
		t.Fatalf("KindOf(err) = %q, want %q (err=%v)", got, booking.KindCodeExhausted, err)
	}
	if calls != 10 {
		t.Errorf("existence checks = %d, want 10", calls)
	}
}

func TestCodeGeneratorLookupFailure(t *testing.T) {
	g := booking.NewCodeGenerator(10, 10)
	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		return false, booking.ErrLockTimeout
	})
	if got := booking.KindOf(err); got != booking.KindTransient {
		t.Fatalf("KindOf(err) = %q, want %q", got, booking.KindTransient)
	}
	if !errors.Is(err, booking.ErrLockTimeout) {
		t.Errorf("err does not wrap ErrLockTimeout: %v", err)
	}
}
