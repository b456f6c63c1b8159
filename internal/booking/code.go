package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// bytes at or above this value are rejected so every symbol is equally likely
const codeRejectAbove = 256 - 256%len(codeAlphabet)

// CodeGenerator produces confirmation codes from [A-Z0-9].
type CodeGenerator struct {
	rand     io.Reader
	length   int
	attempts int
}

// NewCodeGenerator returns a generator reading from crypto/rand.
func NewCodeGenerator(length, attempts int) *CodeGenerator {
	if length <= 0 {
		length = 10
	}
	if attempts <= 0 {
		attempts = 10
	}
	return &CodeGenerator{rand: rand.Reader, length: length, attempts: attempts}
}

// WithReader replaces the entropy source.  Tests use it to force collisions.
func (g *CodeGenerator) WithReader(r io.Reader) *CodeGenerator {
	cp := *g
	cp.rand = r
	return &cp
}

func (g *CodeGenerator) candidate() (string, error) {
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeRejectAbove {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

// Generate draws candidates until exists reports one unused, giving up
// after the configured number of attempts with KindCodeExhausted.  The
// unique index on confirmation_code remains the final guard.
func (g *CodeGenerator) Generate(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := g.candidate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", storeError("check confirmation code", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", &Error{
		Kind:    KindCodeExhausted,
		Message: fmt.Sprintf("could not generate a unique confirmation code after %d attempts", g.attempts),
	}
}
