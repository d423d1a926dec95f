package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// tokenBytes gives 128 bits of entropy, enough to make guessing a share
// token infeasible.
const tokenBytes = 16

// TokenIssuer mints share tokens from a cryptographically secure source.
type TokenIssuer struct {
	gen func() string
}

func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{gen: randomToken}
}

func randomToken() string {
	buf := make([]byte, tokenBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (t *TokenIssuer) Generate() string {
	return t.gen()
}

// IssueUnique generates candidates until exists reports an unused one.
// Collisions are astronomically rare; the loop is for correctness.
func (t *TokenIssuer) IssueUnique(ctx context.Context, exists func(ctx context.Context, token string) (bool, error)) (string, error) {
	for {
		token := t.gen()
		used, err := exists(ctx, token)
		if err != nil {
			return "", err
		}
		if !used {
			return token, nil
		}
	}
}
