package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenNotConfigured = errors.New("import token hash not configured")
	ErrInvalidTokenHash   = errors.New("invalid import token hash")
)

const minTokenLength = 16

// Client is the caller identified by a valid import token.
type Client struct {
	Name string `json:"name"`
	IP   string `json:"ip,omitempty"`
}

// Guard checks bearer tokens against a bcrypt hash. The digest of the last
// token that passed is kept so repeat calls skip bcrypt.
type Guard struct {
	hash      []byte
	anonymous bool

	mu       sync.RWMutex
	verified [sha256.Size]byte
	warm     bool
}

// NewGuard builds a guard for the given hash. An empty hash is accepted only
// when allowAnonymous is set, in which case every request passes.
func NewGuard(hash string, allowAnonymous bool) (*Guard, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		if !allowAnonymous {
			return nil, ErrTokenNotConfigured
		}
		return &Guard{anonymous: true}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	return &Guard{hash: []byte(hash)}, nil
}

func (g *Guard) Anonymous() bool {
	return g.anonymous
}

func (g *Guard) Verify(token string) error {
	if g.anonymous {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(token))
	g.mu.RLock()
	hit := g.warm && subtle.ConstantTimeCompare(sum[:], g.verified[:]) == 1
	g.mu.RUnlock()
	if hit {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
		return ErrUnauthorized
	}
	g.mu.Lock()
	g.verified, g.warm = sum, true
	g.mu.Unlock()
	return nil
}

// HashToken produces the value operators put in IMPORT_TOKEN_HASH.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) < minTokenLength {
		return "", fmt.Errorf("token must be at least %d characters", minTokenLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}
