package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guildview/panel-service/internal/domain/model"
)

// Interface guard
var _ Auther = (*AuthService)(nil)

// ErrTokenRejected is returned for missing, unknown or malformed tokens.
// Handlers translate it to 401; the text never echoes the token itself.
var ErrTokenRejected = errors.New("invalid or unknown access token")

// Auther resolves a bearer token into the identity behind it.
type Auther interface {
	Authenticate(ctx context.Context, token string) (model.Identity, error)
}

// AuthService verifies config-provisioned tokens. Comparison walks the whole
// table in constant time per entry, so lookups do not leak which prefix of a
// guessed token matched.
//
// [HOT_PATH] Long-poll clients re-authenticate on every request, so resolved
// identities sit in an LRU in front of the scan.
type AuthService struct {
	allowAnonymous bool
	tokens         map[string]model.Identity
	cache          *lru.Cache[string, model.Identity]
	logger         *slog.Logger
}

// NewAuthService indexes the provisioned token table.
func NewAuthService(allowAnonymous bool, tokens map[string]model.Identity, logger *slog.Logger) *AuthService {
	cache, _ := lru.New[string, model.Identity](1024)

	return &AuthService{
		allowAnonymous: allowAnonymous,
		tokens:         tokens,
		cache:          cache,
		logger:         logger,
	}
}

// AnonymousIdentity is handed to tokenless connections when the panel runs
// in open mode. It can see every guild but carries no admin bit.
func AnonymousIdentity() model.Identity {
	return model.Identity{
		UserID: "anonymous",
		Name:   "Anonymous",
		Grants: model.Grants{Guilds: []string{model.GrantAll}},
	}
}

func (a *AuthService) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		if a.allowAnonymous {
			return AnonymousIdentity(), nil
		}
		return model.Identity{}, ErrTokenRejected
	}

	if identity, ok := a.cache.Get(token); ok {
		return identity, nil
	}

	for candidate, identity := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			a.cache.Add(token, identity)
			return identity, nil
		}
	}

	a.logger.Debug("token rejected", slog.Int("token_len", len(token)))

	return model.Identity{}, ErrTokenRejected
}
