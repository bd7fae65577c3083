package apiv1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/infra/logging"
)

// InternalClaims identify a trusted internal caller.
type InternalClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const ScopeSessionWrite = "sessions:write"

// InternalAuth guards endpoints reserved for trusted internal callers with
// HS256 bearer tokens.
type InternalAuth struct {
	secret     []byte
	issuer     string
	production bool
	log        *zerolog.Logger
}

func NewInternalAuth(secret, issuer string, production bool, logger *zerolog.Logger) *InternalAuth {
	l := logger.With().Str("component", "InternalAuth").Logger()
	return &InternalAuth{secret: []byte(secret), issuer: issuer, production: production, log: &l}
}

// Mint issues a token for subject, valid for ttl.
func (a *InternalAuth) Mint(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := InternalClaims{
		Scope: ScopeSessionWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(a.secret)
}

func (a *InternalAuth) parse(tok string) (*InternalClaims, error) {
	claims := &InternalClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Scope != ScopeSessionWrite {
		return nil, errors.New("token lacks scope")
	}
	return claims, nil
}

// Require rejects requests without a valid bearer token. With no secret
// configured, sandbox lets requests through and production refuses them.
func (a *InternalAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), a.log)
		if len(a.secret) == 0 {
			if a.production {
				l.Error().Msg("internal jwt secret is not configured")
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			l.Warn().Msg("internal jwt secret not configured; allowing unauthenticated call in sandbox")
			next.ServeHTTP(w, r)
			return
		}

		hdr := r.Header.Get("Authorization")
		if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := a.parse(strings.TrimSpace(hdr[7:]))
		if err != nil {
			l.Warn().Err(err).Msg("rejected internal call")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		l.Debug().Str("subject", claims.Subject).Msg("internal caller authenticated")
		next.ServeHTTP(w, r)
	})
}
