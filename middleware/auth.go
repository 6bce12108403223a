package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"Aarogya/pkg/apperr"
	tokenstore "Aarogya/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	ContextUserIDKey = "current_user_id"
	ContextJTIKey    = "current_jti"
	ContextExpiryKey = "current_token_exp"
)

// Principal is the authenticated caller.
type Principal struct {
	ID        string
	JTI       string
	ExpiresAt time.Time
}

// SessionGuard validates HMAC-signed session tokens issued by the identity
// provider. It never issues tokens itself outside development tooling.
type SessionGuard struct {
	secret  []byte
	issuer  string
	revoked tokenstore.Store
	log     zerolog.Logger
}

func NewSessionGuard(secret, issuer string, revoked tokenstore.Store, log zerolog.Logger) *SessionGuard {
	return &SessionGuard{secret: []byte(secret), issuer: issuer, revoked: revoked, log: log}
}

// Authenticate parses tokenStr and returns the principal in its sub claim.
func (g *SessionGuard) Authenticate(ctx context.Context, tokenStr string) (Principal, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Principal{}, apperr.New(apperr.KindUnauthorized, "missing token")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, apperr.New(apperr.KindUnauthorized, "invalid token claims")
	}

	var p Principal
	switch sub := claims["sub"].(type) {
	case string:
		p.ID = strings.TrimSpace(sub)
	case float64:
		// numeric subjects decode as float64
		p.ID = strconv.FormatInt(int64(sub), 10)
	}
	if p.ID == "" {
		return Principal{}, apperr.New(apperr.KindUnauthorized, "invalid subject in token")
	}
	p.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}

	if g.revoked != nil && p.JTI != "" {
		revoked, err := g.revoked.IsRevoked(ctx, p.JTI)
		if err != nil {
			g.log.Error().Err(err).Msg("revocation lookup failed")
			return Principal{}, apperr.Wrap(apperr.KindStoreUnavailable, "session check unavailable", err)
		}
		if revoked {
			return Principal{}, apperr.New(apperr.KindUnauthorized, "token has been revoked (logout)")
		}
	}
	return p, nil
}

// Middleware aborts with 401 before any handler runs unless the request
// carries a valid bearer token. WebSocket upgrades may pass ?token= instead,
// since browsers cannot set headers on them.
func (g *SessionGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			Abort(c, err)
			return
		}
		p, err := g.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			Abort(c, err)
			return
		}
		c.Set(ContextUserIDKey, p.ID)
		c.Set(ContextJTIKey, p.JTI)
		c.Set(ContextExpiryKey, p.ExpiresAt)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if q := c.Query("token"); q != "" {
				return q, nil
			}
		}
		return "", apperr.New(apperr.KindUnauthorized, "missing authorization header")
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", apperr.New(apperr.KindUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

// UserID returns the principal set by SessionGuard, or "".
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

// CurrentPrincipal returns everything SessionGuard stored on the context.
func CurrentPrincipal(c *gin.Context) Principal {
	p := Principal{ID: c.GetString(ContextUserIDKey), JTI: c.GetString(ContextJTIKey)}
	if exp, ok := c.Get(ContextExpiryKey); ok {
		p.ExpiresAt, _ = exp.(time.Time)
	}
	return p
}

// Abort writes the standard error body for err and stops the chain.
func Abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"success": false, "msg": apperr.Message(err)})
}

// MintToken signs a session token for subject. Only development tooling and
// tests call it; production tokens come from the identity provider.
func MintToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
