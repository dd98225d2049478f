package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ACTOR CONTEXT
// =============================================================================

type actorKey struct{}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor leave.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated actor stored by the auth middleware.
func ActorFrom(ctx context.Context) (leave.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(leave.Actor)
	return actor, ok
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Claims are the bearer token claims identifying an actor.
type Claims struct {
	EmployeeID string   `json:"employee_id"`
	CompanyID  string   `json:"company_id"`
	Roles      []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

var errUnauthenticated = errors.New("unauthenticated")

// Authenticator verifies HMAC-signed bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for actor valid for ttl from now.
func (a *Authenticator) Sign(actor leave.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		EmployeeID: string(actor.EmployeeID),
		CompanyID:  string(actor.CompanyID),
		Roles:      actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor.EmployeeID),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies token and returns the actor it names.
func (a *Authenticator) Parse(token string) (leave.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return leave.Actor{}, fmt.Errorf("%w: %w", errUnauthenticated, err)
	}
	if claims.EmployeeID == "" || claims.CompanyID == "" {
		return leave.Actor{}, fmt.Errorf("%w: employee_id and company_id claims are required", errUnauthenticated)
	}

	return leave.Actor{
		EmployeeID: leave.EmployeeID(claims.EmployeeID),
		CompanyID:  leave.CompanyID(claims.CompanyID),
		Roles:      claims.Roles,
	}, nil
}

// Middleware rejects requests without a valid bearer token and stores
// the actor in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{
				Code: CodeUnauthenticated, Message: "bearer token required",
			}})
			return
		}

		actor, err := a.Parse(token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "token expired"
			}
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{
				Code: CodeUnauthenticated, Message: message,
			}})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// ActorLimiter keeps one token bucket per employee.
type ActorLimiter struct {
	mu       sync.Mutex
	limiters map[leave.EmployeeID]*rate.Limiter
	r        rate.Limit
	b        int
}

func NewActorLimiter(r rate.Limit, b int) *ActorLimiter {
	return &ActorLimiter{
		limiters: make(map[leave.EmployeeID]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (l *ActorLimiter) limiter(id leave.EmployeeID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[id] = lim
	}
	return lim
}

// Middleware throttles mutating requests per actor. Reads pass through.
// It must run after authentication.
func (l *ActorLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		actor, ok := ActorFrom(r.Context())
		if ok && !l.limiter(actor.EmployeeID).Allow() {
			writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: ErrorDetail{
				Code: CodeRateLimited, Message: "too many requests, slow down",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// ACCESS LOG
// =============================================================================

// accessLog writes one structured line per request.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("http request", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}
