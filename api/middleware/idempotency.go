package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/platecost-backend/api/responses"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/platecost-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"

	writeTTL   = 24 * time.Hour
	confirmTTL = 7 * 24 * time.Hour
	// claimTTL bounds how long a crashed request can block its key.
	claimTTL = 2 * time.Minute
)

type idempotentRoute struct {
	method string
	suffix string
	ttl    time.Duration
}

// Matched against the chi pattern below the org prefix.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, suffix: "/cost-imports", ttl: writeTTL},
	{method: http.MethodPost, suffix: "/cost-imports/{importId}/confirm", ttl: confirmTTL},
	{method: http.MethodPost, suffix: "/menus/{menuId}/lock", ttl: writeTTL},
	{method: http.MethodPost, suffix: "/menus/{menuId}/unlock", ttl: writeTTL},
}

const orgRoutePrefix = "/api/v1/orgs/{orgId}"

type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency replays the stored response of a write retried with the same
// Idempotency-Key. The first request claims the key before running, so a
// concurrent duplicate is rejected instead of executing twice. Requests
// without the header pass through, and a key reused with a different body
// is a conflict. 5xx responses release the claim so the write can be retried.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ttl, ok := idempotencyTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			claim, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), claimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayStored(w, r, store, key, hash, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// the client's context may already be gone once the handler returns
			storeCtx := context.WithoutCancel(ctx)
			if rec.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, key); err != nil && logg != nil {
					logg.Error(storeCtx, "release idempotency key", err)
				}
				return
			}
			payload, err := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      rec.statusCode(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			})
			if err == nil {
				err = store.Set(storeCtx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(storeCtx, "persist idempotency record", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if pkgredis.IsNil(err) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request still settling; retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(ReplayHeader, "true")
		w.WriteHeader(stored.Status)
		if decoded, err := base64.StdEncoding.DecodeString(stored.Body); err == nil {
			_, _ = w.Write(decoded)
		}
	}
}

// idempotencyScope keys records per tenant, actor and concrete path so the
// same client key on another menu or import is independent.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{
		OrgIDFromContext(r.Context()).String(),
		ActorIDFromContext(r.Context()).String(),
		r.Method,
		r.URL.Path,
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			if len(pattern) > 1 {
				pattern = strings.TrimSuffix(pattern, "/")
			}
			return pattern
		}
	}
	return r.URL.Path
}

func idempotencyTTL(method, pattern string) (time.Duration, bool) {
	rest, ok := strings.CutPrefix(pattern, orgRoutePrefix)
	if !ok {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.method == method && rest == route.suffix {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
