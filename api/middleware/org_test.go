package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgRouter(capture func(*http.Request)) http.Handler {
	r := chi.NewRouter()
	r.Route("/orgs/{orgId}", func(r chi.Router) {
		r.Use(OrgScope(nil))
		r.Get("/read", func(w http.ResponseWriter, req *http.Request) {
			capture(req)
			w.WriteHeader(http.StatusOK)
		})
		r.With(RequireActor(nil)).Post("/write", func(w http.ResponseWriter, req *http.Request) {
			capture(req)
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func TestOrgScopeInjectsIdentifiers(t *testing.T) {
	orgID := uuid.New()
	actorID := uuid.New()
	var gotOrg, gotActor uuid.UUID
	router := orgRouter(func(r *http.Request) {
		gotOrg = OrgIDFromContext(r.Context())
		gotActor = ActorIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/orgs/"+orgID.String()+"/read", nil)
	req.Header.Set(ActorHeader, actorID.String())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, orgID, gotOrg)
	assert.Equal(t, actorID, gotActor)
}

func TestOrgScopeRejectsInvalidIdentifiers(t *testing.T) {
	router := orgRouter(func(*http.Request) { t.Fatal("handler should not run") })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orgs/not-a-uuid/read", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/orgs/"+uuid.NewString()+"/read", nil)
	req.Header.Set(ActorHeader, "nope")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRequireActor(t *testing.T) {
	calls := 0
	router := orgRouter(func(*http.Request) { calls++ })
	path := "/orgs/" + uuid.NewString() + "/write"

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, calls)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(ActorHeader, uuid.NewString())
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, 1, calls)
}
