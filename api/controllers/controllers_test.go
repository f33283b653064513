package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/internal/costimport"
	"github.com/angelmondragon/platecost-backend/internal/menucost"
	"github.com/angelmondragon/platecost-backend/pkg/config"
	"github.com/angelmondragon/platecost-backend/pkg/db/dbtest"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/types"
)

type fakeMenuService struct {
	orgID      uuid.UUID
	actorID    uuid.UUID
	menuID     uuid.UUID
	pax        *int
	groupPatch menucost.GroupPatch
	itemPatch  menucost.ItemPatch
	err        error
}

func (f *fakeMenuService) Report(_ context.Context, orgID, menuID uuid.UUID, pax *int) (*menucost.Report, error) {
	f.orgID, f.menuID, f.pax = orgID, menuID, pax
	if f.err != nil {
		return nil, f.err
	}
	return &menucost.Report{MenuID: menuID, MenuCostPerPaxMinor: 1245}, nil
}

func (f *fakeMenuService) LockCheck(_ context.Context, orgID, menuID uuid.UUID) (*menucost.LockCheck, error) {
	f.orgID, f.menuID = orgID, menuID
	return &menucost.LockCheck{CanLock: false, Reasons: []string{"no_items"}}, f.err
}

func (f *fakeMenuService) Lock(_ context.Context, orgID, actorID, menuID uuid.UUID) (*menucost.Report, error) {
	f.orgID, f.actorID, f.menuID = orgID, actorID, menuID
	if f.err != nil {
		return nil, f.err
	}
	return &menucost.Report{MenuID: menuID, CostMode: enums.CostModeLocked}, nil
}

func (f *fakeMenuService) Unlock(_ context.Context, orgID, actorID, menuID uuid.UUID) (*menucost.Report, error) {
	f.orgID, f.actorID, f.menuID = orgID, actorID, menuID
	if f.err != nil {
		return nil, f.err
	}
	return &menucost.Report{MenuID: menuID, CostMode: enums.CostModeLive}, nil
}

func (f *fakeMenuService) UpdateGroup(_ context.Context, orgID, menuID, _ uuid.UUID, patch menucost.GroupPatch) error {
	f.orgID, f.menuID, f.groupPatch = orgID, menuID, patch
	return f.err
}

func (f *fakeMenuService) UpdateItem(_ context.Context, orgID, menuID, _ uuid.UUID, patch menucost.ItemPatch) error {
	f.orgID, f.menuID, f.itemPatch = orgID, menuID, patch
	return f.err
}

type fakeImportService struct {
	actorID uuid.UUID
	input   costimport.UploadInput
	body    string
	force   bool
	err     error
}

func (f *fakeImportService) Preview(_ context.Context, _ uuid.UUID, body io.Reader) (*costimport.Preview, error) {
	raw, _ := io.ReadAll(body)
	f.body = string(raw)
	return &costimport.Preview{Summary: costimport.Summary{Total: 1, MatchedOK: 1}}, f.err
}

func (f *fakeImportService) Upload(_ context.Context, _, actorID uuid.UUID, input costimport.UploadInput) (*costimport.ImportView, error) {
	raw, _ := io.ReadAll(input.Body)
	f.actorID, f.input, f.body = actorID, input, string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &costimport.ImportView{ID: uuid.New(), Filename: input.Filename, Status: enums.CostImportStatusUploaded}, nil
}

func (f *fakeImportService) Get(_ context.Context, _, importID uuid.UUID) (*costimport.ImportView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &costimport.ImportView{ID: importID}, nil
}

func (f *fakeImportService) Confirm(_ context.Context, _, actorID, importID uuid.UUID, force bool) (*costimport.ConfirmResult, error) {
	f.actorID, f.force = actorID, force
	if f.err != nil {
		return nil, f.err
	}
	return &costimport.ConfirmResult{ImportID: importID, Status: enums.CostImportStatusApplied}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func scopedRequest(method, target string, body io.Reader, orgID, actorID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = middleware.WithOrgID(ctx, orgID)
	if actorID != uuid.Nil {
		ctx = middleware.WithActorID(ctx, actorID)
	}
	return req.WithContext(ctx)
}

func decodeErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile(uploadFileField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestMenuCostPassesPaxAndScope(t *testing.T) {
	svc := &fakeMenuService{}
	orgID, menuID := uuid.New(), uuid.New()
	req := scopedRequest(http.MethodGet, "/cost?pax=40", nil, orgID, uuid.Nil, map[string]string{"menuId": menuID.String()})
	resp := httptest.NewRecorder()

	MenuCost(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, orgID, svc.orgID)
	assert.Equal(t, menuID, svc.menuID)
	require.NotNil(t, svc.pax)
	assert.Equal(t, 40, *svc.pax)

	var payload struct {
		Data menucost.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, int64(1245), payload.Data.MenuCostPerPaxMinor)
}

func TestMenuCostRejectsBadInput(t *testing.T) {
	svc := &fakeMenuService{}
	orgID := uuid.New()

	resp := httptest.NewRecorder()
	MenuCost(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodGet, "/cost?pax=0", nil, orgID, uuid.Nil, map[string]string{"menuId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	MenuCost(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodGet, "/cost?pax=9223372036854775", nil, orgID, uuid.Nil, map[string]string{"menuId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, svc.pax, "oversized pax must not reach the service")

	resp = httptest.NewRecorder()
	MenuCost(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodGet, "/cost", nil, orgID, uuid.Nil, map[string]string{"menuId": "x"}))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMenuLockMapsServiceErrors(t *testing.T) {
	svc := &fakeMenuService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "menu is already locked")}
	actorID := uuid.New()
	req := scopedRequest(http.MethodPost, "/lock", nil, uuid.New(), actorID, map[string]string{"menuId": uuid.NewString()})
	resp := httptest.NewRecorder()

	MenuLock(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeErrorCode(t, resp))
	assert.Equal(t, actorID, svc.actorID)
}

func TestMenuGroupPatchDecodesNullableFields(t *testing.T) {
	svc := &fakeMenuService{}
	params := map[string]string{"menuId": uuid.NewString(), "groupId": uuid.NewString()}
	req := scopedRequest(http.MethodPatch, "/groups/x", strings.NewReader(`{"uptake_pct":null,"portion":1.5}`), uuid.New(), uuid.New(), params)
	resp := httptest.NewRecorder()

	MenuGroupPatch(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.True(t, svc.groupPatch.UptakePct.Valid)
	assert.Nil(t, svc.groupPatch.UptakePct.Value)
	require.True(t, svc.groupPatch.Portion.Valid)
	assert.Equal(t, 1.5, *svc.groupPatch.Portion.Value)
	assert.False(t, svc.groupPatch.WastePct.Valid)
}

func TestMenuOverridePatchesEnforceRanges(t *testing.T) {
	groupParams := map[string]string{"menuId": uuid.NewString(), "groupId": uuid.NewString()}
	itemParams := map[string]string{"menuId": uuid.NewString(), "itemId": uuid.NewString()}
	cases := []struct {
		name    string
		body    string
		item    bool
		wantErr bool
	}{
		{name: "waste above one", body: `{"waste_pct":1.5}`, wantErr: true},
		{name: "negative uptake", body: `{"uptake_pct":-0.1}`, wantErr: true},
		{name: "zero portion", body: `{"portion":0}`, item: true, wantErr: true},
		{name: "negative selling price", body: `{"selling_price_minor":-1}`, item: true, wantErr: true},
		{name: "bounds are inclusive", body: `{"uptake_pct":1,"waste_pct":0}`},
		{name: "nulls clear overrides", body: `{"portion":null,"selling_price_minor":null}`, item: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeMenuService{}
			resp := httptest.NewRecorder()
			if tc.item {
				req := scopedRequest(http.MethodPatch, "/items/x", strings.NewReader(tc.body), uuid.New(), uuid.New(), itemParams)
				MenuItemPatch(svc, nil).ServeHTTP(resp, req)
			} else {
				req := scopedRequest(http.MethodPatch, "/groups/x", strings.NewReader(tc.body), uuid.New(), uuid.New(), groupParams)
				MenuGroupPatch(svc, nil).ServeHTTP(resp, req)
			}

			if tc.wantErr {
				assert.Equal(t, http.StatusBadRequest, resp.Code)
				assert.Equal(t, string(pkgerrors.CodeValidation), decodeErrorCode(t, resp))
				assert.Equal(t, uuid.Nil, svc.menuID)
				return
			}
			assert.Equal(t, http.StatusNoContent, resp.Code)
			assert.NotEqual(t, uuid.Nil, svc.menuID)
		})
	}
}

func TestMenuItemPatchRejectsUnknownFields(t *testing.T) {
	svc := &fakeMenuService{}
	params := map[string]string{"menuId": uuid.NewString(), "itemId": uuid.NewString()}
	req := scopedRequest(http.MethodPatch, "/items/x", strings.NewReader(`{"price":10}`), uuid.New(), uuid.New(), params)
	resp := httptest.NewRecorder()

	MenuItemPatch(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCostImportUploadReadsMultipart(t *testing.T) {
	svc := &fakeImportService{}
	actorID := uuid.New()
	body, contentType := multipartBody(t, "../costs.csv", "ingredient,qty\n", map[string]string{uploadCurrencyField: " usd"})
	req := scopedRequest(http.MethodPost, "/cost-imports", body, uuid.New(), actorID, nil)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()

	CostImportUpload(svc, 1<<20, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, actorID, svc.actorID)
	assert.Equal(t, "costs.csv", svc.input.Filename)
	assert.Equal(t, "USD", svc.input.Currency)
	assert.Equal(t, "ingredient,qty\n", svc.body)
}

func TestCostImportUploadRejectsUnknownCurrency(t *testing.T) {
	for _, currency := range []string{"", "dollars", "XYZ"} {
		svc := &fakeImportService{}
		body, contentType := multipartBody(t, "costs.csv", "ingredient,qty\n", map[string]string{uploadCurrencyField: currency})
		req := scopedRequest(http.MethodPost, "/cost-imports", body, uuid.New(), uuid.New(), nil)
		req.Header.Set("Content-Type", contentType)
		resp := httptest.NewRecorder()

		CostImportUpload(svc, 1<<20, nil).ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code, currency)
		assert.Equal(t, string(pkgerrors.CodeValidation), decodeErrorCode(t, resp))
		assert.Empty(t, svc.input.Filename, currency)
	}
}

func TestCostImportUploadRejectsMissingFileAndOversize(t *testing.T) {
	svc := &fakeImportService{}

	body, contentType := multipartBody(t, "", "", map[string]string{uploadCurrencyField: "USD"})
	req := scopedRequest(http.MethodPost, "/cost-imports", body, uuid.New(), uuid.New(), nil)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	CostImportUpload(svc, 1<<20, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	body, contentType = multipartBody(t, "big.csv", strings.Repeat("x", 4096), nil)
	req = scopedRequest(http.MethodPost, "/cost-imports/preview", body, uuid.New(), uuid.Nil, nil)
	req.Header.Set("Content-Type", contentType)
	resp = httptest.NewRecorder()
	CostImportPreview(svc, 1024, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeErrorCode(t, resp))
}

func TestCostImportConfirmForwardsForce(t *testing.T) {
	svc := &fakeImportService{}
	params := map[string]string{"importId": uuid.NewString()}

	resp := httptest.NewRecorder()
	CostImportConfirm(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/confirm?force=true", nil, uuid.New(), uuid.New(), params))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.force)

	svc.err = pkgerrors.New(pkgerrors.CodeConflict, "ingredient costs were updated today").
		WithDetails(map[string]any{"recent_updates": 2})
	resp = httptest.NewRecorder()
	CostImportConfirm(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/confirm", nil, uuid.New(), uuid.New(), params))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.False(t, svc.force)
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, ReadinessCheck{Name: "database", Pinger: failingPinger{}}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), decodeErrorCode(t, resp))

	resp = httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "dev", resp.Header().Get("X-PlateCost-Env"))
}

func TestAuditTrail(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := audit.NewService(audit.NewRepository(db))
	require.NoError(t, err)

	orgID, menuID := uuid.New(), uuid.New()
	require.NoError(t, svc.Record(context.Background(), db, audit.Entry{
		OrgID:      orgID,
		ActorID:    uuid.New(),
		EntityType: enums.AuditEntityMenu,
		EntityID:   menuID,
		Action:     enums.AuditActionMenuLocked,
		Before:     map[string]string{"cost_mode": "live"},
		After:      map[string]string{"cost_mode": "locked"},
	}))

	resp := httptest.NewRecorder()
	req := scopedRequest(http.MethodGet, "/audit?entity_type=order&entity_id="+menuID.String(), nil, orgID, uuid.Nil, nil)
	AuditTrail(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	req = scopedRequest(http.MethodGet, "/audit?entity_type=menu&entity_id="+menuID.String(), nil, orgID, uuid.Nil, nil)
	AuditTrail(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var payload struct {
		Data struct {
			Entries []auditEntryView `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Data.Entries, 1)
	assert.Equal(t, enums.AuditActionMenuLocked, payload.Data.Entries[0].Action)
	assert.JSONEq(t, `{"cost_mode":"locked"}`, string(payload.Data.Entries[0].After))
}
