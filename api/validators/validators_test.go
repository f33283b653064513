package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/types"
)

type patchBody struct {
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"flour","quantity":2}`))
	var body patchBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "flour", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"flour","quantity":0}`))
	err := DecodeJSONBody(req, &patchBody{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["quantity"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"flour","extra":1}`))
	err = DecodeJSONBody(req, &patchBody{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"extra": "is not allowed"}, pkgerrors.As(err).Details())
}

type overrideBody struct {
	Waste types.Nullable[float64] `json:"waste_pct" validate:"omitempty,gte=0,lte=1"`
	Price types.Nullable[int64]   `json:"price_minor" validate:"omitempty,gte=0"`
}

func TestDecodeJSONBodyValidatesNullableFields(t *testing.T) {
	for _, raw := range []string{`{}`, `{"waste_pct":null,"price_minor":null}`, `{"waste_pct":0.25,"price_minor":0}`} {
		var body overrideBody
		require.NoError(t, DecodeJSONBody(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(raw)), &body), raw)
	}

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"waste_pct":1.5,"price_minor":-5}`)), &overrideBody{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{
		"waste_pct":   "must be at most 1",
		"price_minor": "must be at least 0",
	}, pkgerrors.As(err).Details())
}

func TestValidateStructCurrency(t *testing.T) {
	type form struct {
		Currency string `json:"currency" validate:"required,iso4217"`
	}
	require.NoError(t, ValidateStruct(form{Currency: "EUR"}))

	err := ValidateStruct(form{Currency: "EURO"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"currency": "must be an ISO 4217 currency code"}, pkgerrors.As(err).Details())

	err = ValidateStruct(form{})
	assert.Equal(t, map[string]string{"currency": "is required"}, pkgerrors.As(err).Details())
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]struct {
		body    string
		message string
	}{
		"empty":       {body: "", message: "request body is required"},
		"syntax":      {body: `{"name":`, message: "malformed JSON"},
		"wrong type":  {body: `{"name":"flour","quantity":"two"}`, message: "invalid request body"},
		"two objects": {body: `{"name":"a","quantity":1}{"name":"b","quantity":1}`, message: "request body must contain a single JSON object"},
		"too large":   {body: `{"name":"` + strings.Repeat("x", MaxJSONBodyBytes) + `","quantity":1}`, message: "request body too large"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tc.body))
			err := DecodeJSONBody(req, &patchBody{})
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)
			assert.Equal(t, tc.message, pkgerrors.As(err).Message())
		})
	}
}

func TestParseOptionalPositiveInt(t *testing.T) {
	got, err := ParseOptionalPositiveInt(httptest.NewRequest(http.MethodGet, "/", nil), "pax", 1000)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalPositiveInt(httptest.NewRequest(http.MethodGet, "/?pax=25", nil), "pax", 1000)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 25, *got)

	got, err = ParseOptionalPositiveInt(httptest.NewRequest(http.MethodGet, "/?pax=1000", nil), "pax", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, *got)

	for _, raw := range []string{"0", "-3", "ten"} {
		_, err = ParseOptionalPositiveInt(httptest.NewRequest(http.MethodGet, "/?pax="+raw, nil), "pax", 1000)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
	}

	for _, raw := range []string{"1001", "9223372036854775", "99999999999999999999999"} {
		_, err = ParseOptionalPositiveInt(httptest.NewRequest(http.MethodGet, "/?pax="+raw, nil), "pax", 1000)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
		assert.Equal(t, "query parameter out of range", pkgerrors.As(err).Message(), raw)
	}
}

func TestParseQueryFloatAndUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?quantity=1.5&uom_id="+id.String(), nil)

	qty, err := ParseQueryFloat(req, "quantity")
	require.NoError(t, err)
	assert.Equal(t, 1.5, qty)

	got, err := ParseQueryUUID(req, "uom_id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseQueryFloat(httptest.NewRequest(http.MethodGet, "/?quantity=NaN", nil), "quantity")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "uom_id")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	got, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?force=true", nil), "force")
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?force=maybe", nil), "force")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abc", SanitizeString(" abc ", 0))
	assert.Equal(t, "crème", SanitizeString("crème brûlée.csv", 5))
	assert.Equal(t, "costs.csv", SanitizeString("cos\x00ts\n.csv", 0))
}
