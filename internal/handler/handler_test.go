package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupons-api/internal/domain/discount"
	"github.com/xenking/coupons-api/internal/service"
	"github.com/xenking/coupons-api/internal/storage/memory"
	"github.com/xenking/coupons-api/pkg/health"
)

const (
	cartWiseBody    = `{"type":"cart-wise","details":{"threshold":100,"discount":10}}`
	productWiseBody = `{"type":"product-wise","details":{"product_id":1,"discount":20,"discountType":"percentage"}}`
	bxgyBody        = `{"type":"bxgy","details":{"buy_products":[{"product_id":1,"quantity":3},{"product_id":2,"quantity":3}],"get_products":[{"product_id":3,"quantity":1}],"repetition_limit":2}}`
	sampleCart      = `{"cart":{"items":[{"product_id":1,"quantity":6,"price":50},{"product_id":2,"quantity":3,"price":30},{"product_id":3,"quantity":2,"price":25}]}}`
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(memory.NewCouponRepository(), discount.NewEngine())
	require.NoError(t, err)
	return New(svc).Router(health.New())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type couponEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Details  map[string]any `json:"details"`
		IsActive bool           `json:"isActive"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func create(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/coupons", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[couponEnvelope](t, w).Data.ID
}

func TestCouponCRUD(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/coupons", cartWiseBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	created := decode[couponEnvelope](t, w)
	assert.True(t, created.Success)
	assert.Equal(t, "Coupon created successfully", created.Message)
	assert.Equal(t, "cart-wise", created.Data.Type)
	assert.True(t, created.Data.IsActive)
	assert.EqualValues(t, 100, created.Data.Details["threshold"])
	id := created.Data.ID
	require.NotEmpty(t, id)

	w = do(t, h, http.MethodGet, "/coupons/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[couponEnvelope](t, w)
	assert.Equal(t, id, got.Data.ID)
	assert.Empty(t, got.Message)

	w = do(t, h, http.MethodPut, "/coupons/"+id, `{"isActive":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[couponEnvelope](t, w)
	assert.Equal(t, "Coupon updated successfully", updated.Message)
	assert.False(t, updated.Data.IsActive)
	assert.EqualValues(t, 10, updated.Data.Details["discount"])

	w = do(t, h, http.MethodDelete, "/coupons/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Coupon deleted successfully"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/coupons/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "coupon with ID "+id+" not found", decode[errorEnvelope](t, w).Error.Message)
}

func TestListCoupons(t *testing.T) {
	h := newTestServer(t)
	create(t, h, cartWiseBody)
	create(t, h, productWiseBody)
	create(t, h, `{"type":"bxgy","isActive":false,"details":{"buy_products":[{"product_id":1,"quantity":1}],"get_products":[{"product_id":2,"quantity":1}]}}`)

	type listEnvelope struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Data    []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	types := func(l listEnvelope) []string {
		var out []string
		for _, c := range l.Data {
			out = append(out, c.Type)
		}
		return out
	}

	for _, tt := range []struct {
		name  string
		query string
		want  []string
	}{
		{"All", "", []string{"cart-wise", "product-wise", "bxgy"}},
		{"ByType", "?type=product-wise", []string{"product-wise"}},
		{"Active", "?isActive=true", []string{"cart-wise", "product-wise"}},
		{"Inactive", "?isActive=false", []string{"bxgy"}},
		{"Both", "?type=bxgy&isActive=true", nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/coupons"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			l := decode[listEnvelope](t, w)
			assert.True(t, l.Success)
			assert.Equal(t, len(tt.want), l.Count)
			assert.Equal(t, tt.want, types(l))
		})
	}

	t.Run("BadFilter", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/coupons?type=bogus&isActive=maybe", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		e := decode[errorEnvelope](t, w)
		assert.Equal(t, "Invalid query parameters", e.Error.Message)
		assert.Len(t, e.Error.Errors, 2)
	})
}

func TestCreateCoupon_Invalid(t *testing.T) {
	h := newTestServer(t)

	for _, tt := range []struct {
		name    string
		body    string
		message string
		errors  []string
	}{
		{
			name:    "WrongFieldTypes",
			body:    `{"type":"cart-wise","details":{"threshold":"100","discount":10}}`,
			message: "Invalid coupon data",
			errors:  []string{"threshold must be a positive number"},
		},
		{
			name:    "OutOfRange",
			body:    `{"type":"product-wise","details":{"product_id":0,"discount":-5}}`,
			message: "Invalid coupon data",
			errors:  []string{"product_id must be a positive number", "discount must be a positive number"},
		},
		{
			name:    "UnknownType",
			body:    `{"type":"bogo","details":{}}`,
			message: "Invalid coupon data",
			errors:  []string{"type must be one of: cart-wise, product-wise, bxgy"},
		},
		{
			name:    "EmptyBody",
			body:    "",
			message: "Invalid coupon data",
			errors:  []string{"type must be one of: cart-wise, product-wise, bxgy"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/coupons", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			e := decode[errorEnvelope](t, w)
			assert.Equal(t, tt.message, e.Error.Message)
			assert.Equal(t, tt.errors, e.Error.Errors)
		})
	}

	t.Run("MalformedJSON", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/coupons", `{"type":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		e := decode[errorEnvelope](t, w)
		assert.Equal(t, "Invalid JSON in request body", e.Error.Message)
		assert.NotEmpty(t, e.Error.Errors)
	})
}

func TestUpdateCoupon(t *testing.T) {
	h := newTestServer(t)
	id := create(t, h, cartWiseBody)

	t.Run("ChangeType", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/coupons/"+id, productWiseBody)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		c := decode[couponEnvelope](t, w)
		assert.Equal(t, "product-wise", c.Data.Type)
		assert.EqualValues(t, 1, c.Data.Details["product_id"])
		assert.NotContains(t, c.Data.Details, "threshold")
	})
	t.Run("TypeWithoutDetails", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/coupons/"+id, `{"type":"bxgy"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid coupon data", decode[errorEnvelope](t, w).Error.Message)
	})
	t.Run("Unknown", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/coupons/missing", `{"isActive":true}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteCoupon_NotFound(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodDelete, "/coupons/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "coupon with ID missing not found", decode[errorEnvelope](t, w).Error.Message)
}

func TestApplicableCoupons(t *testing.T) {
	h := newTestServer(t)
	cartID := create(t, h, cartWiseBody)
	productID := create(t, h, productWiseBody)
	bxgyID := create(t, h, bxgyBody)
	create(t, h, `{"type":"product-wise","details":{"product_id":99,"discount":5}}`)
	create(t, h, `{"type":"cart-wise","isActive":false,"details":{"threshold":1,"discount":90}}`)

	w := do(t, h, http.MethodPost, "/applicable-coupons", sampleCart)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"applicable_coupons":[
		{"coupon_id":"`+productID+`","type":"product-wise","discount":60},
		{"coupon_id":"`+cartID+`","type":"cart-wise","discount":44},
		{"coupon_id":"`+bxgyID+`","type":"bxgy","discount":25}
	]}`, w.Body.String())
}

func TestApplicableCoupons_EmptyCatalog(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/applicable-coupons", sampleCart)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applicable_coupons":[]}`, w.Body.String())
}

func TestApplyCoupon(t *testing.T) {
	h := newTestServer(t)
	id := create(t, h, bxgyBody)

	w := do(t, h, http.MethodPost, "/apply-coupon/"+id, sampleCart)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"updated_cart":{
		"items":[
			{"product_id":1,"quantity":6,"price":50,"total_discount":0},
			{"product_id":2,"quantity":3,"price":30,"total_discount":0},
			{"product_id":3,"quantity":2,"price":25,"total_discount":25}
		],
		"total_price":440,
		"total_discount":25,
		"final_price":415
	}}`, w.Body.String())
}

func TestApplyCoupon_Errors(t *testing.T) {
	h := newTestServer(t)
	inactive := create(t, h, `{"type":"cart-wise","isActive":false,"details":{"threshold":1,"discount":5}}`)
	unreachable := create(t, h, `{"type":"cart-wise","details":{"threshold":10000,"discount":5}}`)

	for _, tt := range []struct {
		name    string
		path    string
		body    string
		status  int
		message string
		errors  []string
	}{
		{"Inactive", "/apply-coupon/" + inactive, sampleCart, http.StatusBadRequest, "Coupon is not active", nil},
		{"NotApplicable", "/apply-coupon/" + unreachable, sampleCart, http.StatusBadRequest, "Coupon is not applicable to this cart", nil},
		{"UnknownCoupon", "/apply-coupon/missing", sampleCart, http.StatusNotFound, "coupon with ID missing not found", nil},
		{"MissingCart", "/apply-coupon/" + inactive, `{}`, http.StatusBadRequest, "Cart is required in request body", nil},
		{"NullCart", "/apply-coupon/" + inactive, `{"cart":null}`, http.StatusBadRequest, "Cart is required in request body", nil},
		{
			"EmptyItems", "/apply-coupon/" + inactive, `{"cart":{"items":[]}}`,
			http.StatusBadRequest, "Invalid cart data", []string{"cart.items cannot be empty"},
		},
		{
			"WrongTypes", "/apply-coupon/" + inactive, `{"cart":{"items":[{"product_id":"a","quantity":1.5}]}}`,
			http.StatusBadRequest, "Invalid cart data", []string{
				"cart.items[0].product_id must be a positive number",
				"cart.items[0].quantity must be a positive number",
				"cart.items[0].price must be a non-negative number",
			},
		},
		{
			"ProductIDOverflow", "/apply-coupon/" + inactive, `{"cart":{"items":[{"product_id":18446744073709551617,"quantity":1,"price":10}]}}`,
			http.StatusBadRequest, "Invalid cart data", []string{"cart.items[0].product_id must be a positive number"},
		},
		{
			"NegativePrice", "/apply-coupon/" + inactive, `{"cart":{"items":[{"product_id":1,"quantity":1,"price":-1}]}}`,
			http.StatusBadRequest, "Invalid cart data", []string{"cart.items[0].price must be a non-negative number"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			e := decode[errorEnvelope](t, w)
			assert.Equal(t, tt.message, e.Error.Message)
			assert.Equal(t, tt.errors, e.Error.Errors)
		})
	}
}

func TestRouting(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decode[errorEnvelope](t, w).Error.Message)

	w = do(t, h, http.MethodPatch, "/coupons", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, h, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
