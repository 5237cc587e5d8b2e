// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package mutation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/vigil/pkg/intent"
)

func TestCoerceValue(t *testing.T) {
	// List fields: JSON array wins, comma-split is the fallback.
	assert.Equal(t, []any{"v1.0.0", "v2.0.0"}, CoerceValue("releases", `["v1.0.0","v2.0.0"]`))
	assert.Equal(t, []any{"v1.0.0", "v2.0.0"}, CoerceValue("releases", "v1.0.0, v2.0.0"))
	articles := CoerceValue("articles", `[{"title":"a"}]`)
	require.IsType(t, []any{}, articles)
	assert.Len(t, articles, 1)

	// Bool fields.
	assert.Equal(t, true, CoerceValue("include_timestamp", "true"))
	assert.Equal(t, true, CoerceValue("return_empty", "1"))
	assert.Equal(t, true, CoerceValue("return_malformed", "YES"))
	assert.Equal(t, false, CoerceValue("include_tracking", "false"))
	assert.Equal(t, false, CoerceValue("include_random_id", "nope"))

	// Optional int: empty/none/null and garbage clear the field.
	assert.Equal(t, 503, CoerceValue("error_code", "503"))
	assert.Nil(t, CoerceValue("error_code", ""))
	assert.Nil(t, CoerceValue("error_code", "None"))
	assert.Nil(t, CoerceValue("error_code", "null"))
	assert.Nil(t, CoerceValue("error_code", "teapot"))

	// Float field.
	assert.Equal(t, 2.5, CoerceValue("delay_seconds", "2.5"))
	assert.Equal(t, 0.0, CoerceValue("delay_seconds", "soon"))

	// Everything else stays a string.
	assert.Equal(t, "$79.99", CoerceValue("product_price", "$79.99"))
	assert.Equal(t, "IN STOCK", CoerceValue("product_stock", "IN STOCK"))
}

func TestGetState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/state", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"product_price": "$99.99"})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, time.Second, nil)
	got := b.GetState(context.Background())
	assert.Equal(t, "$99.99", got["product_price"])
}

func TestGetStateFailureReturnsEmpty(t *testing.T) {
	b := NewBridge("http://127.0.0.1:1", 200*time.Millisecond, nil)
	assert.Empty(t, b.GetState(context.Background()))
}

func TestUpdateState(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/state", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "state": received})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, time.Second, nil)
	err := b.UpdateState(context.Background(), map[string]any{"product_price": "$49.99"})
	require.NoError(t, err)
	assert.Equal(t, "$49.99", received["product_price"])

	assert.NoError(t, b.UpdateState(context.Background(), nil), "no fields is a no-op")
}

func TestUpdateStateUnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "weird"})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, time.Second, nil)
	assert.Error(t, b.UpdateState(context.Background(), map[string]any{"x": 1}))
}

func TestReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reset", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"status": "reset", "state": map[string]any{}})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, time.Second, nil)
	assert.NoError(t, b.Reset(context.Background()))
}

func TestApplyMutationCoerces(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, time.Second, nil)
	err := b.ApplyMutation(context.Background(), intent.Mutation{
		Cycle: 3, Field: "include_timestamp", Value: "true",
	})
	require.NoError(t, err)
	assert.Equal(t, true, received["include_timestamp"])

	assert.Error(t, b.ApplyMutation(context.Background(), intent.Mutation{Cycle: 1}), "empty field rejected")
}

func TestAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	b := NewBridge(srv.URL, time.Second, nil)
	assert.True(t, b.Available(context.Background()))
	srv.Close()
	assert.False(t, b.Available(context.Background()))
}
