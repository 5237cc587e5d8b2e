// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIntents(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intents.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeIntents(t, `
[meta]
mode = "e2e"

[[intents]]
name = "price_watch"
url = "http://127.0.0.1:8787/product"
intent_type = "price"

[[intents.mutations]]
cycle = 2
field = "product_price"
value = 79.99
expect_detection = true
`)

	defs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, "price_watch", d.Name)
	assert.Equal(t, TypePrice, d.IntentType)
	assert.Equal(t, "http", d.Engine)
	assert.Equal(t, "auto", d.Extraction)
	assert.Equal(t, "unknown", d.DomainClass)
	assert.Equal(t, ModeE2E, d.Mode)
	assert.Equal(t, 300, d.IntervalSecs, "price intents default to 300s")

	require.Len(t, d.Mutations, 1)
	assert.Equal(t, 2, d.Mutations[0].Cycle)
	assert.Equal(t, "79.99", d.Mutations[0].Value, "numeric values are carried as strings")
	assert.True(t, d.Mutations[0].ExpectDetection)
}

func TestLoadMetaModeIsDefaultOnly(t *testing.T) {
	path := writeIntents(t, `
[meta]
mode = "live"

[[intents]]
name = "news_watch"
url = "https://example.com/news"
intent_type = "news"

[[intents]]
name = "price_e2e"
url = "http://127.0.0.1:8787/product"
intent_type = "price"
mode = "e2e"

[[intents.mutations]]
cycle = 1
field = "product_price"
value = "$10"
expect_detection = true
`)

	defs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, ModeLive, defs[0].Mode)
	assert.Equal(t, ModeE2E, defs[1].Mode)
	assert.Equal(t, 900, defs[0].IntervalSecs, "news intents default to 900s")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateCatchesProblems(t *testing.T) {
	defs := []Definition{
		{Name: "", URL: "", Engine: "warp", Extraction: "psychic", Mode: "maybe"},
		{Name: "dup", URL: "https://a", Engine: "http", Extraction: "auto", Mode: ModeLive},
		{Name: "dup", URL: "https://b", Engine: "http", Extraction: "auto", Mode: ModeLive},
		{
			Name: "bad_e2e", URL: "http://x", Engine: "http", Extraction: "selector",
			Mode: ModeE2E, Mutations: []Mutation{{Cycle: 0, Field: ""}},
		},
	}

	errs := Validate(defs)
	assert.Contains(t, errs, "intent #1: missing name")
	assert.Contains(t, errs, `intent #1: unknown engine "warp"`)
	assert.Contains(t, errs, `intent #1: unknown extraction "psychic"`)
	assert.Contains(t, errs, `intent #1: unknown mode "maybe"`)
	assert.Contains(t, errs, "dup: duplicate name")
	assert.Contains(t, errs, "bad_e2e: extraction is selector but no selector given")
	assert.Contains(t, errs, "bad_e2e: mutation #1 has cycle 0 (must be >= 1)")
	assert.Contains(t, errs, "bad_e2e: mutation #1 has no field")
}

func TestValidateCleanSet(t *testing.T) {
	defs := []Definition{
		{
			Name: "ok", URL: "http://127.0.0.1:8787/product", Engine: "http",
			Extraction: "auto", Mode: ModeE2E,
			Mutations: []Mutation{{Cycle: 2, Field: "product_price", Value: "$9"}},
		},
	}
	assert.Empty(t, Validate(defs))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, TypePrice, TypePrice.Normalize())
	assert.Equal(t, TypeGeneric, Type("weather").Normalize())
	assert.True(t, TypeStock.Volatile())
	assert.False(t, TypeNews.Volatile())
}
