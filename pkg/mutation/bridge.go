// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package mutation talks to the E2E test server's mutation API. During
// controlled runs the orchestrator drives scheduled state changes through
// this bridge, giving the evaluator ground truth to classify against.
package mutation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/intent"
)

// DefaultTimeout bounds each bridge request.
const DefaultTimeout = 10 * time.Second

// Server-side field types. Mutation values travel as strings and are coerced
// per field before posting.
var (
	listFields = map[string]bool{"releases": true, "articles": true}
	boolFields = map[string]bool{
		"include_timestamp": true,
		"include_tracking":  true,
		"include_random_id": true,
		"return_empty":      true,
		"return_malformed":  true,
	}
	optionalIntFields = map[string]bool{"error_code": true}
	floatFields       = map[string]bool{"delay_seconds": true}
)

// CoerceValue converts a mutation's string value to the JSON type the test
// server expects for the field. List fields accept JSON arrays or
// comma-separated strings; error_code clears on empty/none/null.
func CoerceValue(field, raw string) any {
	switch {
	case listFields[field]:
		var parsed []any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return parsed
		}
		items := []any{}
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				items = append(items, p)
			}
		}
		return items

	case boolFields[field]:
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true
		}
		return false

	case optionalIntFields[field]:
		switch strings.ToLower(raw) {
		case "", "none", "null":
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil
		}
		return n

	case floatFields[field]:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0.0
		}
		return f
	}
	return raw
}

// Bridge is an HTTP client for the mutation API.
type Bridge struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewBridge builds a bridge for the server at baseURL.
func NewBridge(baseURL string, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// request performs one JSON round trip against the server.
func (b *Bridge) request(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%s %s: invalid JSON: %w", method, path, err)
	}
	return parsed, nil
}

// GetState fetches the current server state. Failures return an empty map.
func (b *Bridge) GetState(ctx context.Context) map[string]any {
	res, err := b.request(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		b.logger.Error("failed to get server state", zap.String("server", b.baseURL), zap.Error(err))
		return map[string]any{}
	}
	return res
}

// UpdateState partial-merges fields into the server state.
func (b *Bridge) UpdateState(ctx context.Context, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res, err := b.request(ctx, http.MethodPost, "/api/state", fields)
	if err != nil {
		return fmt.Errorf("updating server state: %w", err)
	}
	if res["status"] != "ok" {
		return fmt.Errorf("unexpected update response: %v", res)
	}
	return nil
}

// Reset restores the server's default state.
func (b *Bridge) Reset(ctx context.Context) error {
	res, err := b.request(ctx, http.MethodPost, "/api/reset", nil)
	if err != nil {
		return fmt.Errorf("resetting server state: %w", err)
	}
	if res["status"] != "reset" {
		return fmt.Errorf("unexpected reset response: %v", res)
	}
	return nil
}

// ApplyMutation coerces and posts one scheduled mutation.
func (b *Bridge) ApplyMutation(ctx context.Context, m intent.Mutation) error {
	if m.Field == "" {
		return fmt.Errorf("mutation has empty field")
	}
	value := CoerceValue(m.Field, m.Value)

	b.logger.Info("applying mutation",
		zap.Int("cycle", m.Cycle),
		zap.String("field", m.Field),
		zap.Any("value", value),
		zap.String("description", m.Description))

	return b.UpdateState(ctx, map[string]any{m.Field: value})
}

// Available reports whether the server answers a state request.
func (b *Bridge) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := b.request(ctx, http.MethodGet, "/api/state", nil)
	return err == nil
}
