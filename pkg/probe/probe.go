// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package probe wraps the kto change-detection CLI. Every invocation runs
// under an explicit deadline so a wedged probe can never hang a cycle, and
// the probe's database is isolated per run via the KTO_DB environment
// variable.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/state"
)

// DBEnvVar selects the probe's database file.
const DBEnvVar = "KTO_DB"

// DefaultBinary is the probe binary looked up on PATH when none is given.
const DefaultBinary = "kto"

// DefaultTimeout bounds each probe invocation.
const DefaultTimeout = 120 * time.Second

// maxDiffSnippet caps the diff text carried into observations.
const maxDiffSnippet = 2000

// Client invokes the probe binary.
type Client struct {
	binary  string
	dbPath  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a probe client. Empty binary and zero timeout fall back
// to the defaults; dbPath isolates the probe's database for this run.
func NewClient(binary, dbPath string, timeout time.Duration, logger *zap.Logger) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{binary: binary, dbPath: dbPath, timeout: timeout, logger: logger}
}

// run executes one probe invocation under the client deadline.
func (c *Client) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Env = append(os.Environ(), DBEnvVar+"="+c.dbPath)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	c.logger.Debug("running probe",
		zap.String("binary", c.binary),
		zap.Strings("args", args),
		zap.Duration("timeout", c.timeout))

	err = cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout, stderr, fmt.Errorf("timeout after %s", c.timeout)
	}
	return stdout, stderr, err
}

// exitError turns a failed invocation into a short error message, preferring
// stderr text over the bare exit status.
func exitError(stderr string, err error) string {
	if s := strings.TrimSpace(stderr); s != "" {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if err != nil {
		return err.Error()
	}
	return "unknown probe error"
}

// CreateWatchOptions carries the watch-creation parameters.
type CreateWatchOptions struct {
	Name              string
	URL               string
	Engine            string
	Extraction        string
	Selector          string
	IntervalSecs      int
	AgentInstructions string
	Tags              []string
}

// CreateWatch creates a watch via `kto new`.
func (c *Client) CreateWatch(ctx context.Context, opts CreateWatchOptions) error {
	args := []string{
		"new", opts.URL,
		"--name", opts.Name,
		"--yes",
		"--interval", strconv.Itoa(opts.IntervalSecs),
	}

	switch opts.Engine {
	case "", "http":
	case "playwright":
		args = append(args, "--js")
	case "rss":
		args = append(args, "--rss")
	case "shell":
		args = append(args, "--shell")
	}

	switch {
	case opts.Extraction == "selector" && opts.Selector != "":
		args = append(args, "--selector", opts.Selector)
	case opts.Extraction == "full":
		args = append(args, "--full")
	case opts.Extraction == "json_ld":
		args = append(args, "--json-ld")
	case opts.Extraction == "meta":
		args = append(args, "--meta")
	case opts.Extraction == "rss" && opts.Engine != "rss":
		args = append(args, "--rss")
	case opts.Selector != "":
		// Selector given without extraction=selector still applies.
		args = append(args, "--selector", opts.Selector)
	}

	if opts.AgentInstructions != "" {
		args = append(args, "--agent", "--agent-instructions", opts.AgentInstructions)
	}
	for _, tag := range opts.Tags {
		args = append(args, "--tag", tag)
	}

	_, stderr, err := c.run(ctx, args...)
	if err != nil {
		msg := exitError(stderr, err)
		c.logger.Error("failed to create watch", zap.String("watch", opts.Name), zap.String("error", msg))
		return fmt.Errorf("creating watch %s: %s", opts.Name, msg)
	}
	c.logger.Info("created watch", zap.String("watch", opts.Name), zap.String("url", opts.URL))
	return nil
}

// checkResult is the JSON shape of `kto test --json`, tolerating both the
// nested agent object and the flattened agent_* fields older versions emit.
type checkResult struct {
	Changed     bool   `json:"changed"`
	ContentHash string `json:"content_hash"`
	Hash        string `json:"hash"`
	DiffSnippet string `json:"diff_snippet"`
	Diff        string `json:"diff"`

	Agent *struct {
		Notified *bool  `json:"notified"`
		Title    string `json:"title"`
		Summary  string `json:"summary"`
	} `json:"agent"`

	AgentNotified *bool  `json:"agent_notified"`
	AgentTitle    string `json:"agent_title"`
	AgentSummary  string `json:"agent_summary"`
}

// RunCheck runs `kto test <name> --json` and converts the result into an
// Observation. All failure modes (timeout, non-zero exit, bad JSON) come
// back as observations with the error field set, never as a Go error: a
// failed check is still a data point for the evaluator.
func (c *Client) RunCheck(ctx context.Context, watchName string) state.Observation {
	obs := state.Observation{Timestamp: time.Now().UTC()}

	stdout, stderr, err := c.run(ctx, "test", watchName, "--json")
	if err != nil {
		obs.Error = exitError(stderr, err)
		c.logger.Warn("probe check failed",
			zap.String("watch", watchName),
			zap.String("error", obs.Error))
		return obs
	}

	var res checkResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		obs.Error = fmt.Sprintf("json_parse_error: %v", err)
		c.logger.Error("failed to parse probe output",
			zap.String("watch", watchName),
			zap.Error(err))
		return obs
	}

	obs.Changed = res.Changed
	obs.ContentHash = res.ContentHash
	if obs.ContentHash == "" {
		obs.ContentHash = res.Hash
	}

	diff := res.DiffSnippet
	if diff == "" {
		diff = res.Diff
	}
	if len(diff) > maxDiffSnippet {
		diff = diff[:maxDiffSnippet] + "\n... (truncated)"
	}
	obs.DiffSnippet = diff

	notified := res.AgentNotified
	title, summary := res.AgentTitle, res.AgentSummary
	if res.Agent != nil {
		notified, title, summary = res.Agent.Notified, res.Agent.Title, res.Agent.Summary
	}
	if notified != nil {
		obs.AgentNotified = state.TernaryOf(*notified)
	}
	obs.AgentTitle = title
	obs.AgentSummary = summary

	return obs
}

// ListWatches returns all watches via `kto list --json`, tolerating both a
// bare array and a {watches: [...]} wrapper. Failures return an empty list.
func (c *Client) ListWatches(ctx context.Context) []map[string]any {
	stdout, stderr, err := c.run(ctx, "list", "--json")
	if err != nil {
		c.logger.Warn("probe list failed", zap.String("error", exitError(stderr, err)))
		return nil
	}

	var asList []map[string]any
	if err := json.Unmarshal([]byte(stdout), &asList); err == nil {
		return asList
	}

	var wrapped struct {
		Watches []map[string]any `json:"watches"`
	}
	if err := json.Unmarshal([]byte(stdout), &wrapped); err == nil {
		return wrapped.Watches
	}

	c.logger.Error("failed to parse probe list output")
	return nil
}

// DeleteWatch removes a watch via `kto delete <name> --yes`.
func (c *Client) DeleteWatch(ctx context.Context, name string) error {
	_, stderr, err := c.run(ctx, "delete", name, "--yes")
	if err != nil {
		msg := exitError(stderr, err)
		c.logger.Warn("failed to delete watch", zap.String("watch", name), zap.String("error", msg))
		return fmt.Errorf("deleting watch %s: %s", name, msg)
	}
	c.logger.Info("deleted watch", zap.String("watch", name))
	return nil
}
