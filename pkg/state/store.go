// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via a temp file in the same directory,
// syncing before rename so a crash never leaves a truncated file behind.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save persists the run state as indented JSON, atomically.
func Save(s *RunState, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run state: %w", err)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing run state: %w", err)
	}
	return nil
}

// Load reads a previously saved run state. A missing file returns (nil, nil)
// so callers can distinguish "no prior run" from a corrupt file.
func Load(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding run state %s: %w", path, err)
	}
	if s.SchemaVersion != RunStateSchemaVersion {
		return nil, fmt.Errorf("run state %s has schema version %d, want %d", path, s.SchemaVersion, RunStateSchemaVersion)
	}
	if s.Monitors == nil {
		s.Monitors = map[string]*MonitorState{}
	}
	if s.Experiments == nil {
		s.Experiments = map[string]*Experiment{}
	}
	return &s, nil
}
