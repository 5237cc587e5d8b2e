// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"sync"

	"go.uber.org/zap/zapcore"
)

// rotatingSink is a WriteSyncer that appends to a file and renames it to
// "<path>.1" once it exceeds maxBytes. A previous ".1" is overwritten.
type rotatingSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	size     int64
	f        *os.File
}

func newRotatingSink(path string, maxBytes int64) (zapcore.WriteSyncer, error) {
	s := &rotatingSink{path: path, maxBytes: maxBytes}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *rotatingSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.f = f
	s.size = info.Size()
	return nil
}

func (s *rotatingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size+int64(len(p)) > s.maxBytes {
		if err := s.rotate(); err != nil {
			// Rotation failure must not lose the entry; keep appending.
			s.size = 0
		}
	}

	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

func (s *rotatingSink) rotate() error {
	if err := s.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		// Reopen even if the rename failed so writes keep flowing.
		_ = s.open()
		return err
	}
	return s.open()
}

func (s *rotatingSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Sync()
}
