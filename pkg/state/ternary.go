// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package state

import (
	"bytes"
	"fmt"
)

// Ternary is a three-valued verdict: true, false, or unknown. It marshals to
// JSON true/false/null so state files stay readable and interoperable.
type Ternary int

const (
	Unknown Ternary = iota
	True
	False
)

// TernaryOf lifts a bool into a known Ternary.
func TernaryOf(b bool) Ternary {
	if b {
		return True
	}
	return False
}

// Known reports whether the verdict carries information.
func (t Ternary) Known() bool { return t != Unknown }

// Bool returns the verdict as a bool; unknown counts as false.
func (t Ternary) Bool() bool { return t == True }

func (t Ternary) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes True/False/Unknown as true/false/null.
func (t Ternary) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes true/false/null into the matching verdict.
func (t *Ternary) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")):
		*t = True
	case bytes.Equal(data, []byte("false")):
		*t = False
	case bytes.Equal(data, []byte("null")):
		*t = Unknown
	default:
		return fmt.Errorf("invalid ternary value %q", data)
	}
	return nil
}
