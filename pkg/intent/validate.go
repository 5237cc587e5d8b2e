// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package intent

import "fmt"

var validEngines = map[string]bool{
	"http":       true,
	"playwright": true,
	"rss":        true,
}

var validExtractions = map[string]bool{
	"auto":     true,
	"selector": true,
	"json_ld":  true,
	"meta":     true,
}

// Validate checks a set of definitions for structural problems and returns
// one message per problem found. An empty slice means the set is runnable.
func Validate(defs []Definition) []string {
	var errs []string
	seen := map[string]bool{}

	for i, d := range defs {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("intent #%d", i+1)
			errs = append(errs, fmt.Sprintf("%s: missing name", label))
		}
		if seen[d.Name] && d.Name != "" {
			errs = append(errs, fmt.Sprintf("%s: duplicate name", label))
		}
		seen[d.Name] = true

		if d.URL == "" {
			errs = append(errs, fmt.Sprintf("%s: missing url", label))
		}
		if !validEngines[d.Engine] {
			errs = append(errs, fmt.Sprintf("%s: unknown engine %q", label, d.Engine))
		}
		if !validExtractions[d.Extraction] {
			errs = append(errs, fmt.Sprintf("%s: unknown extraction %q", label, d.Extraction))
		}
		if d.Extraction == "selector" && d.Selector == "" {
			errs = append(errs, fmt.Sprintf("%s: extraction is selector but no selector given", label))
		}
		if d.Mode != ModeE2E && d.Mode != ModeLive {
			errs = append(errs, fmt.Sprintf("%s: unknown mode %q", label, d.Mode))
		}

		if d.Mode == ModeE2E {
			if len(d.Mutations) == 0 {
				errs = append(errs, fmt.Sprintf("%s: e2e intent has no mutations", label))
			}
			for j, m := range d.Mutations {
				if m.Cycle < 1 {
					errs = append(errs, fmt.Sprintf("%s: mutation #%d has cycle %d (must be >= 1)", label, j+1, m.Cycle))
				}
				if m.Field == "" {
					errs = append(errs, fmt.Sprintf("%s: mutation #%d has no field", label, j+1))
				}
			}
			if d.ExpectedDetections < 0 {
				errs = append(errs, fmt.Sprintf("%s: expected_detections must not be negative", label))
			}
		}
	}
	return errs
}
