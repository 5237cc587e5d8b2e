// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package intent

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// document is the on-disk shape of an intents file.
type document struct {
	Meta struct {
		Mode        Mode   `mapstructure:"mode"`
		Description string `mapstructure:"description"`
	} `mapstructure:"meta"`
	Intents []Definition `mapstructure:"intents"`
}

// Load reads a TOML intents file and returns the declared definitions with
// defaults applied. The [meta] table's mode becomes the default mode for
// intents that do not set one; when [meta] is absent the default is e2e.
func Load(path string) ([]Definition, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading intents file %s: %w", path, err)
	}

	var doc document
	// Mutation values may be written as bare numbers in TOML; decode them
	// weakly so they land in the string-typed Value field.
	err := v.Unmarshal(&doc, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	})
	if err != nil {
		return nil, fmt.Errorf("parsing intents file %s: %w", path, err)
	}

	defaultMode := doc.Meta.Mode
	if defaultMode == "" {
		defaultMode = ModeE2E
	}
	for i := range doc.Intents {
		doc.Intents[i].applyDefaults(defaultMode)
	}
	return doc.Intents, nil
}
