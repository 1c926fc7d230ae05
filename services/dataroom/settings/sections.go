// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package settings

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// sectionCatalog holds the raw bytes of sections.yaml, baked in at compile
// time so the data room structure travels with the binary and cannot drift
// from the deployed page.
//
//go:embed sections.yaml
var sectionCatalog []byte

// Section describes one category of documents.
type Section struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	ProgressKey string `yaml:"progress_key"`
}

type sectionFile struct {
	Sections []Section `yaml:"sections"`
}

var (
	catalogOnce sync.Once
	catalog     []Section
	catalogErr  error
)

// Sections returns the embedded section catalog in display order.
// The returned slice is shared; callers must not modify it.
func Sections() ([]Section, error) {
	catalogOnce.Do(func() {
		var f sectionFile
		if err := yaml.Unmarshal(sectionCatalog, &f); err != nil {
			catalogErr = fmt.Errorf("failed to unmarshal the embedded section catalog: %w", err)
			return
		}
		catalog = f.Sections
	})
	return catalog, catalogErr
}

// SectionByID looks up a section by its identifier.
func SectionByID(id string) (Section, bool) {
	sections, err := Sections()
	if err != nil {
		return Section{}, false
	}
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
