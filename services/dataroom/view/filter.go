// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package view

import (
	"strings"

	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/settings"
)

// SectionDocuments returns the documents belonging to one section, in the
// order they arrived (already sorted by the backing store).
func SectionDocuments(docs []backend.Document, sectionID string) []backend.Document {
	var out []backend.Document
	for _, d := range docs {
		if d.Section == sectionID {
			out = append(out, d)
		}
	}
	return out
}

// VisibleSections filters the catalog for display. Sections with no
// documents are hidden unless the room is configured to show them.
func VisibleSections(sections []settings.Section, docs []backend.Document, showEmpty bool) []settings.Section {
	if showEmpty {
		return sections
	}
	var out []settings.Section
	for _, s := range sections {
		if len(SectionDocuments(docs, s.ID)) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// FilterDocuments applies the viewer's search term against document name,
// file type, and status. An empty term matches everything.
func FilterDocuments(docs []backend.Document, term string) []backend.Document {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return docs
	}
	var out []backend.Document
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Name), term) ||
			strings.Contains(strings.ToLower(d.FileType), term) ||
			strings.Contains(strings.ToLower(d.Status), term) {
			out = append(out, d)
		}
	}
	return out
}

// SectionProgress returns the percentage of a section's documents that are
// uploaded with a URL. Empty sections report zero.
func SectionProgress(docs []backend.Document, sectionID string) int {
	sectionDocs := SectionDocuments(docs, sectionID)
	if len(sectionDocs) == 0 {
		return 0
	}
	uploaded := 0
	for _, d := range sectionDocs {
		if d.Interactive() {
			uploaded++
		}
	}
	return int(float64(uploaded)/float64(len(sectionDocs))*100 + 0.5)
}
