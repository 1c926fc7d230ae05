// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import "strings"

// Document is one row of the dataroom_documents table.
type Document struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Section   string `json:"section"`
	FileType  string `json:"file_type"`
	Status    string `json:"status"`
	URL       string `json:"url"`
	DateAdded string `json:"date_added"`
	SortOrder int    `json:"sort_order"`
	IsHidden  bool   `json:"is_hidden"`
}

// Interactive reports whether the document can be opened by the viewer:
// uploaded and carrying a URL. Pending and missing rows render greyed out.
func (d Document) Interactive() bool {
	return strings.ToLower(strings.TrimSpace(d.Status)) == "uploaded" &&
		strings.TrimSpace(d.URL) != ""
}

// Note is one row of the dataroom_notes table. Notes are per-section
// annotations shown alongside the documents.
type Note struct {
	ID          int64  `json:"id"`
	Section     string `json:"section"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	Content     string `json:"content"`
	IsHighlight bool   `json:"is_highlight"`
	SortOrder   int    `json:"sort_order"`
}

// FileTypeInfo is the presentation metadata for a normalized file type.
type FileTypeInfo struct {
	Key   string
	Label string
	Kind  string
}

var fileTypeInfo = map[string]FileTypeInfo{
	"pdf":   {Key: "pdf", Label: "PDF", Kind: "PDF Document"},
	"img":   {Key: "img", Label: "IMG", Kind: "Image"},
	"xlsx":  {Key: "xlsx", Label: "XLS", Kind: "Spreadsheet"},
	"doc":   {Key: "doc", Label: "DOC", Kind: "Document"},
	"dwg":   {Key: "dwg", Label: "DWG", Kind: "CAD Drawing"},
	"www":   {Key: "www", Label: "LINK", Kind: "Web Link"},
	"other": {Key: "other", Label: "FILE", Kind: "File"},
}

// NormalizeFileType folds the free-form file_type column into one of the
// seven known presentation types.
func NormalizeFileType(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	switch t {
	case "":
		return "other"
	case "pdf":
		return "pdf"
	case "img", "image", "png", "jpg", "jpeg", "gif", "webp", "svg":
		return "img"
	case "xls", "xlsx", "csv":
		return "xlsx"
	case "doc", "docx", "word":
		return "doc"
	case "dwg", "dxf", "cad":
		return "dwg"
	case "www", "url", "link", "web":
		return "www"
	}
	if _, ok := fileTypeInfo[t]; ok {
		return t
	}
	return "other"
}

// FileTypeFor returns the presentation metadata for a raw file_type value.
func FileTypeFor(fileType string) FileTypeInfo {
	return fileTypeInfo[NormalizeFileType(fileType)]
}
