// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// FileType identifies the format of a downloaded resource.
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeHTML    FileType = "html"
	FileTypeDOCX    FileType = "docx"
	FileTypeDOC     FileType = "doc"
	FileTypeXLSX    FileType = "xlsx"
	FileTypeXLS     FileType = "xls"
	FileTypeZIP     FileType = "zip"
	FileTypePPT     FileType = "ppt"
	FileTypePPTX    FileType = "pptx"
	FileTypeCSV     FileType = "csv"
	FileTypeTXT     FileType = "txt"
	FileTypeRTF     FileType = "rtf"
	FileTypeODT     FileType = "odt"
	FileTypeODS     FileType = "ods"
	FileTypeUnknown FileType = "unknown"
)

// fileExtensions lists the extensions recognized as direct downloads.
var fileExtensions = map[string]FileType{
	"docx": FileTypeDOCX,
	"doc":  FileTypeDOC,
	"pdf":  FileTypePDF,
	"zip":  FileTypeZIP,
	"xlsx": FileTypeXLSX,
	"xls":  FileTypeXLS,
	"ppt":  FileTypePPT,
	"pptx": FileTypePPTX,
	"csv":  FileTypeCSV,
	"txt":  FileTypeTXT,
	"rtf":  FileTypeRTF,
	"odt":  FileTypeODT,
	"ods":  FileTypeODS,
}

// FileTypeFromExt maps an extension (with or without the leading dot) to a
// FileType. "htm" and "html" map to FileTypeHTML, which is a resolver output
// rather than a direct-download extension.
func FileTypeFromExt(ext string) FileType {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "html" || ext == "htm" {
		return FileTypeHTML
	}
	if ft, ok := fileExtensions[ext]; ok {
		return ft
	}
	return FileTypeUnknown
}

// IsFileExtension reports whether ext is a recognized direct-download extension.
func IsFileExtension(ext string) bool {
	_, ok := fileExtensions[strings.ToLower(ext)]
	return ok
}

// DownloadedDocument is one successfully retrieved raw resource, keyed by
// FileID (the ReferenceEntry ID).
type DownloadedDocument struct {
	FileID         string    `json:"file_id" yaml:"file_id"`
	Filename       string    `json:"filename" yaml:"filename"`
	DateDownloaded time.Time `json:"date_downloaded" yaml:"date_downloaded"`
	Area           string    `json:"area" yaml:"area"`
	Subarea        string    `json:"subarea" yaml:"subarea"`
	Section        string    `json:"section" yaml:"section"`
	FileType       FileType  `json:"file_type" yaml:"file_type"`
	RawFilepath    string    `json:"raw_filepath" yaml:"raw_filepath"`

	// ProcessedFilepath is set only when conversion produced non-empty text.
	ProcessedFilepath string `json:"processed_filepath,omitempty" yaml:"processed_filepath,omitempty"`

	// DownloadedPath is the source link the file was fetched from.
	DownloadedPath string `json:"downloaded_path,omitempty" yaml:"downloaded_path,omitempty"`

	FileSummary string `json:"file_summary,omitempty" yaml:"file_summary,omitempty"`

	// FileChunksPath is set only when chunking succeeded.
	FileChunksPath string `json:"file_chunks_path,omitempty" yaml:"file_chunks_path,omitempty"`

	// InVectorDB is true once every chunk is embedded and checkpointed.
	InVectorDB bool `json:"in_vector_db" yaml:"in_vector_db"`
}

// Title returns the document name without its extension.
func (d DownloadedDocument) Title() string {
	name := d.Filename
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
