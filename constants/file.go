package constants

import "strings"

// PDFExtension is the only document type eligible for batch extraction.
const PDFExtension = "pdf"

// ResourceForkPrefix marks macOS resource-fork entries inside archives
// ("._name"); they look like PDFs but hold no document content.
const ResourceForkPrefix = "._"

// NotDisclosed is the sentinel stored for any field the extraction service
// could not determine.
const NotDisclosed = "Not disclosed"

// MaxPromptChars bounds how much agreement text is sent per extraction call.
const MaxPromptChars = 12000

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// EligibleDocument reports whether an archive entry name is a candidate
// agreement document.
func EligibleDocument(name string) bool {
	if strings.HasPrefix(name, ResourceForkPrefix) {
		return false
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return NormalizeExt(name[i:]) == PDFExtension
}
