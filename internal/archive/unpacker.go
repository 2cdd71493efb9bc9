package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cardwatch/agreements-tracker/constants"
	"github.com/cardwatch/agreements-tracker/internal/common"
)

// Unpack extracts the ZIP payload at zipPath into scratchDir (created if
// absent) and returns the absolute paths of every eligible agreement
// document found by a full recursive walk, in sorted order.
//
// Eligibility: entry name ends in ".pdf" and does not carry the macOS
// resource-fork prefix. An empty result is not an error here; the caller
// decides whether zero documents is batch-fatal.
func Unpack(zipPath, scratchDir string) ([]string, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, common.WrapError(err, "create scratch directory")
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrArchive, filepath.Base(zipPath), err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f, scratchDir); err != nil {
			return nil, err
		}
	}

	docs, err := discoverDocuments(scratchDir)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// extractEntry writes a single archive member under scratchDir, rejecting
// entries whose resolved path would escape it.
func extractEntry(f *zip.File, scratchDir string) error {
	dest := filepath.Join(scratchDir, filepath.Clean(f.Name))
	rel, err := filepath.Rel(scratchDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("%w: entry %q escapes extraction directory", common.ErrArchive, f.Name)
	}

	if f.FileInfo().IsDir() {
		return common.WrapError(os.MkdirAll(dest, 0o755), "create directory entry")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return common.WrapError(err, "create parent directory")
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: read entry %q: %v", common.ErrArchive, f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return common.WrapError(err, "create extracted file")
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("%w: extract entry %q: %v", common.ErrArchive, f.Name, err)
	}
	return nil
}

// discoverDocuments walks root and collects eligible documents. The walk is
// exhaustive; sorting keeps the processing order stable across runs.
func discoverDocuments(root string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if constants.EligibleDocument(d.Name()) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, common.WrapError(err, "walk extracted archive")
	}
	sort.Strings(docs)
	return docs, nil
}
