// Package archive locates the export document inside an uploaded zip
// container without extracting the archive to disk.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ErrNoExportFile indicates the container held no primary export document.
var ErrNoExportFile = errors.New("no export document found in archive")

const (
	primaryName = "export.xml"
	// The clinical-document variant of the same export. Not parseable by the
	// record extractor; its presence is only noted for diagnostics.
	alternateName = "export_cda.xml"

	maxSampleEntries = 10
)

// LocateExportFile scans the container's entry table once and returns the
// entry for the primary export document. Matching is by base name only,
// case-insensitive, at any depth: exports sit either at the container root or
// nested one level inside a wrapper folder. Directory entries and platform
// junk (__MACOSX folders, .DS_Store, "._" sidecars) are skipped. On a miss
// the error lists a sample of the entry names actually seen so an operator
// can tell a wrong upload from a mangled one.
func LocateExportFile(logger *slog.Logger, zr *zip.Reader) (*zip.File, error) {
	var sampleNames []string
	alternateSeen := false

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if isJunkEntry(f.Name) {
			continue
		}
		if len(sampleNames) < maxSampleEntries {
			sampleNames = append(sampleNames, f.Name)
		}

		base := strings.ToLower(path.Base(f.Name))
		if base == primaryName {
			logger.Info("Located export document in archive.", slog.String("entry", f.Name))
			return f, nil
		}
		if base == alternateName {
			// Keep searching; the primary document takes precedence.
			alternateSeen = true
		}
	}

	if alternateSeen {
		logger.Warn("Archive contains only the clinical-document export variant, not the primary export.")
	}
	return nil, fmt.Errorf("%w (entries seen: %s)", ErrNoExportFile, strings.Join(sampleNames, ", "))
}

// isJunkEntry reports whether a container entry is platform metadata rather
// than export content.
func isJunkEntry(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" || part == ".DS_Store" || strings.HasPrefix(part, "._") {
			return true
		}
	}
	return false
}
