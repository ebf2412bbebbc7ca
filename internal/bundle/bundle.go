// Package bundle packages a generated website for download.
package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyArtifact is returned when there is no website to package.
var ErrEmptyArtifact = errors.New("no artifact to package")

// Build packs the artifact and a generated description file into a zip
// archive. Pure transform, no state.
func Build(name, artifact string, now time.Time) ([]byte, error) {
	if artifact == "" {
		return nil, ErrEmptyArtifact
	}
	if name == "" {
		name = "Untitled Project"
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	index, err := w.Create("index.html")
	if err != nil {
		return nil, fmt.Errorf("create index entry: %w", err)
	}
	if _, err := index.Write([]byte(artifact)); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	readme, err := w.Create("README.txt")
	if err != nil {
		return nil, fmt.Errorf("create readme entry: %w", err)
	}
	if _, err := fmt.Fprintf(readme, "%s\n\nGenerated with Locaith AI Studio on %s.\nOpen index.html in a browser to view the website.\n",
		name, now.UTC().Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("write readme: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
