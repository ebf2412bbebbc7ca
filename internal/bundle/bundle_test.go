package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestBuild(t *testing.T) {
	artifact := "<!DOCTYPE html><html><body>site</body></html>"
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	data, err := Build("Coffee Shop", artifact, now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	files := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}

	if len(files) != 2 {
		t.Fatalf("archive has %d entries, want 2: %v", len(files), files)
	}
	if files["index.html"] != artifact {
		t.Errorf("index.html = %q", files["index.html"])
	}
	readme := files["README.txt"]
	if !strings.Contains(readme, "Coffee Shop") || !strings.Contains(readme, "2026-03-01") {
		t.Errorf("README.txt = %q", readme)
	}
}

func TestBuild_EmptyArtifact(t *testing.T) {
	if _, err := Build("x", "", time.Now()); !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("Build = %v, want ErrEmptyArtifact", err)
	}
}

func TestBuild_DefaultName(t *testing.T) {
	data, err := Build("", "<!DOCTYPE html>", time.Now())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r, _ := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	for _, f := range r.File {
		if f.Name == "README.txt" {
			rc, _ := f.Open()
			content, _ := io.ReadAll(rc)
			rc.Close()
			if !strings.Contains(string(content), "Untitled Project") {
				t.Errorf("README.txt = %q, want default name", content)
			}
		}
	}
}
