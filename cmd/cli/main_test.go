package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestMediaType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"receipt.png", "image/png"},
		{"RECEIPT.JPG", "image/jpeg"},
		{"note.unknownext", ""},
		{"noext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := mediaType(tt.filename); got != tt.want {
				t.Errorf("mediaType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestLoadUpload_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.png")
	if err := os.WriteFile(path, []byte("PNG"), 0o600); err != nil {
		t.Fatal(err)
	}

	up, err := loadUpload(context.Background(), path)
	if err != nil {
		t.Fatalf("loadUpload err: %v", err)
	}
	if up.Filename != "receipt.png" || up.ContentType != "image/png" {
		t.Errorf("upload = %+v", up)
	}

	// Open can be called more than once.
	for i := 0; i < 2; i++ {
		rc, err := up.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "PNG" {
			t.Errorf("read %q", data)
		}
	}
}

func TestLoadUpload_Empty(t *testing.T) {
	up, err := loadUpload(context.Background(), "")
	if err != nil || up != nil {
		t.Errorf("loadUpload(\"\") = %v, %v; want nil, nil", up, err)
	}
}

func TestLoadUpload_MissingFile(t *testing.T) {
	if _, err := loadUpload(context.Background(), filepath.Join(t.TempDir(), "nope.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIndent(t *testing.T) {
	got := indent("a\nb\n", "  ")
	if got != "  a\n  b" {
		t.Errorf("indent = %q", got)
	}
}
