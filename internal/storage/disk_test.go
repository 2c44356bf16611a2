package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"f1.txt":        "hello",
		"sub/a":         "ab",
		"sub/deep/b":    "c",
		"other/ignored": "0123456789",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	f1 := filepath.Join(dir, "f1.txt")
	sub := filepath.Join(dir, "sub")

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{f1}, 5},
		{"nested directory", []string{sub}, 3},
		{"file and directory", []string{f1, sub}, 8},
		{"missing path counts zero", []string{f1, filepath.Join(dir, "nonexistent"), sub}, 8},
		{"empty path skipped", []string{"", f1}, 5},
		{"whole tree", []string{dir}, 18},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

func TestDiskUsageBytes_SQLiteDataDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStorage(filepath.Join(dir, "entries.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := DiskUsageBytes(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got <= 0 {
		t.Errorf("expected database files to use space, got %d", got)
	}
}
