package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewLocalStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	t.Run("SaveBytes", func(t *testing.T) {
		content := []byte("jpeg snapshot content")

		filename, err := storage.SaveBytes(content, ".jpg")
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if filepath.Ext(filename) != ".jpg" {
			t.Errorf("Expected .jpg extension, got %s", filepath.Ext(filename))
		}

		saved, err := os.ReadFile(filepath.Join(tmpDir, filename))
		if err != nil {
			t.Fatalf("File was not saved: %v", err)
		}
		if string(saved) != string(content) {
			t.Error("Saved content does not match")
		}
	})

	t.Run("SaveBytesDefaultExtension", func(t *testing.T) {
		filename, err := storage.SaveBytes([]byte("x"), "")
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if filepath.Ext(filename) != ".jpg" {
			t.Errorf("Expected default .jpg extension, got %s", filepath.Ext(filename))
		}
	})

	t.Run("OpenFile", func(t *testing.T) {
		content := []byte("snapshot bytes")
		testFile := "existing.jpg"
		if err := os.WriteFile(filepath.Join(tmpDir, testFile), content, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		file, err := storage.OpenFile(testFile)
		if err != nil {
			t.Fatalf("Failed to open file: %v", err)
		}
		defer file.Close()

		got, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != string(content) {
			t.Error("Read content does not match")
		}
	})

	t.Run("OpenFileRejectsTraversal", func(t *testing.T) {
		if _, err := storage.OpenFile("../outside.jpg"); err == nil {
			t.Error("Expected error for path traversal")
		}
	})

	t.Run("DeleteFile", func(t *testing.T) {
		filename, err := storage.SaveBytes([]byte("to delete"), ".jpg")
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if err := storage.DeleteFile(filename); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}

		if _, err := os.Stat(filepath.Join(tmpDir, filename)); !os.IsNotExist(err) {
			t.Error("File still exists after delete")
		}
	})
}
