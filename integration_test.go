//go:build integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func TestIntegration(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=1 to run.")
	}

	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "notes")
	if err := os.MkdirAll(filepath.Join(home, "journal"), 0755); err != nil {
		t.Fatalf("Failed to create notes home: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	ctx := context.Background()
	svc, err := service.New(&service.Config{
		HomeDir:        home,
		DataDir:        filepath.Join(tmpDir, "data"),
		Extensions:     []string{".md", ".txt"},
		AutosaveDelay:  50 * time.Millisecond,
		EditorDebounce: 50 * time.Millisecond,
		Watch:          true,
	}, log)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close(ctx)

	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Failed to load notes: %v", err)
	}
	if err := svc.Watch(ctx); err != nil {
		t.Fatalf("Failed to watch notes: %v", err)
	}

	t.Run("CreateAndSearch", func(t *testing.T) {
		node, err := svc.CreateNamedNote(ctx, "groceries", "eggs and flour")
		if err != nil {
			t.Fatalf("Failed to create note: %v", err)
		}
		data, err := os.ReadFile(node.Path)
		if err != nil {
			t.Fatalf("Note not on disk: %v", err)
		}
		if string(data) != "eggs and flour" {
			t.Errorf("Unexpected content: %q", data)
		}

		results, err := svc.Search(ctx, "flour", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 || results[0].Path != node.Path {
			t.Errorf("Expected %s in results, got %+v", node.Path, results)
		}
	})

	t.Run("EditorChangeIsSaved", func(t *testing.T) {
		node, err := svc.Resolve("groceries.md")
		if err != nil {
			t.Fatalf("Failed to resolve note: %v", err)
		}
		if _, err := svc.Session.OpenFile(ctx, &node.FileEntry); err != nil {
			t.Fatalf("Failed to open note: %v", err)
		}
		if err := svc.Bridge.HandleMessage(ctx, []byte(`{"event":"change","value":"eggs, flour, milk"}`)); err != nil {
			t.Fatalf("Change rejected: %v", err)
		}

		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			data, _ := os.ReadFile(node.Path)
			if string(data) == "eggs, flour, milk" {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Error("Editor change was never written to disk")
	})

	t.Run("ExternalFileIsPickedUp", func(t *testing.T) {
		path := filepath.Join(home, "journal", "monday.md")
		if err := os.WriteFile(path, []byte("# Monday\nwalked the dog"), 0644); err != nil {
			t.Fatalf("Failed to write note: %v", err)
		}

		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if n, err := svc.Resolve(path); err == nil && n.Content == "# Monday\nwalked the dog" {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Error("External note never appeared in the index")
	})
}
