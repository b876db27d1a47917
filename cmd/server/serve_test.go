package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appdevjohn/Social-Network-Backend/internal/attachments"
	"github.com/appdevjohn/Social-Network-Backend/internal/config"
)

func TestOpenAttachments_Disk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, closeFn, err := openAttachments(context.Background(), config.AttachmentsConfig{
		Backend: config.BackendDisk,
		Dir:     dir,
	})
	if err != nil {
		t.Fatalf("openAttachments failed: %v", err)
	}
	defer closeFn()

	disk, ok := store.(*attachments.DiskStore)
	if !ok {
		t.Fatalf("expected *attachments.DiskStore, got %T", store)
	}
	if disk.Dir() != dir {
		t.Errorf("dir: expected %s, got %s", dir, disk.Dir())
	}

	ref, err := store.Save(context.Background(), ".png", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Errorf("expected .png ref, got %s", ref)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/social.v1.GroupService/CreateGroup", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if called {
		t.Error("preflight should not reach the wrapped handler")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Error("expected Authorization in allowed headers")
	}
}
