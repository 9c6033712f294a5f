package handlers

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/storafe/backend/internal/models"
)

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	resp := performJSONRequest(t, env.app, http.MethodGet, "/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)
}

// End to end: build a tree, upload into it, rename an ancestor, verify the
// file still downloads, then tear everything down and check the ledger.
func TestScenario_RenameUploadDelete(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "owner@example.com", "password123", models.UserRoleUser)

	projects := createFolder(t, env, token, "projects", "")
	alpha := createFolder(t, env, token, "alpha", projects["id"].(string))

	upload := performUpload(t, env.app, token, "plan.txt", "the master plan", alpha["id"].(string))
	assertStatus(t, upload, http.StatusCreated)
	fileID := dataMap(t, upload)["id"].(string)

	rename := performJSONRequest(t, env.app, http.MethodPut,
		fmt.Sprintf("/api/folders/%s/rename", projects["id"]),
		map[string]any{"name": "clients"}, authHeaders(token))
	assertStatus(t, rename, http.StatusOK)

	var movedAlpha models.Folder
	env.db.First(&movedAlpha, "id = ?", alpha["id"])
	if movedAlpha.Path != "/clients/alpha" {
		t.Fatalf("expected /clients/alpha after ancestor rename, got %s", movedAlpha.Path)
	}

	download := performJSONRequest(t, env.app, http.MethodGet,
		fmt.Sprintf("/api/files/%s/download", fileID), nil, authHeaders(token))
	assertStatus(t, download, http.StatusOK)
	body, _ := io.ReadAll(download.Body)
	download.Body.Close()
	if string(body) != "the master plan" {
		t.Fatalf("expected file intact after rename, got %q", string(body))
	}

	del := performJSONRequest(t, env.app, http.MethodDelete,
		fmt.Sprintf("/api/folders/%s", projects["id"]), nil, authHeaders(token))
	assertStatus(t, del, http.StatusOK)

	if got := usedStorage(t, env.db, user.ID); got != 0 {
		t.Errorf("expected ledger back to zero, used_storage = %d", got)
	}
	var fileCount int64
	env.db.Model(&models.File{}).Count(&fileCount)
	if fileCount != 0 {
		t.Errorf("expected no file rows, got %d", fileCount)
	}
}
