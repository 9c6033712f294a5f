package handlers

import (
	"net/http"
	"testing"

	"github.com/storafe/backend/internal/models"
)

func TestAuthRegister(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("POST /api/auth/register creates a user with default quota", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "alice@example.com",
			"password": "supersecret",
		}, nil)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, resp)
		if data["email"] != "alice@example.com" {
			t.Errorf("expected normalized email, got %v", data["email"])
		}
		if _, present := data["passwordHash"]; present {
			t.Error("password hash must not be serialized")
		}

		var user models.User
		if err := env.db.First(&user, "email = ?", "alice@example.com").Error; err != nil {
			t.Fatalf("expected user row: %v", err)
		}
		if user.StorageQuota != models.DefaultStorageQuota {
			t.Errorf("expected default quota, got %d", user.StorageQuota)
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "alice@example.com",
			"password": "supersecret",
		}, nil)
		assertStatus(t, resp, http.StatusConflict)
	})

	t.Run("short password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":    "bob@example.com",
			"password": "short",
		}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	})
}

func TestAuthToken(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "carol@example.com", "password123", models.UserRoleUser)

	t.Run("POST /api/auth/token returns a bearer token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/token", map[string]any{
			"email":    "carol@example.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, resp)
		token, _ := data["access_token"].(string)
		if token == "" {
			t.Fatal("expected an access token")
		}
		if data["token_type"] != "bearer" {
			t.Errorf("expected bearer token type, got %v", data["token_type"])
		}

		me := performJSONRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		assertStatus(t, me, http.StatusOK)
		meData := dataMap(t, me)
		if meData["email"] != "carol@example.com" {
			t.Errorf("expected own profile, got %v", meData["email"])
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/token", map[string]any{
			"email":    "carol@example.com",
			"password": "wrong",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid credentials")
	})

	t.Run("unknown email rejected with same message", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/token", map[string]any{
			"email":    "nobody@example.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid credentials")
	})

	t.Run("GET /api/auth/me without token rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})
}
