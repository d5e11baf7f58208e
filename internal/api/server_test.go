package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apahim/cls-backend/internal/auth"
	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func setupTestServer(t *testing.T) (*Server, *database.Repository) {
	t.Helper()
	utils.SkipIfNoTestDB(t)

	testDBURL := utils.SetupTestDB(t)
	repo, err := database.NewRepository(config.DatabaseConfig{
		URL:             testDBURL,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
	utils.AssertError(t, err, false, "Should create repository")
	t.Cleanup(func() { repo.Close() })

	utils.CreateReferralSchema(t, repo.GetClient().DB())

	pool, err := pgxpool.New(context.Background(), testDBURL)
	utils.AssertError(t, err, false, "Should create pgx pool")
	t.Cleanup(pool.Close)
	batchWriter := database.NewBatchWriter(pool, config.BatchWriterConfig{
		ChunkSize:     50,
		RetryAttempts: 1,
		RetryBackoff:  10 * time.Millisecond,
	})

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Auth: config.AuthConfig{
			Enabled:       true,
			JWTSecret:     "test-secret",
			TokenIssuer:   "cls-backend-test",
			TokenAudience: "cls-backend-test-clients",
			TokenTTL:      time.Hour,
		},
	}
	authenticator := auth.NewJWTAuthenticator(cfg.Auth)

	server := NewServer(cfg, repo, nil, batchWriter, authenticator)
	return server, repo
}

func insertTestUser(t *testing.T, repo *database.Repository, subject, email, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	utils.AssertError(t, err, false, "Should hash password")

	_, err = repo.GetClient().DB().ExecContext(context.Background(),
		`INSERT INTO users (subject, email, role, password_hash) VALUES ($1, $2, $3, $4)`,
		subject, email, role, string(hash))
	utils.AssertError(t, err, false, "Should insert test user")
}

func doRequest(t *testing.T, server *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		utils.AssertError(t, json.NewEncoder(&reqBody).Encode(body), false, "Should encode request body")
	}

	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(recorder, req)
	return recorder
}

func TestServer_LoginThenUpload(t *testing.T) {
	server, repo := setupTestServer(t)
	insertTestUser(t, repo, "admin-1", "admin@example.com", "correct-password", "admin")

	loginResp := doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "correct-password",
	})
	utils.AssertEqual(t, http.StatusOK, loginResp.Code, "Login should succeed")

	var login struct {
		Token string `json:"token"`
	}
	utils.AssertError(t, json.Unmarshal(loginResp.Body.Bytes(), &login), false, "Should decode login response")
	utils.AssertTrue(t, login.Token != "", "Should receive a bearer token")

	uploadResp := doRequest(t, server, http.MethodPost, "/api/v1/uploads", login.Token, []map[string]interface{}{
		{"referral_id": "ref-1", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SENT"}},
	})
	utils.AssertEqual(t, http.StatusOK, uploadResp.Code, "Upload should succeed for admin")

	getResp := doRequest(t, server, http.MethodGet, "/api/v1/referrals/ref-1", login.Token, nil)
	utils.AssertEqual(t, http.StatusOK, getResp.Code, "Should fetch the reconciled referral")

	var detail struct {
		Status       string `json:"status"`
		QualityScore int    `json:"quality_score"`
	}
	utils.AssertError(t, json.Unmarshal(getResp.Body.Bytes(), &detail), false, "Should decode referral detail")
	utils.AssertEqual(t, "SENT", detail.Status, "Status should reflect the uploaded event")
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	server, repo := setupTestServer(t)
	insertTestUser(t, repo, "admin-1", "admin@example.com", "correct-password", "admin")

	resp := doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong-password",
	})
	utils.AssertEqual(t, http.StatusUnauthorized, resp.Code, "Wrong password should be rejected")
}

func TestServer_ViewerCannotUpload(t *testing.T) {
	server, repo := setupTestServer(t)
	insertTestUser(t, repo, "viewer-1", "viewer@example.com", "viewer-password", "viewer")

	loginResp := doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "viewer@example.com",
		"password": "viewer-password",
	})
	utils.AssertEqual(t, http.StatusOK, loginResp.Code, "Login should succeed")

	var login struct {
		Token string `json:"token"`
	}
	utils.AssertError(t, json.Unmarshal(loginResp.Body.Bytes(), &login), false, "Should decode login response")

	uploadResp := doRequest(t, server, http.MethodPost, "/api/v1/uploads", login.Token, []map[string]interface{}{
		{"referral_id": "ref-1", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SENT"}},
	})
	utils.AssertEqual(t, http.StatusForbidden, uploadResp.Code, "Viewer should be forbidden from uploading")
}

func TestServer_Me_ReturnsPrincipal(t *testing.T) {
	server, repo := setupTestServer(t)
	insertTestUser(t, repo, "viewer-1", "viewer@example.com", "viewer-password", "viewer")

	loginResp := doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "viewer@example.com",
		"password": "viewer-password",
	})
	utils.AssertEqual(t, http.StatusOK, loginResp.Code, "Login should succeed")

	var login struct {
		Token string `json:"token"`
	}
	utils.AssertError(t, json.Unmarshal(loginResp.Body.Bytes(), &login), false, "Should decode login response")

	meResp := doRequest(t, server, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	utils.AssertEqual(t, http.StatusOK, meResp.Code, "Me should succeed for an authenticated principal")

	var me struct {
		Subject string `json:"subject"`
		Email   string `json:"email"`
		Role    string `json:"role"`
	}
	utils.AssertError(t, json.Unmarshal(meResp.Body.Bytes(), &me), false, "Should decode me response")
	utils.AssertEqual(t, "viewer-1", me.Subject, "Subject should match the logged-in user")
	utils.AssertEqual(t, "viewer@example.com", me.Email, "Email should match the logged-in user")
	utils.AssertEqual(t, "viewer", me.Role, "Role should be resolved fresh from the users table")
}

func TestServer_Me_RejectsUnauthenticated(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/api/v1/auth/me", "", nil)
	utils.AssertEqual(t, http.StatusUnauthorized, resp.Code, "Me should require a bearer token")
}

func TestServer_UnauthenticatedRequestRejected(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/api/v1/referrals", "", nil)
	utils.AssertEqual(t, http.StatusUnauthorized, resp.Code, "Missing bearer token should be rejected")
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := doRequest(t, server, http.MethodGet, "/health", "", nil)
	utils.AssertEqual(t, http.StatusOK, resp.Code, "Shallow health check should always succeed")

	var health struct {
		Status string `json:"status"`
		Mode   string `json:"mode"`
	}
	utils.AssertError(t, json.Unmarshal(resp.Body.Bytes(), &health), false, "Should decode health response")
	utils.AssertEqual(t, "ok", health.Status, "Status should be ok")
	utils.AssertEqual(t, "test", health.Mode, "Mode should report the server environment")
}
