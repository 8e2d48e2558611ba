package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/authgate/internal/middleware"
	"github.com/noah-isme/authgate/internal/models"
	"github.com/noah-isme/authgate/internal/repository"
	"github.com/noah-isme/authgate/internal/service"
)

type userRepoFake struct {
	user *models.User
}

func (f *userRepoFake) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.user == nil || f.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *userRepoFake) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *userRepoFake) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	return nil
}

type tokenStoreFake struct {
	records map[string]models.ActiveToken
}

func newTokenStoreFake() *tokenStoreFake {
	return &tokenStoreFake{records: make(map[string]models.ActiveToken)}
}

func (f *tokenStoreFake) Save(ctx context.Context, record *models.ActiveToken) error {
	f.records[record.Token] = *record
	return nil
}

func (f *tokenStoreFake) FindByUserID(ctx context.Context, userID int64) ([]models.ActiveToken, error) {
	var out []models.ActiveToken
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *tokenStoreFake) DeleteByToken(ctx context.Context, token string) error {
	delete(f.records, token)
	return nil
}

func (f *tokenStoreFake) DeleteByUser(ctx context.Context, userID int64) error {
	for token, rec := range f.records {
		if rec.UserID == userID {
			delete(f.records, token)
		}
	}
	return nil
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, *tokenStoreFake) {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &userRepoFake{user: &models.User{
		ID:           42,
		Email:        "user@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
		Active:       true,
	}}

	tokens, err := service.NewTokenService(service.TokenConfig{SigningKey: []byte("handler-test-key"), TTL: time.Hour})
	require.NoError(t, err)

	store := newTokenStoreFake()
	authSvc := service.NewAuthService(users, store, repository.NewRevocationSet(), tokens, nil, nil)
	h := NewAuthHandler(authSvc, nil)

	r := gin.New()
	r.Use(middleware.Authenticate(authSvc, nil))
	r.POST("/auth/login", h.Login)
	protected := r.Group("", middleware.RequireAuth())
	protected.POST("/auth/logout", h.Logout)
	protected.POST("/auth/logout-all", h.LogoutAll)
	protected.GET("/auth/me", h.Me)
	return r, store
}

func loginFor(t *testing.T, r *gin.Engine) string {
	body, _ := json.Marshal(models.LoginRequest{Email: "user@example.com", Password: "secret"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func TestLoginEndpointIssuesToken(t *testing.T) {
	r, store := newAuthTestRouter(t)

	token := loginFor(t, r)
	_, recorded := store.records[token]
	assert.True(t, recorded, "login must persist the issued token")
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	body, _ := json.Marshal(models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginEndpointRejectsInvalidBody(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutEndpointRevokesToken(t *testing.T) {
	r, store := newAuthTestRouter(t)
	token := loginFor(t, r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.records)

	// The token is now rejected at the gate.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token has been revoked")
}

func TestLogoutAllEndpointRevokesEverySession(t *testing.T) {
	r, store := newAuthTestRouter(t)
	first := loginFor(t, r)
	second := loginFor(t, r)
	require.Len(t, store.records, 2)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	req.Header.Set("Authorization", "Bearer "+first)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"revoked":2`)
	assert.Empty(t, store.records)

	for _, token := range []string{first, second} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestMeEndpointReturnsBoundIdentity(t *testing.T) {
	r, _ := newAuthTestRouter(t)
	token := loginFor(t, r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), `"subject":"user@example.com"`)
}

func TestMeEndpointRequiresAuth(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
