package httpapi

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

func setupAuth(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AuthHandler) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	h := NewAuthHandler(repository.NewUsersRepository(db, logger), "test-secret", time.Hour, logger)
	return db, mock, h
}

func userRowWithPassword(t *testing.T, password string) *sqlmock.Rows {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "phone", "password_hash", "created_at",
	}).AddRow(1, "jane@example.com", "Jane", "Doe", "+254700000001", string(hash), time.Now())
}

func TestLogin_Success(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs("jane@example.com").
		WillReturnRows(userRowWithPassword(t, "secret123"))

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"Jane@Example.com","password":"secret123"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	// token 同时落在 cookie，供 WebSocket 握手使用
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "token", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs("jane@example.com").
		WillReturnRows(userRowWithPassword(t, "secret123"))

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"jane@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs("jane@example.com").
		WillReturnRows(userRowWithPassword(t, "secret123"))

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"email":"jane@example.com","password":"secret123","first_name":"Jane"}`))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"email":"","password":""}`))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	handler := h.RequireAuth(func(w http.ResponseWriter, r *http.Request, claims *Claims) {
		t.Fatal("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/predict", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	token, err := h.issueToken(&models.User{ID: 7, Email: "jane@example.com"})
	require.NoError(t, err)

	var gotClaims *Claims
	handler := h.RequireAuth(func(w http.ResponseWriter, r *http.Request, claims *Claims) {
		gotClaims = claims
		writeMessage(w, http.StatusOK, "ok")
	})

	// Bearer 头
	req := httptest.NewRequest(http.MethodGet, "/api/predict", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, int64(7), gotClaims.UserID)
	assert.Equal(t, "jane@example.com", gotClaims.Email)

	// cookie
	req = httptest.NewRequest(http.MethodGet, "/api/predict", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// query 参数（WebSocket 握手路径）
	req = httptest.NewRequest(http.MethodGet, "/api/predict?token="+token, nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	h.expiry = -time.Hour
	token, err := h.issueToken(&models.User{ID: 7, Email: "jane@example.com"})
	require.NoError(t, err)

	handler := h.RequireAuth(func(w http.ResponseWriter, r *http.Request, claims *Claims) {
		t.Fatal("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/predict", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
