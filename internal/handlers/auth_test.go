package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"admin-console/internal/backend"
	"admin-console/internal/mocks"
	"admin-console/internal/models"
	"admin-console/internal/sessions"
)

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", handler.Login)
	r.POST("/logout", handler.Logout)
	return r
}

func TestLoginSuccess(t *testing.T) {
	backendMock := new(mocks.BackendMock)
	store := new(mocks.SessionStoreMock)
	handler := NewAuthHandler(backendMock, store, nil)
	router := setupAuthRouter(handler)

	backendMock.On("Login", mock.Anything, "admin@snorelax.app", "secret").
		Return(backend.LoginResult{AdminID: "admin-1", Nickname: "SnoRelax Team", Token: "tok"}, nil).Once()
	store.On("Create", mock.Anything, "tok", "admin-1", "SnoRelax Team").
		Return(models.Session{Token: "tok", AdminID: "admin-1", Nickname: "SnoRelax Team"}, nil).Once()

	body := bytes.NewBufferString(`{"email":"admin@snorelax.app","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"adminId":"admin-1"`)
	backendMock.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestLoginInvalidCredentials(t *testing.T) {
	backendMock := new(mocks.BackendMock)
	store := new(mocks.SessionStoreMock)
	handler := NewAuthHandler(backendMock, store, nil)
	router := setupAuthRouter(handler)

	backendMock.On("Login", mock.Anything, "admin@snorelax.app", "wrong").
		Return(backend.LoginResult{}, &backend.RequestError{Op: "login", Status: http.StatusUnauthorized}).Once()

	body := bytes.NewBufferString(`{"email":"admin@snorelax.app","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginInvalidBody(t *testing.T) {
	handler := NewAuthHandler(new(mocks.BackendMock), new(mocks.SessionStoreMock), nil)
	router := setupAuthRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"email":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutSuccess(t *testing.T) {
	store := new(mocks.SessionStoreMock)
	handler := NewAuthHandler(new(mocks.BackendMock), store, nil)
	router := setupAuthRouter(handler)

	store.On("Delete", mock.Anything, "tok").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	store.AssertExpectations(t)
}

func TestLogoutToleratesUnknownToken(t *testing.T) {
	store := new(mocks.SessionStoreMock)
	handler := NewAuthHandler(new(mocks.BackendMock), store, nil)
	router := setupAuthRouter(handler)

	store.On("Delete", mock.Anything, "tok").Return(sessions.ErrSessionNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogoutMissingToken(t *testing.T) {
	handler := NewAuthHandler(new(mocks.BackendMock), new(mocks.SessionStoreMock), nil)
	router := setupAuthRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
