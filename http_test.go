package identity_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	identity "github.com/goliatone/go-identity"
)

func newTestServer(t *testing.T) (*identity.Server, *MockRepositoryManager, identity.Authenticator) {
	t.Helper()
	repo := NewMockRepositoryManager()
	cfg := testConfig()
	auther := identity.NewAuthenticator(repo, cfg)
	return identity.NewServer(cfg, auther, repo), repo, auther
}

func doJSON(t *testing.T, srv *identity.Server, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}

	return res, decoded
}

func mintToken(t *testing.T, auther identity.Authenticator, id, username, email, role string) string {
	t.Helper()
	token, err := auther.TokenService().Generate(testIdentity{
		id:       id,
		username: username,
		email:    email,
		role:     role,
	})
	require.NoError(t, err)
	return token
}

func errorBody(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, false, body["success"])
	require.NotEmpty(t, body["timestamp"])
	apiErr, ok := body["error"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	return apiErr
}

func TestHealthNeedsNoCredentials(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := doJSON(t, srv, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

func TestRegisterEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.UsersRepo.On("FindByAnyHandle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound())
	repo.UsersRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	res, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": "Pepe Rone",
		"username":  "peperone",
		"email":     "pepe@example.com",
		"password":  "secret123",
	})

	require.Equal(t, http.StatusCreated, res.StatusCode, "body: %v", body)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])

	user := data["user"].(map[string]any)
	assert.Equal(t, "pepe@example.com", user["email"])
	assert.Equal(t, identity.RoleUser, user["role"])
	assert.NotContains(t, user, "password_hash", "hash must never serialize")
}

func TestRegisterEndpointValidationError(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": "Pepe Rone",
		"email":     "not-an-email",
		"password":  "secret123",
	})

	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	apiErr := errorBody(t, body)
	assert.Equal(t, "ValidationError", apiErr["type"])

	details, ok := apiErr["errors"].([]any)
	require.True(t, ok, "validation failures must be field attributed: %v", apiErr)
	require.NotEmpty(t, details)

	first := details[0].(map[string]any)
	assert.Equal(t, "email", first["field"])
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.UsersRepo.On("FindByAnyHandle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storedUser(), nil)

	res, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": "Pepe Rone",
		"username":  "peperone",
		"email":     "pepe@example.com",
		"password":  "secret123",
	})

	require.Equal(t, http.StatusConflict, res.StatusCode)

	apiErr := errorBody(t, body)
	assert.Equal(t, "ValidationError", apiErr["type"])
}

func TestLoginEndpoint(t *testing.T) {
	user := storedUser()
	srv, repo, _ := newTestServer(t)
	repo.UsersRepo.On("GetByIdentifier", mock.Anything, "pepe@example.com").Return(user, nil)
	repo.UsersRepo.On("GetByIdentifier", mock.Anything, user.ID.String()).Return(user, nil)

	res, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"identifier": "pepe@example.com",
		"password":   "secret123",
	})

	require.Equal(t, http.StatusOK, res.StatusCode, "body: %v", body)

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.UsersRepo.On("GetByIdentifier", mock.Anything, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound())

	res, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"identifier": "nobody@example.com",
		"password":   "secret123",
	})

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	apiErr := errorBody(t, body)
	assert.Equal(t, "AuthenticationError", apiErr["type"])
	assert.Equal(t, "Invalid credentials", apiErr["message"])
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	res, body := doJSON(t, srv, http.MethodGet, "/me", "", nil)

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	apiErr := errorBody(t, body)
	assert.Equal(t, "AuthenticationError", apiErr["type"])

	// the gate rejected before the handler could touch the store
	repo.UsersRepo.AssertNotCalled(t, "GetByIdentifier", mock.Anything, mock.Anything)
}

func TestProtectedRouteWithGarbageToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := doJSON(t, srv, http.MethodGet, "/me", "not-a-real-token", nil)

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	apiErr := errorBody(t, body)
	assert.Equal(t, "AuthenticationError", apiErr["type"])
}

func TestExpiredTokenRejected(t *testing.T) {
	srv, _, auther := newTestServer(t)

	claims := &identity.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testConfig().Issuer,
			Subject:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UID:      "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		UserRole: identity.RoleUser,
	}
	token, err := auther.TokenService().SignClaims(claims)
	require.NoError(t, err)

	res, _ := doJSON(t, srv, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestMeEndpoint(t *testing.T) {
	user := storedUser()
	srv, repo, auther := newTestServer(t)
	repo.UsersRepo.On("GetByIdentifier", mock.Anything, user.ID.String()).Return(user, nil)

	token := mintToken(t, auther, user.ID.String(), user.Username, user.Email, user.Role)

	res, body := doJSON(t, srv, http.MethodGet, "/me", token, nil)

	require.Equal(t, http.StatusOK, res.StatusCode, "body: %v", body)

	data := body["data"].(map[string]any)
	me := data["user"].(map[string]any)
	assert.Equal(t, user.Email, me["email"])
}

// A valid token for a user the store no longer knows must yield a 404, not a
// store-failure 500: the repository's typed not-found has to be recognized
// everywhere it can surface.
func TestMeEndpointForRemovedUser(t *testing.T) {
	user := storedUser()
	srv, repo, auther := newTestServer(t)
	repo.UsersRepo.On("GetByIdentifier", mock.Anything, user.ID.String()).
		Return(nil, repository.NewRecordNotFound())

	token := mintToken(t, auther, user.ID.String(), user.Username, user.Email, user.Role)

	res, body := doJSON(t, srv, http.MethodGet, "/me", token, nil)

	require.Equal(t, http.StatusNotFound, res.StatusCode, "body: %v", body)

	apiErr := errorBody(t, body)
	assert.Equal(t, "NotFoundError", apiErr["type"])
	assert.NotEqual(t, "DatabaseError", apiErr["type"])
}

// A USER principal probing an ADMIN route gets a generic 403 that does not
// name the roles that would have been accepted.
func TestAdminDashboardRoleEnforcement(t *testing.T) {
	srv, _, auther := newTestServer(t)

	userToken := mintToken(t, auther, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "a", "a@x.com", identity.RoleUser)

	res, body := doJSON(t, srv, http.MethodGet, "/admin/dashboard", userToken, nil)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	apiErr := errorBody(t, body)
	assert.Equal(t, "AuthorizationError", apiErr["type"])
	assert.NotContains(t, apiErr["message"], "ADMIN", "403 must not disclose accepted roles")

	adminToken := mintToken(t, auther, "6ba7b810-9dad-11d1-80b4-00c04fd430c9", "boss", "boss@x.com", identity.RoleAdmin)

	res, body = doJSON(t, srv, http.MethodGet, "/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, "body: %v", body)
	assert.Equal(t, true, body["success"])
}

func TestUsersProfileAcceptsEveryKnownRole(t *testing.T) {
	user := storedUser()

	for _, role := range identity.AllRoles() {
		srv, repo, auther := newTestServer(t)
		repo.UsersRepo.On("GetByIdentifier", mock.Anything, user.ID.String()).Return(user, nil)

		token := mintToken(t, auther, user.ID.String(), user.Username, user.Email, role)

		res, body := doJSON(t, srv, http.MethodGet, "/users/profile", token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode, "role %s body: %v", role, body)
	}
}

func TestUnknownRouteIsProtectedByDefault(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, body := doJSON(t, srv, http.MethodGet, "/not-registered", "", nil)

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	apiErr := errorBody(t, body)
	assert.Equal(t, "AuthenticationError", apiErr["type"])
}
