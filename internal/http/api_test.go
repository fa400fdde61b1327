package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/auth"
	"taskboard/internal/domain"
	"taskboard/internal/repository"
	"taskboard/internal/repository/sqlite"
	"taskboard/internal/service"
	"taskboard/internal/storage"
)

type testServer struct {
	router    *gin.Engine
	notices   repository.NoticeRepository
	avatarDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	dir := t.TempDir()

	db, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	notices := sqlite.NewNoticeRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, notices.Init(ctx))

	avatarDir := filepath.Join(dir, "uploads", "avatars")
	avatars, err := storage.NewLocalService(avatarDir)
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer("test-secret", 0, 0)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewHandler(Config{
		Users: service.NewUserService(service.UserServiceConfig{
			Users:   users,
			Hasher:  auth.NewBcryptHasher(auth.MinBcryptCost),
			Tokens:  tokens,
			Avatars: avatars,
			Logger:  logger,
		}),
		Notices:        service.NewNoticeService(notices),
		Tokens:         tokens,
		AccessTTL:      tokens.AccessTTL(),
		RefreshTTL:     tokens.RefreshTTL(),
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{router: router, notices: notices, avatarDir: avatarDir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, password string, admin bool) AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/user/register", "", gin.H{
		"username": strings.Split(email, "@")[0],
		"email":    email,
		"password": password,
		"isAdmin":  admin,
		"role":     "developer",
		"title":    "Engineer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func assertNoPassword(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	body := strings.ToLower(rec.Body.String())
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "$2a$")
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/user/register", "", gin.H{
		"username": "alice", "email": "a@x.com", "password": "password1", "role": "dev", "title": "Engineer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assertNoPassword(t, rec)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)
	assert.False(t, resp.User.IsAdmin)
	assert.True(t, resp.User.IsActive)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.RefreshToken)

	token := cookieByName(rec, "token")
	require.NotNil(t, token)
	assert.Equal(t, resp.Token, token.Value)
	assert.True(t, token.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, token.SameSite)
	assert.Equal(t, 24*60*60, token.MaxAge)
	refresh := cookieByName(rec, "refreshToken")
	require.NotNil(t, refresh)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)

	rec = s.do(t, http.MethodPost, "/api/user/register", "", gin.H{
		"username": "other", "email": "a@x.com", "password": "another-pass", "isAdmin": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"status": false, "message": "User already exists"}, decodeMap(t, rec))
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/user/register", "", gin.H{"email": "nope", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email format, Password must be at least 8 characters long", decodeMap(t, rec)["message"])

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	bad := httptest.NewRecorder()
	s.router.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, false, decodeMap(t, bad)["status"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "password1", false)

	rec := s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assertNoPassword(t, rec)
	assert.NotNil(t, cookieByName(rec, "token"))

	wrong := s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "wrong-pass"})
	unknown := s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "b@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Invalid email or password", decodeMap(t, wrong)["message"])
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/user/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", decodeMap(t, rec)["message"])

	for _, name := range []string{"token", "refreshToken"} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, int64(0), c.Expires.Unix())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/user/team", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/team", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["status"])

	reg := s.register(t, "a@x.com", "password1", false)
	req := httptest.NewRequest(http.MethodGet, "/api/user/team", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: reg.Token})
	cookieRec := httptest.NewRecorder()
	s.router.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)

	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{name: "header wins over stale cookie", cookie: "stale-garbage", header: "Bearer " + reg.Token, want: http.StatusOK},
		{name: "cookie used when header is not bearer", cookie: reg.Token, header: "Basic abc", want: http.StatusOK},
		{name: "cookie used when bearer is empty", cookie: reg.Token, header: "Bearer  ", want: http.StatusOK},
		{name: "bad header is not rescued by cookie", cookie: reg.Token, header: "Bearer garbage", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/team", nil)
			req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestTeamList(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "a@x.com", "password1", false)
	s.register(t, "b@x.com", "password1", true)

	rec := s.do(t, http.MethodGet, "/api/user/team", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertNoPassword(t, rec)

	var team []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &team))
	require.Len(t, team, 2)
	keys := make([]string, 0)
	for k := range team[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"_id", "username", "title", "role", "email", "isActive"}, keys)
}

func TestActivateAndDelete(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "password1", true)
	user := s.register(t, "a@x.com", "password1", false)

	rec := s.do(t, http.MethodPut, "/api/user/"+admin.User.ID, user.Token, gin.H{"isActive": false})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "non-admins cannot deactivate")

	rec = s.do(t, http.MethodPut, "/api/user/"+user.User.ID, admin.Token, gin.H{"isActive": false})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User account has been deactivated", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User account has been deactivated, contact the administrator", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/user/team", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tokens of deactivated users stop working")

	rec = s.do(t, http.MethodPut, "/api/activate/"+user.User.ID, admin.Token, gin.H{"isActive": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User account has been activated", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/user/missing", admin.Token, gin.H{"isActive": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/user/"+user.User.ID, admin.Token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/user/"+user.User.ID, user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/user/"+user.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodDelete, "/api/user/"+user.User.ID, admin.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "deleting a missing user succeeds")

	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decodeMap(t, rec)["message"])
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "a@x.com", "password1", false)

	rec := s.do(t, http.MethodPut, "/api/change-password", user.Token, gin.H{"currentPassword": "nope", "newPassword": "password2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/change-password", user.Token, gin.H{"currentPassword": "password1", "newPassword": "password2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Password changed successfully.", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func multipartProfile(t *testing.T, fields map[string]string, avatar []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if avatar != nil {
		part, err := w.CreateFormFile("avatar", "me.png")
		require.NoError(t, err)
		_, err = part.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "password1", true)
	user := s.register(t, "a@x.com", "password1", false)

	body, contentType := multipartProfile(t, map[string]string{
		"_id":      admin.User.ID,
		"username": "renamed",
		"title":    "",
	}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPut, "/api/update-profile", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assertNoPassword(t, rec)

	var resp struct {
		Status  bool         `json:"status"`
		Message string       `json:"message"`
		User    UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Profile Updated Successfully.", resp.Message)
	assert.Equal(t, user.User.ID, resp.User.ID, "non-admin is pinned to self")
	assert.Equal(t, "renamed", resp.User.Username)
	assert.Equal(t, "Engineer", resp.User.Title, "empty fields are left unchanged")
	require.NotEmpty(t, resp.User.Avatar)

	data, err := os.ReadFile(filepath.FromSlash(resp.User.Avatar))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, filepath.Clean(s.avatarDir), filepath.Dir(filepath.FromSlash(resp.User.Avatar)))

	rec = s.do(t, http.MethodPut, "/api/user/profile", admin.Token, gin.H{"_id": user.User.ID, "title": "Manager"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, user.User.ID, resp.User.ID, "admin may target another user")
	assert.Equal(t, "Manager", resp.User.Title)
	assert.Equal(t, "renamed", resp.User.Username)

	rec = s.do(t, http.MethodPut, "/api/update-profile", admin.Token, gin.H{"_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "a@x.com", "password1", false)
	ctx := context.Background()

	first := &domain.Notice{Text: "New task", TaskID: "t1", TaskTitle: "Ship it", Team: []string{user.User.ID}}
	second := &domain.Notice{Text: "Updated", TaskID: "t2", TaskTitle: "Fix it", Team: []string{user.User.ID, "someone"}}
	require.NoError(t, s.notices.Create(ctx, first))
	require.NoError(t, s.notices.Create(ctx, second))

	rec := s.do(t, http.MethodGet, "/api/user/notifications", user.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var notices []NoticeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	require.Len(t, notices, 2)
	for _, n := range notices {
		require.NotNil(t, n.Task)
		assert.NotEmpty(t, n.Task.Title)
	}

	rec = s.do(t, http.MethodPut, "/api/user/read-noti?isReadType=one&id="+first.ID, user.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Done", decodeMap(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/user/notifications", user.Token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	require.Len(t, notices, 1)
	assert.Equal(t, second.ID, notices[0].ID)

	rec = s.do(t, http.MethodPut, "/api/user/read-noti?isReadType=all", user.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/notifications", user.Token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	assert.Empty(t, notices)

	rec = s.do(t, http.MethodPut, "/api/user/read-noti", user.Token, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Done", decodeMap(t, rec)["message"])
}

func TestEndToEnd(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "password1", true)

	reg := s.register(t, "a@x.com", "password1", false)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.RefreshToken)

	rec := s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongBody := rec.Body.String()

	rec = s.do(t, http.MethodDelete, "/api/user/"+reg.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "a@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrongBody, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/user/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/user/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
