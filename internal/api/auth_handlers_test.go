package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/models"
	"clipstream/internal/storage"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	return newTestHandlerWithMedia(t, nil)
}

func newTestHandlerWithMedia(t *testing.T, media storage.MediaStore) (*Handler, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	})
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	sessions := auth.NewSessionManager(store, codec)
	return NewHandler(store, sessions, media), store
}

// recordingMediaStore captures uploads in memory so tests can observe object
// keys and contents.
type recordingMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newRecordingMediaStore() *recordingMediaStore {
	return &recordingMediaStore{objects: make(map[string][]byte)}
}

func (s *recordingMediaStore) Enabled() bool { return true }

func (s *recordingMediaStore) Upload(_ context.Context, key, _ string, body []byte) (storage.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	return storage.MediaAsset{Key: key, URL: "https://media.test/" + key}, nil
}

func (s *recordingMediaStore) Remove(_ context.Context, keyOrURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, strings.TrimPrefix(keyOrURL, "https://media.test/"))
	return nil
}

func registerTestUser(t *testing.T, store *storage.Storage, username, password string) models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), storage.CreateUserParams{
		Username: username,
		Email:    username + "@example.com",
		FullName: "Test " + username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	return user
}

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %s not found", name)
	return nil
}

func performLogin(t *testing.T, handler *Handler, usernameOrEmail, password string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(loginRequest{UsernameOrEmail: usernameOrEmail, Password: password})
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/login", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	return rec
}

func TestLoginSessionCookieAttributes(t *testing.T) {
	cases := []struct {
		name         string
		configure    func(req *http.Request)
		policy       SessionCookiePolicy
		wantSecure   bool
		wantSameSite http.SameSite
	}{
		{
			name:         "insecure localhost defaults to non secure",
			configure:    func(req *http.Request) {},
			policy:       SessionCookiePolicy{},
			wantSecure:   false,
			wantSameSite: http.SameSiteStrictMode,
		},
		{
			name: "forwarded https enables secure cookie",
			configure: func(req *http.Request) {
				req.Header.Set("X-Forwarded-Proto", "https")
			},
			policy:       SessionCookiePolicy{},
			wantSecure:   true,
			wantSameSite: http.SameSiteStrictMode,
		},
		{
			name:      "secure policy forces secure flag",
			configure: func(req *http.Request) {},
			policy: SessionCookiePolicy{
				SameSite:   http.SameSiteLaxMode,
				SecureMode: SessionCookieSecureAlways,
			},
			wantSecure:   true,
			wantSameSite: http.SameSiteLaxMode,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, store := newTestHandler(t)
			handler.SessionCookiePolicy = tc.policy
			registerTestUser(t, store, "viewer", "supersecret")

			payload, _ := json.Marshal(loginRequest{UsernameOrEmail: "viewer", Password: "supersecret"})
			req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/login", bytes.NewReader(payload))
			tc.configure(req)
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			for _, name := range []string{accessCookieName, refreshCookieName} {
				cookie := findCookie(t, rec.Result().Cookies(), name)
				if cookie.Value == "" {
					t.Fatalf("expected login to issue %s cookie", name)
				}
				if cookie.Path != "/api" {
					t.Fatalf("expected cookie path /api, got %q", cookie.Path)
				}
				if !cookie.HttpOnly {
					t.Fatalf("expected HttpOnly %s cookie", name)
				}
				if cookie.Secure != tc.wantSecure {
					t.Fatalf("expected Secure=%v on %s, got %v", tc.wantSecure, name, cookie.Secure)
				}
				if cookie.SameSite != tc.wantSameSite {
					t.Fatalf("expected SameSite %v on %s, got %v", tc.wantSameSite, name, cookie.SameSite)
				}
			}

			access := findCookie(t, rec.Result().Cookies(), accessCookieName)
			expiresIn := time.Until(access.Expires)
			if expiresIn < 23*time.Hour || expiresIn > 24*time.Hour+time.Minute {
				t.Fatalf("unexpected access cookie expiry duration: %v", expiresIn)
			}
			refresh := findCookie(t, rec.Result().Cookies(), refreshCookieName)
			if time.Until(refresh.Expires) < 239*time.Hour {
				t.Fatalf("unexpected refresh cookie expiry: %v", time.Until(refresh.Expires))
			}
		})
	}
}

func TestLoginDoesNotRevealWhetherAccountExists(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "casey", "supersecret")

	wrongPassword := performLogin(t, handler, "casey", "wrong")
	unknownAccount := performLogin(t, handler, "nobody", "wrong")

	if wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", wrongPassword.Code)
	}
	if unknownAccount.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown account, got %d", unknownAccount.Code)
	}
	if wrongPassword.Body.String() != unknownAccount.Body.String() {
		t.Fatalf("expected identical error bodies, got %q and %q",
			wrongPassword.Body.String(), unknownAccount.Body.String())
	}
}

func TestLoginResponseOmitsCredentialMaterial(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "casey", "supersecret")

	rec := performLogin(t, handler, "casey@example.com", "supersecret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	var user map[string]interface{}
	if err := json.Unmarshal(decoded["user"], &user); err != nil {
		t.Fatalf("decode user payload: %v", err)
	}
	for _, forbidden := range []string{"passwordHash", "refreshToken"} {
		if _, ok := user[forbidden]; ok {
			t.Fatalf("expected %s to be stripped from login response", forbidden)
		}
	}
}

func performRefresh(t *testing.T, handler *Handler, refreshToken string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)
	return rec
}

func TestRefreshRotatesAndRejectsReusedToken(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "casey", "supersecret")

	login := performLogin(t, handler, "casey", "supersecret")
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", login.Code, login.Body.String())
	}
	firstRefreshToken := findCookie(t, login.Result().Cookies(), refreshCookieName).Value

	rotated := performRefresh(t, handler, firstRefreshToken)
	if rotated.Code != http.StatusOK {
		t.Fatalf("expected refresh to succeed, got %d: %s", rotated.Code, rotated.Body.String())
	}
	secondRefreshToken := findCookie(t, rotated.Result().Cookies(), refreshCookieName).Value
	if secondRefreshToken == firstRefreshToken {
		t.Fatal("expected refresh to rotate the refresh token")
	}

	reused := performRefresh(t, handler, firstRefreshToken)
	if reused.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for superseded refresh token, got %d", reused.Code)
	}
	cleared := findCookie(t, reused.Result().Cookies(), refreshCookieName)
	if cleared.Value != "" || cleared.MaxAge != -1 {
		t.Fatalf("expected rejected refresh to clear the cookie, got %+v", cleared)
	}

	current := performRefresh(t, handler, secondRefreshToken)
	if current.Code != http.StatusOK {
		t.Fatalf("expected current refresh token to work, got %d", current.Code)
	}
}

func TestRefreshAcceptsBodyFallback(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "casey", "supersecret")

	login := performLogin(t, handler, "casey", "supersecret")
	token := findCookie(t, login.Result().Cookies(), refreshCookieName).Value

	payload, _ := json.Marshal(refreshRequest{RefreshToken: token})
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/refresh", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected body-supplied refresh to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshWithoutTokenReturns401(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/refresh", nil)
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a refresh token, got %d", rec.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	handler, store := newTestHandler(t)
	user := registerTestUser(t, store, "casey", "supersecret")

	login := performLogin(t, handler, "casey", "supersecret")
	refreshToken := findCookie(t, login.Result().Cookies(), refreshCookieName).Value

	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/logout", nil)
	req = req.WithContext(ContextWithUser(req.Context(), user.Sanitized()))
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout to succeed, got %d", rec.Code)
	}
	for _, name := range []string{accessCookieName, refreshCookieName} {
		cookie := findCookie(t, rec.Result().Cookies(), name)
		if cookie.Value != "" || cookie.MaxAge != -1 {
			t.Fatalf("expected logout to expire %s cookie, got %+v", name, cookie)
		}
	}

	afterLogout := performRefresh(t, handler, refreshToken)
	if afterLogout.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh after logout to fail, got %d", afterLogout.Code)
	}
}

func TestRegisterCreatesAccountFromMultipartForm(t *testing.T) {
	handler, store := newTestHandler(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("username", "NewUser")
	_ = form.WriteField("email", "new@example.com")
	_ = form.WriteField("fullName", "New User")
	_ = form.WriteField("password", "supersecret")
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/register", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	user, ok, err := store.GetUserByUsername(context.Background(), "newuser")
	if err != nil || !ok {
		t.Fatalf("expected registered user to exist: ok=%v err=%v", ok, err)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("unexpected email %q", user.Email)
	}

	login := performLogin(t, handler, "newuser", "supersecret")
	if login.Code != http.StatusOK {
		t.Fatalf("expected registered user to log in, got %d", login.Code)
	}
}

func registerWithAvatar(t *testing.T, handler *Handler, username string, avatar []byte) {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("username", username)
	_ = form.WriteField("email", username+"@example.com")
	_ = form.WriteField("fullName", "Test "+username)
	_ = form.WriteField("password", "supersecret")
	part, err := form.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(avatar)
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/register", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering %s, got %d: %s", username, rec.Code, rec.Body.String())
	}
}

func TestUploadsWithSameFilenameGetDistinctKeys(t *testing.T) {
	media := newRecordingMediaStore()
	handler, store := newTestHandlerWithMedia(t, media)
	ctx := context.Background()

	registerWithAvatar(t, handler, "alice", []byte("alice-avatar-bytes"))
	registerWithAvatar(t, handler, "bob", []byte("bob-avatar-bytes"))

	if len(media.objects) != 2 {
		t.Fatalf("expected two stored objects, got %d: %v", len(media.objects), media.objects)
	}

	alice, ok, _ := store.GetUserByUsername(ctx, "alice")
	if !ok {
		t.Fatal("expected alice to exist")
	}
	bob, ok, _ := store.GetUserByUsername(ctx, "bob")
	if !ok {
		t.Fatal("expected bob to exist")
	}
	if alice.AvatarURL == bob.AvatarURL {
		t.Fatalf("expected distinct avatar URLs, both are %q", alice.AvatarURL)
	}

	aliceKey := strings.TrimPrefix(alice.AvatarURL, "https://media.test/")
	if got := string(media.objects[aliceKey]); got != "alice-avatar-bytes" {
		t.Fatalf("expected alice's avatar preserved after bob's upload, got %q", got)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "taken", "supersecret")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("username", "taken")
	_ = form.WriteField("email", "second@example.com")
	_ = form.WriteField("fullName", "Second")
	_ = form.WriteField("password", "supersecret")
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/register", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}
}

func TestAuthenticateRequestRejectsRefreshTokenAtGate(t *testing.T) {
	handler, store := newTestHandler(t)
	registerTestUser(t, store, "casey", "supersecret")

	login := performLogin(t, handler, "casey", "supersecret")
	refreshToken := findCookie(t, login.Result().Cookies(), refreshCookieName).Value

	req := httptest.NewRequest(http.MethodGet, "http://localhost/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: refreshToken})
	if _, err := handler.AuthenticateRequest(req); err == nil {
		t.Fatal("expected refresh token presented as access token to be rejected")
	}

	accessToken := findCookie(t, login.Result().Cookies(), accessCookieName).Value
	req = httptest.NewRequest(http.MethodGet, "http://localhost/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: accessToken})
	user, err := handler.AuthenticateRequest(req)
	if err != nil {
		t.Fatalf("expected valid access token to authenticate, got %v", err)
	}
	if user.PasswordHash != "" || user.RefreshToken != "" {
		t.Fatal("expected authenticated user to be sanitized")
	}
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	handler, store := newTestHandler(t)
	user := registerTestUser(t, store, "casey", "oldpassword")

	payload, _ := json.Marshal(changePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "newpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/change-password", bytes.NewReader(payload))
	req = req.WithContext(ContextWithUser(req.Context(), user.Sanitized()))
	rec := httptest.NewRecorder()
	handler.ChangePassword(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d", rec.Code)
	}

	payload, _ = json.Marshal(changePasswordRequest{
		CurrentPassword: "oldpassword",
		NewPassword:     "newpassword",
	})
	req = httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/change-password", bytes.NewReader(payload))
	req = req.WithContext(ContextWithUser(req.Context(), user.Sanitized()))
	rec = httptest.NewRecorder()
	handler.ChangePassword(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected password change to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := performLogin(t, handler, "casey", "newpassword"); rec.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
	if rec := performLogin(t, handler, "casey", "oldpassword"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected old password to be rejected, got %d", rec.Code)
	}
}
