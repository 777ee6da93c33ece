package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/auth"
	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/controllers"
	"github.com/princinho/eventhub/mailer"
	"github.com/princinho/eventhub/metrics"
	"github.com/princinho/eventhub/middleware"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/storage"
	"github.com/princinho/eventhub/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	tokenInLink = regexp.MustCompile(`token=([^"&<\s]+)`)
	pngHeader   = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t      *testing.T
	engine *gin.Engine
	deps   *controllers.Deps
	cfg    *config.Config
	users  *repository.MemoryUserStore
	ledger *repository.MemoryTokenLedger
	outbox *mailer.Outbox
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Environment: "test", PublicBaseURL: "http://localhost:8080"},
		Auth: config.AuthConfig{
			Secret:                     "router-test-secret",
			AccessTokenTTL:             15 * time.Minute,
			RefreshTokenTTL:            24 * time.Hour,
			PasswordResetTTL:           15 * time.Minute,
			EmailConfirmationTTL:       24 * time.Hour,
			PasswordMinLength:          8,
			LoginMethod:                config.LoginMethodEmail,
			ResetRequiresVerifiedEmail: true,
		},
		Storage: config.StorageConfig{
			Driver:            config.StorageDriverLocal,
			LocalDir:          t.TempDir(),
			MaxUploadSizeMB:   1,
			AllowedExtensions: []string{".png"},
			AllowedMimeTypes:  []string{"image/png"},
		},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	users := repository.NewMemoryUserStore()
	ledger := repository.NewMemoryTokenLedger()
	outbox := &mailer.Outbox{}
	m := metrics.New()
	log := zap.NewNop()

	uploader, err := storage.New(context.Background(), cfg.Storage)
	require.NoError(t, err)
	login, err := auth.NewLoginStrategy(cfg.Auth.LoginMethod, users)
	require.NoError(t, err)

	deps := &controllers.Deps{
		Config:        cfg,
		Users:         users,
		Events:        repository.NewMemoryEventStore(),
		Sessions:      auth.NewSessionIssuer(users, ledger, cfg.Auth, log),
		Actions:       auth.NewActionTokenIssuer(users, cfg.Auth.Secret),
		LoginStrategy: login,
		Mailer:        mailer.New(outbox, cfg.App.PublicBaseURL, log, m),
		Uploader:      uploader,
		Files:         storage.NewFileValidator(cfg.Storage),
		Metrics:       m,
		Log:           log,
	}

	return &harness{
		t:      t,
		engine: New(deps, middleware.NewMemoryLimiter(1000, time.Minute)),
		deps:   deps,
		cfg:    cfg,
		users:  users,
		ledger: ledger,
		outbox: outbox,
	}
}

type request struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (h *harness) do(r request) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		require.NoError(h.t, json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == utils.RefreshCookieName {
			return c
		}
	}
	return nil
}

func registerBody(username, email string, role int) map[string]any {
	return map[string]any{
		"username":        username,
		"firstName":       "Alice",
		"lastName":        "Liddell",
		"birthDate":       "1995-04-12",
		"role":            role,
		"email":           email,
		"password":        "longenough1",
		"confirmPassword": "longenough1",
	}
}

type account struct {
	id      string
	token   string
	cookie  *http.Cookie
	email   string
	confirm string
}

// signup registers and logs in. The confirmation token mailed at
// registration is kept for later.
func (h *harness) signup(username, email string, role int) account {
	h.t.Helper()
	w := h.do(request{method: http.MethodPost, path: "/api/auth/register", body: registerBody(username, email, role)})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(h.t, w)["id"].(string)
	confirm := h.lastMailToken()

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": email, "password": "longenough1",
	}})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	return account{
		id:      id,
		token:   decode(h.t, w)["access_token"].(string),
		cookie:  refreshCookie(w),
		email:   email,
		confirm: confirm,
	}
}

func (h *harness) lastMailToken() string {
	h.t.Helper()
	msg, ok := h.outbox.Last()
	require.True(h.t, ok, "no mail sent")
	m := tokenInLink.FindStringSubmatch(msg.HTML)
	require.Len(h.t, m, 2, msg.HTML)
	token, err := url.QueryUnescape(m[1])
	require.NoError(h.t, err)
	return token
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	w := h.do(request{method: http.MethodGet, path: "/ping"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = h.do(request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eventhub_http_requests_total")
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("alice01", "alice@example.com", 0)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "alice01", created["username"])
	assert.Equal(t, "alice@example.com", created["email"])
	assert.Equal(t, false, created["verifiedEmail"])
	assert.NotContains(t, w.Body.String(), "password")
	assert.Len(t, h.outbox.Messages(), 1)

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "alice@example.com", "password": "longenough1",
	}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["access_token_expiry"])
	cookie := refreshCookie(w)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, h.ledger.Len())

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "alice@example.com", "password": "wrong-password",
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong username or password", decode(t, w)["detail"])
	assert.Nil(t, refreshCookie(w))
	assert.NotContains(t, w.Body.String(), "access_token")

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "nobody@example.com", "password": "longenough1",
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong username or password", decode(t, w)["detail"])
}

func TestLoginByUsername(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.LoginMethod = config.LoginMethodUsername })
	w := h.do(request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("alice01", "alice@example.com", 0)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "alice@example.com", "password": "longenough1",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":{"username":["username is a required field"]}}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"username": "alice01", "password": "longenough1",
	}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	body := registerBody("al", "not-an-email", 3)
	body["confirmPassword"] = "different"
	w := h.do(request{method: http.MethodPost, path: "/api/auth/register", body: body})
	require.Equal(t, http.StatusBadRequest, w.Code)
	detail := decode(t, w)["detail"].(map[string]any)
	assert.Equal(t, []any{"username must be at least 5 characters long"}, detail["username"])
	assert.Equal(t, []any{"email must be a valid email address"}, detail["email"])
	assert.Equal(t, []any{"role must be one of [0 1]"}, detail["role"])
	assert.Equal(t, []any{"confirmPassword must match password"}, detail["confirmPassword"])

	body = registerBody("alice01", "alice@example.com", 0)
	body["password"], body["confirmPassword"] = "short", "short"
	w = h.do(request{method: http.MethodPost, path: "/api/auth/register", body: body})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":{"password":["password must be at least 8 characters long"]}}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: "/api/auth/register"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newHarness(t)
	h.signup("alice01", "alice@example.com", 0)

	w := h.do(request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("alice01", "ALICE@example.com", 0)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":{"username":["username already in use"],"email":["email already in use"]}}`, w.Body.String())
}

func TestRefreshRotation(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 0)

	w := h.do(request{method: http.MethodPost, path: "/api/auth/refresh_token", cookie: acc.cookie})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["access_token"])
	rotated := refreshCookie(w)
	require.NotNil(t, rotated)
	assert.NotEqual(t, acc.cookie.Value, rotated.Value)

	// the old token was consumed
	w = h.do(request{method: http.MethodPost, path: "/api/auth/refresh_token", cookie: acc.cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid refresh token", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: "/api/auth/refresh_token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing refresh token", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: "/api/auth/refresh_token", cookie: rotated})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutAndMe(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 1)

	w := h.do(request{method: http.MethodGet, path: "/api/auth/me", token: acc.token})
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, acc.id, me["id"])
	assert.Equal(t, "alice01", me["username"])
	assert.Equal(t, float64(1), me["role"])

	w = h.do(request{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "No authentication credentials found", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: "/api/auth/logout", token: acc.token, cookie: acc.cookie})
	assert.Equal(t, http.StatusNoContent, w.Code)
	cleared := refreshCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, 0, h.ledger.Len())

	w = h.do(request{method: http.MethodPost, path: "/api/auth/refresh_token", cookie: acc.cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserVisibility(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("alice01", "alice@example.com", 0)
	bob := h.signup("bobby01", "bob@example.com", 0)

	w := h.do(request{method: http.MethodGet, path: "/api/user/" + alice.id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "email")

	w = h.do(request{method: http.MethodGet, path: "/api/user/" + alice.id, token: bob.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "email")

	w = h.do(request{method: http.MethodGet, path: "/api/user/" + alice.id, token: alice.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode(t, w)["email"])

	w = h.do(request{method: http.MethodGet, path: "/api/user/nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user not found", decode(t, w)["detail"])
}

func TestUpdateUserOwnership(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("alice01", "alice@example.com", 0)
	bob := h.signup("bobby01", "bob@example.com", 0)

	w := h.do(request{method: http.MethodPut, path: "/api/user/" + alice.id, token: bob.token, body: map[string]any{"firstName": "Mallory"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(request{method: http.MethodPut, path: "/api/user/" + alice.id, token: alice.token, body: map[string]any{"firstName": "Alicia"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alicia", decode(t, w)["firstName"])
}

func TestEmailConfirmation(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 0)

	w := h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=" + url.QueryEscape(acc.confirm)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user, err := h.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.VerifiedEmail)

	w = h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=" + url.QueryEscape(acc.confirm)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email already verified", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: "/api/user/verification-email", token: acc.token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", decode(t, w)["detail"])
}

func TestChangeEmailInvalidatesConfirmation(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 0)

	w := h.do(request{method: http.MethodPost, path: "/api/user/" + acc.id + "/email", token: acc.token, body: map[string]any{
		"newEmail": "alice@example.com", "password": "longenough1",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/user/" + acc.id + "/email", token: acc.token, body: map[string]any{
		"newEmail": "alice2@example.com", "password": "wrong-password",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":{"password":["password is incorrect"]}}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: "/api/user/" + acc.id + "/email", token: acc.token, body: map[string]any{
		"newEmail": "alice2@example.com", "password": "longenough1",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fresh := h.lastMailToken()

	// bound to the old address
	w = h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=" + url.QueryEscape(acc.confirm)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=" + url.QueryEscape(fresh)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangeUsername(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("alice01", "alice@example.com", 0)
	h.signup("bobby01", "bob@example.com", 0)

	w := h.do(request{method: http.MethodPost, path: "/api/user/" + alice.id + "/username", token: alice.token, body: map[string]any{
		"newUsername": "bobby01", "password": "longenough1",
	}})
	assert.JSONEq(t, `{"detail":{"newUsername":["username already in use"]}}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: "/api/user/" + alice.id + "/username", token: alice.token, body: map[string]any{
		"newUsername": "alice_02", "password": "longenough1",
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice_02", decode(t, w)["username"])
}

func TestChangeMyPassword(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 0)

	w := h.do(request{method: http.MethodPost, path: "/api/user/me/password", token: acc.token, body: map[string]any{
		"currentPassword": "wrong-password", "newPassword": "brandnew123", "confirmNewPassword": "brandnew123",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/user/me/password", token: acc.token, body: map[string]any{
		"currentPassword": "longenough1", "newPassword": "brandnew123", "confirmNewPassword": "brandnew123",
	}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Equal(t, 0, h.ledger.Len())

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "alice@example.com", "password": "brandnew123",
	}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordResetGate(t *testing.T) {
	h := newHarness(t)
	h.signup("alice01", "alice@example.com", 0)
	sent := len(h.outbox.Messages())

	w := h.do(request{method: http.MethodPost, path: "/api/user/password-reset/request", body: map[string]any{"email": "ghost@example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: "/api/user/password-reset/request", body: map[string]any{"email": "alice@example.com"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email not verified", decode(t, w)["detail"])
	assert.Len(t, h.outbox.Messages(), sent)
}

func TestPasswordResetWithoutGate(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.ResetRequiresVerifiedEmail = false })
	h.signup("alice01", "alice@example.com", 0)

	for _, email := range []string{"ghost@example.com", "alice@example.com"} {
		w := h.do(request{method: http.MethodPost, path: "/api/user/password-reset/request", body: map[string]any{"email": email}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	}
	msg, ok := h.outbox.Last()
	require.True(t, ok)
	assert.Equal(t, "Reset your password", msg.Subject)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	acc := h.signup("alice01", "alice@example.com", 0)
	w := h.do(request{method: http.MethodGet, path: "/api/user/email-confirmation?token=" + url.QueryEscape(acc.confirm)})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/user/password-reset/request", body: map[string]any{"email": "alice@example.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	reset := h.lastMailToken()

	w = h.do(request{method: http.MethodGet, path: "/api/user/password-reset/validate?token=" + url.QueryEscape(reset)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "valid token", decode(t, w)["message"])

	// a confirmation token is not a reset token
	w = h.do(request{method: http.MethodGet, path: "/api/user/password-reset/validate?token=" + url.QueryEscape(acc.confirm)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/user/password-reset?token=" + url.QueryEscape(reset), body: map[string]any{
		"newPassword": "resetpass99", "confirmPassword": "resetpass99",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, h.ledger.Len())

	w = h.do(request{method: http.MethodPost, path: "/api/user/password-reset?token=" + url.QueryEscape(reset), body: map[string]any{
		"newPassword": "another999", "confirmPassword": "another999",
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "alice@example.com", "password": "resetpass99",
	}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func eventData(published bool, limit int) map[string]any {
	return map[string]any{
		"name":        "Go Meetup",
		"category":    "tech",
		"tags":        []string{"Go Lang", "Meetup", "go-lang"},
		"date":        "2026-12-01T18:00:00Z",
		"place":       "Lomé",
		"description": "Monthly meetup",
		"limit":       limit,
		"isPublished": published,
		"isFree":      true,
	}
}

func (h *harness) createEvent(token string, data map[string]any, filename string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.WriteField("data", string(raw)))
	if filename != "" {
		part, err := mw.CreateFormFile("banner", filename)
		require.NoError(h.t, err)
		_, err = part.Write(content)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/events", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func TestCreateEvent(t *testing.T) {
	h := newHarness(t)
	creator := h.signup("creator1", "creator@example.com", 1)
	client := h.signup("client01", "client@example.com", 0)

	w := h.createEvent(client.token, eventData(true, 10), "banner.png", pngHeader)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.createEvent(creator.token, eventData(true, 10), "", nil)
	assert.JSONEq(t, `{"detail":{"banner":["banner is a required field"]}}`, w.Body.String())

	w = h.createEvent(creator.token, eventData(true, 10), "banner.gif", pngHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	paid := eventData(true, 10)
	paid["isFree"] = false
	w = h.createEvent(creator.token, paid, "banner.png", pngHeader)
	assert.JSONEq(t, `{"detail":{"price":["price is required for paid events"]}}`, w.Body.String())

	w = h.createEvent(creator.token, eventData(true, 10), "banner.png", pngHeader)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := decode(t, w)
	assert.Equal(t, "Go Meetup", event["name"])
	assert.Equal(t, []any{"go-lang", "meetup"}, event["tags"])
	assert.Regexp(t, `^/uploads/banners/`+creator.id+`/`, event["banner"])
	assert.Equal(t, "creator1", event["creator"].(map[string]any)["username"])
	assert.Equal(t, "Alice Liddell", event["creator"].(map[string]any)["fullName"])

	w = h.do(request{method: http.MethodGet, path: event["banner"].(string)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents(t *testing.T) {
	h := newHarness(t)
	creator := h.signup("creator1", "creator@example.com", 1)
	for i := 0; i < 12; i++ {
		require.Equal(t, http.StatusCreated, h.createEvent(creator.token, eventData(true, 5), "banner.png", pngHeader).Code)
	}
	require.Equal(t, http.StatusCreated, h.createEvent(creator.token, eventData(false, 5), "banner.png", pngHeader).Code)

	w := h.do(request{method: http.MethodGet, path: "/api/events"})
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, float64(12), page["count"])
	assert.Len(t, page["result"], 10)
	assert.Equal(t, "/api/events?limit=10&page=2", page["next"])

	w = h.do(request{method: http.MethodGet, path: "/api/events?page=2"})
	page = decode(t, w)
	assert.Len(t, page["result"], 2)
	assert.Nil(t, page["next"])

	w = h.do(request{method: http.MethodGet, path: "/api/events?limit=50"})
	assert.Len(t, decode(t, w)["result"], 12)

	w = h.do(request{method: http.MethodGet, path: "/api/events?name=MEETUP&category=tech&free=true&creator=" + creator.id})
	assert.Equal(t, float64(12), decode(t, w)["count"])

	w = h.do(request{method: http.MethodGet, path: "/api/events?name=.*"})
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = h.do(request{method: http.MethodGet, path: "/api/events?creator=xyz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(request{method: http.MethodGet, path: "/api/events?page=922337203685477582&limit=10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":{"page":["page is out of range"]}}`, w.Body.String())
}

func TestEventVisibilityAndAdministrators(t *testing.T) {
	h := newHarness(t)
	creator := h.signup("creator1", "creator@example.com", 1)
	admin := h.signup("admin001", "admin@example.com", 0)
	other := h.signup("other001", "other@example.com", 0)

	w := h.createEvent(creator.token, eventData(false, 5), "banner.png", pngHeader)
	require.Equal(t, http.StatusCreated, w.Code)
	eventID := decode(t, w)["id"].(string)
	path := "/api/events/" + eventID

	w = h.do(request{method: http.MethodGet, path: path, token: other.token})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "event not found", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: path + "/administrators", token: creator.token, body: map[string]any{
		"administrators": []string{"000000000000000000000000"},
	}})
	assert.JSONEq(t, `{"detail":{"administrators":["one or more users do not exist"]}}`, w.Body.String())

	w = h.do(request{method: http.MethodPost, path: path + "/administrators", token: creator.token, body: map[string]any{
		"administrators": []string{"bad"},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(request{method: http.MethodPost, path: path + "/administrators", token: creator.token, body: map[string]any{
		"administrators": []string{admin.id},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	admins := decode(t, w)["administrators"].([]any)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin001", admins[0].(map[string]any)["username"])

	w = h.do(request{method: http.MethodGet, path: path, token: admin.token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(request{method: http.MethodPost, path: path + "/administrators", token: other.token, body: map[string]any{
		"administrators": []string{other.id},
	}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(request{method: http.MethodDelete, path: path + "/administrators/" + other.id, token: creator.token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(request{method: http.MethodDelete, path: path + "/administrators/" + admin.id, token: creator.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["administrators"])
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	creator := h.signup("creator1", "creator@example.com", 1)
	alice := h.signup("alice01", "alice@example.com", 0)
	bob := h.signup("bobby01", "bob@example.com", 0)

	w := h.createEvent(creator.token, eventData(true, 1), "banner.png", pngHeader)
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/events/" + decode(t, w)["id"].(string)

	w = h.do(request{method: http.MethodPost, path: path + "/subscribe", token: alice.token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["isSubscribed"])

	user, err := h.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, user.Subscriptions, 1)

	w = h.do(request{method: http.MethodPost, path: path + "/subscribe", token: alice.token})
	assert.Equal(t, "already subscribed to this event", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: path + "/subscribe", token: bob.token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "event is full", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: path + "/unsubscribe", token: bob.token})
	assert.Equal(t, "not subscribed to this event", decode(t, w)["detail"])

	w = h.do(request{method: http.MethodPost, path: path + "/unsubscribe", token: alice.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["isSubscribed"])

	user, err = h.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, user.Subscriptions)

	w = h.do(request{method: http.MethodPost, path: path + "/subscribe", token: bob.token})
	assert.Equal(t, http.StatusOK, w.Code)

	// profile edits only touch their own fields
	w = h.do(request{method: http.MethodPut, path: "/api/user/" + bob.id, token: bob.token, body: map[string]any{"lastName": "Builder"}})
	require.Equal(t, http.StatusOK, w.Code)
	owner := decode(t, w)
	assert.Equal(t, "Builder", owner["lastName"])
	assert.Len(t, owner["subscriptions"], 1)
}

func TestRateLimitedLogin(t *testing.T) {
	h := newHarness(t)
	h.engine = New(h.deps, middleware.NewMemoryLimiter(2, time.Minute))
	login := request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "x@example.com", "password": "whatever1",
	}}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, h.do(login).Code)
	}
	w := h.do(login)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "too many requests", decode(t, w)["detail"])

	// other routes have their own bucket
	w = h.do(request{method: http.MethodPost, path: "/api/user/password-reset/request", body: map[string]any{"email": "x@example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
}
