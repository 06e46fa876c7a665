package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkawebai/inkaweb-backend/internal/config"
	"github.com/inkawebai/inkaweb-backend/internal/db"
	"github.com/inkawebai/inkaweb-backend/internal/http/api/handlers"
	"github.com/inkawebai/inkaweb-backend/internal/llm"
	"github.com/inkawebai/inkaweb-backend/internal/mail"
	"github.com/inkawebai/inkaweb-backend/internal/models"
	"github.com/inkawebai/inkaweb-backend/internal/payments"
	"github.com/inkawebai/inkaweb-backend/internal/security"
	"gorm.io/gorm"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []mail.Message
	notify   chan mail.Message
}

func newRecordingSender() *recordingSender {
	return &recordingSender{notify: make(chan mail.Message, 16)}
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	r.notify <- msg
	return nil
}

func (r *recordingSender) wait(t *testing.T) mail.Message {
	t.Helper()
	select {
	case msg := <-r.notify:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for email")
		return mail.Message{}
	}
}

type testEnv struct {
	router *gin.Engine
	conn   *gorm.DB
	cfg    config.Config
	sender *recordingSender
}

func newTestEnv(t *testing.T, llmClient *llm.Client) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "inkaweb-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	cfg := config.Config{ClientURL: "http://localhost:3000"}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiry = time.Hour
	cfg.Mail.Inbox = "inbox@example.com"

	sender := newRecordingSender()
	router := gin.New()
	RegisterRoutes(router, Deps{
		DB:       conn,
		Config:   cfg,
		Mailer:   sender,
		LLM:      llmClient,
		Payments: payments.New(payments.Config{ClientURL: cfg.ClientURL}),
	})
	return testEnv{router: router, conn: conn, cfg: cfg, sender: sender}
}

func (env testEnv) request(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func createVerifiedUser(t *testing.T, conn *gorm.DB, email string) (*models.User, *http.Cookie) {
	t.Helper()
	hashed, errHash := security.HashPassword("password123")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{
		Username:   "Test User",
		Email:      email,
		Password:   hashed,
		IsVerified: true,
		Provider:   models.AuthProviderLocal,
		Role:       models.RoleUser,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	token, errToken := security.NewSessionToken("test-secret", time.Hour, user.ID)
	if errToken != nil {
		t.Fatalf("session token: %v", errToken)
	}
	return &user, &http.Cookie{Name: handlers.SessionCookieName, Value: token}
}

func TestSignup_CreatesUserAndSetsCookie(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	rec := env.request(t, http.MethodPost, "/api/auth/signup", gin.H{
		"username": "Alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var user models.User
	if errFind := env.conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("find user: %v", errFind)
	}
	if user.IsVerified {
		t.Fatalf("new user should not be verified")
	}
	if user.VerificationToken == nil || len(*user.VerificationToken) != 6 {
		t.Fatalf("expected 6-digit verification token, got %v", user.VerificationToken)
	}
	if user.Password == "password123" {
		t.Fatalf("password stored unhashed")
	}

	cookieSet := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == handlers.SessionCookieName && cookie.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Fatalf("expected session cookie on signup")
	}

	msg := env.sender.wait(t)
	if msg.To != "alice@example.com" || !strings.Contains(msg.Text, *user.VerificationToken) {
		t.Fatalf("unexpected verification email: %+v", msg)
	}

	body := decodeJSON(t, rec)
	userOut, _ := body["user"].(map[string]any)
	if userOut == nil {
		t.Fatalf("expected user in response: %v", body)
	}
	if _, hasPassword := userOut["password"]; hasPassword {
		t.Fatalf("response leaked password hash")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	payload := gin.H{"username": "Alice", "email": "alice@example.com", "password": "password123"}
	if rec := env.request(t, http.MethodPost, "/api/auth/signup", payload); rec.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d", rec.Code)
	}
	rec := env.request(t, http.MethodPost, "/api/auth/signup", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate email, got %d", rec.Code)
	}

	var count int64
	env.conn.Model(&models.User{}).Where("email = ?", "alice@example.com").Count(&count)
	if count != 1 {
		t.Fatalf("expected one user row, got %d", count)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	createVerifiedUser(t, env.conn, "bob@example.com")

	rec := env.request(t, http.MethodPost, "/api/auth/", gin.H{"email": "bob@example.com", "password": "wrong"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on wrong password, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/", gin.H{"email": "nobody@example.com", "password": "password123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown email, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/", gin.H{"email": "bob@example.com", "password": "password123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on valid login, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	code := "123456"
	expiry := time.Now().Add(24 * time.Hour)
	hashed, _ := security.HashPassword("password123")
	user := models.User{
		Username:                   "Carol",
		Email:                      "carol@example.com",
		Password:                   hashed,
		VerificationToken:          &code,
		VerificationTokenExpiresAt: &expiry,
	}
	if errCreate := env.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	rec := env.request(t, http.MethodPost, "/api/auth/verify-email", gin.H{"token": "999999"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on wrong code, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/verify-email", gin.H{"token": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reloaded models.User
	env.conn.First(&reloaded, user.ID)
	if !reloaded.IsVerified || reloaded.VerificationToken != nil {
		t.Fatalf("expected verified user with cleared token, got %+v", reloaded)
	}

	if msg := env.sender.wait(t); msg.To != "carol@example.com" {
		t.Fatalf("expected welcome email to carol, got %+v", msg)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/verify-email", gin.H{"token": code})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reused code, got %d", rec.Code)
	}
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	code := "654321"
	expiry := time.Now().Add(-time.Minute)
	user := models.User{
		Username:                   "Dan",
		Email:                      "dan@example.com",
		Password:                   "x",
		VerificationToken:          &code,
		VerificationTokenExpiresAt: &expiry,
	}
	if errCreate := env.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	rec := env.request(t, http.MethodPost, "/api/auth/verify-email", gin.H{"token": code})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on expired code, got %d", rec.Code)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	user, _ := createVerifiedUser(t, env.conn, "erin@example.com")

	rec := env.request(t, http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "erin@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot password failed: %d: %s", rec.Code, rec.Body.String())
	}

	msg := env.sender.wait(t)
	if msg.To != "erin@example.com" {
		t.Fatalf("reset email sent to %s", msg.To)
	}

	var reloaded models.User
	env.conn.First(&reloaded, user.ID)
	if reloaded.ResetPasswordToken == nil {
		t.Fatalf("expected reset token stored")
	}
	token := *reloaded.ResetPasswordToken
	if !strings.Contains(msg.Text, token) {
		t.Fatalf("reset email does not carry the token")
	}

	rec = env.request(t, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "newpassword", "passwordConfirm": "different",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on mismatched passwords, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "short", "passwordConfirm": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on short password, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "newpassword1", "passwordConfirm": "newpassword1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset failed: %d: %s", rec.Code, rec.Body.String())
	}
	env.sender.wait(t)

	env.conn.First(&reloaded, user.ID)
	if reloaded.ResetPasswordToken != nil {
		t.Fatalf("reset token should be cleared after use")
	}
	if !security.CheckPassword(reloaded.Password, "newpassword1") {
		t.Fatalf("password was not updated")
	}

	rec = env.request(t, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "another123", "passwordConfirm": "another123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reused token, got %d", rec.Code)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	user, _ := createVerifiedUser(t, env.conn, "finn@example.com")

	token := "aabbccddee00112233445566778899aabbccddee"
	expiry := time.Now().Add(-time.Minute)
	env.conn.Model(user).Updates(map[string]any{
		"reset_password_token":      token,
		"reset_password_expires_at": expiry,
	})

	rec := env.request(t, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "newpassword1", "passwordConfirm": "newpassword1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on expired token, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	rec := env.request(t, http.MethodGet, "/api/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodGet, "/api/auth/me", nil,
		&http.Cookie{Name: handlers.SessionCookieName, Value: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", rec.Code)
	}

	hashed, _ := security.HashPassword("password123")
	unverified := models.User{Username: "Frank", Email: "frank@example.com", Password: hashed}
	if errCreate := env.conn.Create(&unverified).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	token, _ := security.NewSessionToken("test-secret", time.Hour, unverified.ID)
	rec = env.request(t, http.MethodGet, "/api/auth/me", nil,
		&http.Cookie{Name: handlers.SessionCookieName, Value: token})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unverified user, got %d", rec.Code)
	}

	customerID := "cus_123"
	user, cookie := createVerifiedUser(t, env.conn, "grace@example.com")
	env.conn.Model(user).Update("stripe_customer_id", customerID)

	rec = env.request(t, http.MethodGet, "/api/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	userOut, _ := body["user"].(map[string]any)
	if userOut == nil {
		t.Fatalf("expected user in response")
	}
	if _, has := userOut["stripeCustomerId"]; has {
		t.Fatalf("me response leaked stripe customer id")
	}

	// bearer header works without the cookie
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", recorder.Code)
	}
}

func newFakeLLM(t *testing.T, reply string) (*llm.Client, *int) {
	t.Helper()
	calls := new(int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, reply)
	}))
	t.Cleanup(server.Close)
	return llm.New(llm.Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Model:        "test-model",
		MaxRetries:   1,
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
	}), calls
}

func TestChat_NavigationAndPersistence(t *testing.T) {
	client, _ := newFakeLLM(t, "Great, redirecting you now. [GO_STRIPE 2500]")
	env := newTestEnv(t, client)
	user, cookie := createVerifiedUser(t, env.conn, "henry@example.com")

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{
		"messages": []gin.H{{"sender": "user", "text": "I need a website for my shop"}},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat failed: %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["shouldNavigate"] != true {
		t.Fatalf("expected shouldNavigate=true: %v", body)
	}
	if body["navigateUrl"] != "/stripe?amount=2500" {
		t.Fatalf("unexpected navigateUrl: %v", body["navigateUrl"])
	}
	if got := body["message"]; got != "Great, redirecting you now." {
		t.Fatalf("marker not stripped from reply: %q", got)
	}

	var instance models.ChatInstance
	if errFind := env.conn.Preload("Messages").Where("user_id = ?", user.ID).First(&instance).Error; errFind != nil {
		t.Fatalf("find instance: %v", errFind)
	}
	if instance.Title != "Web development" {
		t.Fatalf("expected derived title, got %q", instance.Title)
	}
	if len(instance.Messages) != 2 {
		t.Fatalf("expected user and bot messages persisted, got %d", len(instance.Messages))
	}
	if instance.Messages[0].Sender != models.SenderUser || instance.Messages[1].Sender != models.SenderBot {
		t.Fatalf("unexpected message order: %+v", instance.Messages)
	}
	if strings.Contains(instance.Messages[1].Text, "[GO_STRIPE") {
		t.Fatalf("stored bot message keeps the marker: %q", instance.Messages[1].Text)
	}
}

func TestChat_ConfirmationSendsRequirements(t *testing.T) {
	client, _ := newFakeLLM(t, "Perfect, I will pass this along. [CONFIRMED_PROCEED]")
	env := newTestEnv(t, client)
	_, cookie := createVerifiedUser(t, env.conn, "iris@example.com")

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{
		"messages": []gin.H{
			{"sender": "user", "text": "The project name is Orchard"},
			{"sender": "bot", "text": "Got it. Anything else?"},
			{"sender": "user", "text": "It should have a booking calendar"},
		},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat failed: %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if got := body["message"]; got != "Perfect, I will pass this along." {
		t.Fatalf("confirmation marker not stripped: %q", got)
	}

	msg := env.sender.wait(t)
	if msg.To != "inbox@example.com" {
		t.Fatalf("requirements email sent to %s", msg.To)
	}
	if !strings.Contains(msg.Text, "booking calendar") || strings.Contains(msg.Text, "Anything else?") {
		t.Fatalf("requirements should contain user turns only: %q", msg.Text)
	}
}

func TestChat_RepliesWhenPersistenceFails(t *testing.T) {
	client, _ := newFakeLLM(t, "Here is my answer. [GO_STRIPE]")
	env := newTestEnv(t, client)
	_, cookie := createVerifiedUser(t, env.conn, "noah@example.com")

	if errDrop := env.conn.Migrator().DropTable(&models.ChatMessage{}, &models.ChatInstance{}); errDrop != nil {
		t.Fatalf("drop tables: %v", errDrop)
	}

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{
		"messages": []gin.H{{"sender": "user", "text": "hello"}},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite save failure, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if got := body["message"]; got != "Here is my answer." {
		t.Fatalf("reply lost on save failure: %v", got)
	}
	if body["shouldNavigate"] != true || body["navigateUrl"] != "/stripe?amount=5000" {
		t.Fatalf("navigation lost on save failure: %v", body)
	}
	if body["instanceId"] != nil {
		t.Fatalf("expected null instanceId, got %v", body["instanceId"])
	}
}

func TestChat_RequiresMessages(t *testing.T) {
	client, calls := newFakeLLM(t, "hello")
	env := newTestEnv(t, client)
	_, cookie := createVerifiedUser(t, env.conn, "judy@example.com")

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{"messages": []gin.H{}}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on empty messages, got %d", rec.Code)
	}
	if *calls != 0 {
		t.Fatalf("model should not be called without messages")
	}
}

func TestChat_ReusesOwnInstance(t *testing.T) {
	client, _ := newFakeLLM(t, "Noted.")
	env := newTestEnv(t, client)
	user, cookie := createVerifiedUser(t, env.conn, "kate@example.com")

	instance := models.ChatInstance{UserID: user.ID, Title: "Existing"}
	if errCreate := env.conn.Create(&instance).Error; errCreate != nil {
		t.Fatalf("create instance: %v", errCreate)
	}

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{
		"messages":   []gin.H{{"sender": "user", "text": "continue please"}},
		"instanceId": instance.ID,
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if uint64(body["instanceId"].(float64)) != instance.ID {
		t.Fatalf("expected reply on instance %d, got %v", instance.ID, body["instanceId"])
	}

	var reloaded models.ChatInstance
	env.conn.First(&reloaded, instance.ID)
	if reloaded.Title != "Existing" {
		t.Fatalf("existing title should be kept, got %q", reloaded.Title)
	}
}

func TestChat_ForeignInstanceStartsFresh(t *testing.T) {
	client, _ := newFakeLLM(t, "Noted.")
	env := newTestEnv(t, client)
	other, _ := createVerifiedUser(t, env.conn, "other@example.com")
	_, cookie := createVerifiedUser(t, env.conn, "leo@example.com")

	foreign := models.ChatInstance{UserID: other.ID, Title: "Not yours"}
	if errCreate := env.conn.Create(&foreign).Error; errCreate != nil {
		t.Fatalf("create instance: %v", errCreate)
	}

	rec := env.request(t, http.MethodPost, "/api/chat/", gin.H{
		"messages":   []gin.H{{"sender": "user", "text": "hello"}},
		"instanceId": foreign.ID,
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if uint64(body["instanceId"].(float64)) == foreign.ID {
		t.Fatalf("foreign instance must not be written to")
	}

	var count int64
	env.conn.Model(&models.ChatMessage{}).Where("chat_instance_id = ?", foreign.ID).Count(&count)
	if count != 0 {
		t.Fatalf("foreign instance gained %d messages", count)
	}
}

func TestInstanceLifecycle(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	user, cookie := createVerifiedUser(t, env.conn, "mona@example.com")

	rec := env.request(t, http.MethodPost, "/api/chat/instances", gin.H{"title": "Plans"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("create instance failed: %d", rec.Code)
	}
	created := decodeJSON(t, rec)
	if created["title"] != "Plans" {
		t.Fatalf("unexpected title: %v", created)
	}
	firstID := uint64(created["instanceId"].(float64))

	rec = env.request(t, http.MethodPost, "/api/chat/instances", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("create default instance failed: %d", rec.Code)
	}
	if got := decodeJSON(t, rec)["title"]; got != models.DefaultChatTitle {
		t.Fatalf("expected default title, got %v", got)
	}

	for _, text := range []string{"one", "two", "three"} {
		message := models.ChatMessage{ChatInstanceID: firstID, Sender: models.SenderUser, Text: text}
		if errCreate := env.conn.Create(&message).Error; errCreate != nil {
			t.Fatalf("seed message: %v", errCreate)
		}
	}
	env.conn.Model(&models.ChatInstance{}).Where("id = ?", firstID).
		Update("updated_at", time.Now().Add(time.Hour))

	rec = env.request(t, http.MethodGet, "/api/chat/instances", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list instances failed: %d", rec.Code)
	}
	list := decodeJSON(t, rec)
	instances, _ := list["instances"].([]any)
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}
	first, _ := instances[0].(map[string]any)
	if uint64(first["id"].(float64)) != firstID {
		t.Fatalf("expected most recently updated instance first")
	}
	if first["messageCount"].(float64) != 3 {
		t.Fatalf("expected messageCount 3, got %v", first["messageCount"])
	}

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/chat/instances/%d", firstID), nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("get instance failed: %d", rec.Code)
	}
	detail := decodeJSON(t, rec)
	instanceOut, _ := detail["instance"].(map[string]any)
	messagesOut, _ := instanceOut["messages"].([]any)
	if len(messagesOut) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messagesOut))
	}

	rec = env.request(t, http.MethodGet, "/api/chat/instances/abc", nil, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on invalid id, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodDelete, fmt.Sprintf("/api/chat/instances/%d", firstID), nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete instance failed: %d", rec.Code)
	}
	var remaining int64
	env.conn.Model(&models.ChatMessage{}).Where("chat_instance_id = ?", firstID).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expected cascade delete of messages, %d left", remaining)
	}
	var count int64
	env.conn.Model(&models.ChatInstance{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected one remaining instance, got %d", count)
	}
}

func TestDeleteInstance_NotOwned(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	other, _ := createVerifiedUser(t, env.conn, "nick@example.com")
	_, cookie := createVerifiedUser(t, env.conn, "olga@example.com")

	foreign := models.ChatInstance{UserID: other.ID, Title: "Private"}
	if errCreate := env.conn.Create(&foreign).Error; errCreate != nil {
		t.Fatalf("create instance: %v", errCreate)
	}

	rec := env.request(t, http.MethodDelete, fmt.Sprintf("/api/chat/instances/%d", foreign.ID), nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting foreign instance, got %d", rec.Code)
	}

	var count int64
	env.conn.Model(&models.ChatInstance{}).Where("id = ?", foreign.ID).Count(&count)
	if count != 1 {
		t.Fatalf("foreign instance was deleted")
	}
}

func TestCreateCheckoutSession_NotConfigured(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	_, cookie := createVerifiedUser(t, env.conn, "pam@example.com")

	rec := env.request(t, http.MethodPost, "/api/stripe/create-checkout-session", gin.H{"amount": 2500}, cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without stripe key, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["error"] != "payments are not configured" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))

	rec := env.request(t, http.MethodPost, "/api/stripe/webhook", gin.H{"type": "checkout.session.completed"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unsigned webhook, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, llm.New(llm.Config{}))
	rec := env.request(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
