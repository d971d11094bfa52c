package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kbukum/base-api/auth/jwt"
	"github.com/kbukum/base-api/auth/password"
	apperrors "github.com/kbukum/base-api/errors"
	"github.com/kbukum/base-api/mail"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore keeps users in a map keyed by email.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]User)}
}

func (s *fakeStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return User{}, apperrors.NotFound("user", id)
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, apperrors.NotFound("user", "").WithDetail("email", email)
	}
	return u, nil
}

func (s *fakeStore) Create(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return User{}, apperrors.AlreadyExists("user").WithDetail("email", user.Email)
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.Email] = user
	return user, nil
}

func (s *fakeStore) Update(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.Email]
	if !ok {
		return apperrors.NotFound("user", "").WithDetail("email", user.Email)
	}
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.Role = user.Role
	existing.OrgID = user.OrgID
	s.users[user.Email] = existing
	return nil
}

func (s *fakeStore) DeleteByEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		return apperrors.NotFound("user", "").WithDetail("email", email)
	}
	delete(s.users, email)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *jwt.Service) {
	t.Helper()

	store := newFakeStore()
	hasher := password.NewBcryptHasher(4, 8)
	codec, err := jwt.NewService(&jwt.Config{Secret: "handlers-secret"})
	if err != nil {
		t.Fatalf("jwt.NewService failed: %v", err)
	}
	mailer, err := mail.NewSender(&mail.Config{})
	if err != nil {
		t.Fatalf("mail.NewSender failed: %v", err)
	}

	router := gin.New()
	handlers := NewHandlers(store, hasher, codec, mailer)
	passGate := func(c *gin.Context) { c.Next() }
	handlers.RegisterRoutes(router, passGate)
	return router, store, codec
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func createUser(t *testing.T, router *gin.Engine, email string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/users", CreateUserRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "correct horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestCreateUserSanitizesResponse(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/users", CreateUserRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "correct horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Error("response leaks password field")
	}

	stored, err := store.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if stored.Password == "correct horse" || stored.Password == "" {
		t.Error("password stored unhashed or empty")
	}
	if stored.Role != "admin" {
		t.Errorf("default role = %q, want admin", stored.Role)
	}
}

func TestCreateUserTrimsNameFields(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/users", CreateUserRequest{
		FirstName: "  Ada\t",
		LastName:  "Love\x00lace",
		Email:     "ada@example.com",
		Password:  "correct horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	stored, err := store.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if stored.FirstName != "Ada" || stored.LastName != "Lovelace" {
		t.Errorf("stored name = %q %q, want trimmed", stored.FirstName, stored.LastName)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	router, _, _ := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	w := doJSON(t, router, http.MethodPost, "/users", CreateUserRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "correct horse",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	cases := map[string]CreateUserRequest{
		"missing email":  {FirstName: "A", LastName: "B", Password: "long enough"},
		"bad email":      {FirstName: "A", LastName: "B", Email: "nope", Password: "long enough"},
		"short password": {FirstName: "A", LastName: "B", Email: "a@example.com", Password: "short"},
		"no first name":  {LastName: "B", Email: "a@example.com", Password: "long enough"},
	}
	for name, req := range cases {
		if w := doJSON(t, router, http.MethodPost, "/users", req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestGetUserByEmail(t *testing.T) {
	router, _, _ := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	w := doJSON(t, router, http.MethodGet, "/users/ada@example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data SanitizedUser `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Email != "ada@example.com" || resp.Data.FirstName != "Ada" {
		t.Errorf("unexpected user %+v", resp.Data)
	}
}

func TestGetUserNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/users/ghost@example.com", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateUser(t *testing.T) {
	router, store, _ := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	w := doJSON(t, router, http.MethodPut, "/users", UpdateUserRequest{
		Email:     "ada@example.com",
		FirstName: "Augusta",
		LastName:  "King",
		Role:      "admin",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	stored, err := store.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if stored.FirstName != "Augusta" || stored.LastName != "King" {
		t.Errorf("update not applied: %+v", stored)
	}
	if stored.Password == "" {
		t.Error("update wiped the password hash")
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/users", UpdateUserRequest{
		Email:     "ghost@example.com",
		FirstName: "No",
		LastName:  "One",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	router, _, _ := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	if w := doJSON(t, router, http.MethodDelete, "/users/ada@example.com", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/users/ada@example.com", nil); w.Code != http.StatusNotFound {
		t.Errorf("user still present after delete")
	}
	if w := doJSON(t, router, http.MethodDelete, "/users/ada@example.com", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	router, _, codec := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	w := doJSON(t, router, http.MethodPost, "/auth", LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := codec.Verify(resp.Data.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Role != "admin" {
		t.Errorf("token role = %q, want admin", claims.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)
	createUser(t, router, "ada@example.com")

	w := doJSON(t, router, http.MethodPost, "/auth", LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong horse!",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth", LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever works",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestLoginThrottled(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// Malformed bodies never reach the password check, so the burst drains
	// in microseconds and the bucket cannot refill mid-test.
	got429 := false
	for i := 0; i < loginBurst+1; i++ {
		w := doJSON(t, router, http.MethodPost, "/auth", map[string]string{})
		if w.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("request %d: status = %d, want 400 or 429", i, w.Code)
		}
	}
	if !got429 {
		t.Error("burst exhausted without a 429")
	}
}
