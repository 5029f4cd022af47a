package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"lokapos/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	cashier, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "kasirbaru" {
		t.Fatalf("unexpected username %s", cashier.Username)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "kasirbaru" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected cashier to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected cashier password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(context.Background(), domain.LoginRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed cashier failed: %v", err)
	}
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse valid token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("a-different-secret", time.Hour, store)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	if _, err := manager.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

type ctxCheckedUserStore struct {
	userStoreStub
}

func (s *ctxCheckedUserStore) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.userStoreStub.ListUsers(ctx)
}

func TestLoginSurvivesFailedStoreSync(t *testing.T) {
	store := &ctxCheckedUserStore{userStoreStub: userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}}

	// The cache warms at construction; a dead request context on login
	// must fall back to it instead of failing the login.
	manager := NewAuthManager("test-secret", time.Hour, store)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := manager.Login(canceled, domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login with stale cache failed: %v", err)
	}
}

func TestCreateCashierRejectsWeakInput(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	if _, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{Username: "ab", Password: "pass1234"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{Username: "kasir baru", Password: "pass1234"}); err == nil {
		t.Fatalf("expected username with spaces to be rejected")
	}
	if _, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{Username: "kasirbaru", Password: "12345"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}
