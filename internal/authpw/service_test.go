package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"

	"estate/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	lookupErr  error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if m.lookupErr != nil {
		return store.User{}, m.lookupErr
	}
	if userID, ok := m.emailIndex[strings.ToLower(email)]; ok {
		return m.users[userID], nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[strings.ToLower(user.Email)] = user.ID
	return nil
}

func newTestService(users UserStore) *Service {
	svc := NewService(users)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := newTestService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{
			Name:     "Olivia Owner",
			Email:    " Olivia@Example.com ",
			Password: "password123",
			Role:     "owner",
			Phone:    "+91 90000 00001",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID == "" || !strings.HasPrefix(user.ID, "usr_") {
			t.Errorf("expected usr_ id, got %q", user.ID)
		}
		if user.Email != "olivia@example.com" {
			t.Errorf("expected normalized email, got %q", user.Email)
		}
		if user.Role != store.RoleOwner {
			t.Errorf("expected owner role, got %q", user.Role)
		}
		if user.PasswordHash == "password123" || user.PasswordHash == "" {
			t.Error("expected password to be hashed")
		}
	})

	t.Run("role defaults to buyer", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{Name: "Bilal", Email: "bilal@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Role != store.RoleBuyer {
			t.Errorf("expected buyer, got %q", user.Role)
		}
	})

	cases := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{name: "duplicate email", req: SignUpRequest{Name: "Other", Email: "OLIVIA@example.com", Password: "password123"}, want: ErrEmailTaken},
		{name: "short password", req: SignUpRequest{Name: "Short", Email: "short@example.com", Password: "short"}, want: ErrWeakPassword},
		{name: "missing fields", req: SignUpRequest{}, want: ErrMissingFields},
		{name: "bad email", req: SignUpRequest{Name: "Bad", Email: "not-an-email", Password: "password123"}, want: ErrInvalidEmail},
		{name: "admin self-registration", req: SignUpRequest{Name: "Root", Email: "root@example.com", Password: "password123", Role: "admin"}, want: ErrInvalidRole},
		{name: "unknown role", req: SignUpRequest{Name: "Lan", Email: "lan@example.com", Password: "password123", Role: "landlord"}, want: ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignUpSurfacesStoreErrors(t *testing.T) {
	mockStore := newMockUserStore()
	mockStore.lookupErr = errors.New("connection reset")
	svc := newTestService(mockStore)

	_, err := svc.SignUp(context.Background(), SignUpRequest{Name: "A", Email: "a@example.com", Password: "password123"})
	if err == nil || errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := newTestService(mockStore)

	if _, err := svc.SignUp(ctx, SignUpRequest{Name: "Test User", Email: "test@example.com", Password: "password123", Role: "broker"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "TEST@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "test@example.com" || user.Role != store.RoleBroker {
			t.Errorf("unexpected user %+v", user)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "test@example.com", Password: "wrongpassword"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("empty credentials", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
