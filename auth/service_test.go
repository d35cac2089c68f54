package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestService_LoginAndVerifyToken(t *testing.T) {
	companyID := "company-7"
	repo := newFakeRepository(User{
		ID:        "user-1",
		Email:     "laura@empresa.mx",
		FullName:  "Laura Admin",
		CompanyID: &companyID,
		Role:      RoleCompanyAdmin,
	}, "supersafe")
	svc := NewService(repo, "test-secret")

	ctx := context.Background()
	resp, err := svc.Login(ctx, LoginRequest{Email: "laura@empresa.mx", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != "user-1" {
		t.Fatalf("login: expected user id %q got %q", "user-1", resp.User.ID)
	}

	identity, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Fatalf("verify token: expected user id %q got %q", "user-1", identity.UserID)
	}
	if identity.Role != RoleCompanyAdmin {
		t.Fatalf("verify token: expected role %s got %s", RoleCompanyAdmin, identity.Role)
	}
	if identity.CompanyID != companyID {
		t.Fatalf("verify token: expected company %q got %q", companyID, identity.CompanyID)
	}
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	repo := newFakeRepository(User{ID: "user-1", Email: "pedro@asesores.mx", Role: RoleAdvisor}, "correcthorse")
	svc := NewService(repo, "test-secret")

	ctx := context.Background()
	if _, err := svc.Login(ctx, LoginRequest{Email: "pedro@asesores.mx", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "nobody@asesores.mx", Password: "correcthorse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestService_VerifyTokenRejectsWrongSecret(t *testing.T) {
	repo := newFakeRepository(User{ID: "user-1", Email: "pedro@asesores.mx", Role: RoleAdvisor}, "correcthorse")
	svc := NewService(repo, "test-secret")

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "pedro@asesores.mx", Password: "correcthorse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewService(repo, "other-secret")
	if _, err := other.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestIdentity_ScopeAndWorkflowRole(t *testing.T) {
	advisor := Identity{UserID: "adv-1", Role: RoleAdvisor}
	if got := advisor.Scope(); got.AdvisorID != "adv-1" || got.CompanyID != "" {
		t.Fatalf("unexpected advisor scope %+v", got)
	}

	company := Identity{UserID: "usr-2", Role: RoleCompanyAdmin, CompanyID: "company-7"}
	if got := company.Scope(); got.CompanyID != "company-7" || got.AdvisorID != "" {
		t.Fatalf("unexpected company scope %+v", got)
	}

	admin := Identity{UserID: "usr-3", Role: RoleAdmin}
	if got := admin.Scope(); got.AdvisorID != "" || got.CompanyID != "" {
		t.Fatalf("admin scope must be unrestricted, got %+v", got)
	}
	if admin.WorkflowRole() != advisor.WorkflowRole() {
		t.Fatal("admins act with advisor authority")
	}
}

type fakeRepository struct {
	users map[string]User
}

func newFakeRepository(user User, password string) *fakeRepository {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	user.PasswordHash = string(hash)
	return &fakeRepository{users: map[string]User{user.Email: user}}
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}
