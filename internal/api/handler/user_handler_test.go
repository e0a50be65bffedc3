package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

func TestUserHandler_Create_DefaultsUserType(t *testing.T) {
	stub := &stubAccountService{
		createFn: func(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error) {
			if in.UserType != domain.RoleDefault {
				t.Fatalf("expected default user_type, got %q", in.UserType)
			}
			if createdBy != 1 {
				t.Fatalf("expected createdBy 1, got %d", createdBy)
			}
			if in.Email != nil {
				t.Fatalf("empty email should be dropped, got %q", *in.Email)
			}
			return &domain.User{ID: 3, Username: in.Username, UserType: in.UserType}, nil
		},
	}
	handler := NewUserHandler(stub)

	c, rec := newContext(http.MethodPost, "/api/users", `{"username":"bob","password":"pw","email":""}`, 1, domain.RoleAdmin)
	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var user domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if user.ID != 3 || user.Username != "bob" || user.UserType != domain.RoleDefault {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserHandler_Create_RejectsUnknownUserType(t *testing.T) {
	stub := &stubAccountService{
		createFn: func(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewUserHandler(stub)

	c, _ := newContext(http.MethodPost, "/api/users", `{"username":"bob","password":"pw","user_type":"root"}`, 1, domain.RoleAdmin)
	err := handler.Create(c)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUserHandler_Create_RequiresIdentity(t *testing.T) {
	handler := NewUserHandler(&stubAccountService{})

	c, _ := newContext(http.MethodPost, "/api/users", `{"username":"bob","password":"pw"}`, 0, "")
	err := handler.Create(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestUserHandler_Get_BadID(t *testing.T) {
	handler := NewUserHandler(&stubAccountService{})

	c, _ := newContext(http.MethodGet, "/api/users/x", "", 1, domain.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("x")

	var he *echo.HTTPError
	if err := handler.Get(c); !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestUserHandler_Update_PassesPartialInput(t *testing.T) {
	stub := &stubAccountService{
		updateFn: func(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error) {
			if id != 7 {
				t.Fatalf("expected id 7, got %d", id)
			}
			if in.FullName == nil || *in.FullName != "Bob B" || in.Username != nil {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: 7, Username: "bob", FullName: in.FullName, UserType: domain.RoleDefault}, nil
		},
	}
	handler := NewUserHandler(stub)

	c, rec := newContext(http.MethodPut, "/api/users/7", `{"full_name":"Bob B"}`, 1, domain.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserHandler_Delete(t *testing.T) {
	var deleted int64
	stub := &stubAccountService{
		deleteFn: func(ctx context.Context, id int64) error {
			if id <= 2 {
				return domain.ErrProtectedUser
			}
			deleted = id
			return nil
		},
	}
	handler := NewUserHandler(stub)

	c, rec := newContext(http.MethodDelete, "/api/users/5", "", 1, domain.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := handler.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || deleted != 5 {
		t.Fatalf("expected 204 and delete of 5, got %d / %d", rec.Code, deleted)
	}

	c, _ = newContext(http.MethodDelete, "/api/users/1", "", 1, domain.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := handler.Delete(c); !errors.Is(err, domain.ErrProtectedUser) {
		t.Fatalf("expected ErrProtectedUser, got %v", err)
	}
}
