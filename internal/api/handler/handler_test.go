package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/orderdesk/internal/api/middleware"
	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/pkg/validation"
)

type stubAccountService struct {
	loginFn  func(ctx context.Context, username, password string) (string, *domain.User, error)
	createFn func(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error)
	getFn    func(ctx context.Context, id int64) (*domain.User, error)
	listFn   func(ctx context.Context) ([]*domain.User, error)
	updateFn func(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (s *stubAccountService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAccountService) CreateUser(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error) {
	return s.createFn(ctx, in, createdBy)
}

func (s *stubAccountService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubAccountService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubAccountService) UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubAccountService) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}

func (s *stubAccountService) EnsureAdmin(ctx context.Context, username, password, email string) (*domain.User, error) {
	return nil, nil
}

type stubOrderService struct {
	createFn func(ctx context.Context, in domain.CreateOrderInput, userID int64) (*domain.Order, error)
	listFn   func(ctx context.Context, userID int64) ([]*domain.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, in domain.CreateOrderInput, userID int64) (*domain.Order, error) {
	return s.createFn(ctx, in, userID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.listFn(ctx, userID)
}

// newContext builds an echo context with the validator installed and, when
// userID is non-zero, the identity the Auth middleware would inject.
func newContext(method, target, body string, userID int64, role domain.Role) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validation.New()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set(middleware.CtxUserID, userID)
		c.Set(middleware.CtxUserType, role)
	}
	return c, rec
}
