package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func replyJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestLogin_ReturnsAccessToken(t *testing.T) {
	var got loginRequest
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		replyJSON(w, http.StatusCreated, `{"access_token":"tok","token_type":"bearer"}`)
	})

	token, err := New(srv.URL+"/").Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token != "tok" {
		t.Fatalf("expected token tok, got %q", token)
	}
	if got.Username != "alice" || got.Password != "pw" {
		t.Fatalf("unexpected login body: %+v", got)
	}
}

func TestLogin_MissingTokenIsNetworkError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusCreated, `{}`)
	})

	_, err := New(srv.URL).Login(context.Background(), "alice", "pw")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		message string
	}{
		{"not found", 404, `{"detail":"User not found with this username."}`, isAuthError, "User not found with this username."},
		{"wrong password", 401, `{"detail":"Password is wrong."}`, isAuthError, "Password is wrong."},
		{"empty body", 403, ``, isAuthError, "Login failed"},
		{"validation list", 422, `{"detail":[{"msg":"field required"}]}`, isValidationError, "field required"},
		{"server error", 500, `{"detail":"boom"}`, isNetworkError, "login: server returned status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				replyJSON(w, tt.status, tt.body)
			})
			_, err := New(srv.URL).Login(context.Background(), "alice", "pw")
			if !tt.check(err) {
				t.Fatalf("unexpected error type: %T %v", err, err)
			}
			if err.Error() != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, err.Error())
			}
		})
	}
}

func TestAuthenticatedCalls_SendHeaders(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer header, got %q", got)
		}
		if r.Header.Get(headerRequestID) == "" {
			t.Errorf("missing %s header", headerRequestID)
		}
		replyJSON(w, http.StatusOK, `[{"id":1,"address":"Main St 1","item":"Lamp","created_by":2}]`)
	})

	c := New(srv.URL, WithTokenSource(TokenSourceFunc(func() string { return "tok-1" })))
	orders, err := c.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(orders) != 1 || orders[0].Item != "Lamp" || orders[0].CreatedBy != 2 {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestCreateUser_SendsBody(t *testing.T) {
	var got map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		replyJSON(w, http.StatusCreated, `{"id":7,"username":"bob","user_type":"default"}`)
	})

	user, err := New(srv.URL).CreateUser(context.Background(), domain.CreateUserInput{
		Username: "bob",
		Password: "secret",
		UserType: domain.RoleDefault,
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.ID != 7 || user.UserType != domain.RoleDefault {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, ok := got["email"]; ok {
		t.Fatalf("nil email must be omitted, body %v", got)
	}
	if got["password"] != "secret" {
		t.Fatalf("password not sent, body %v", got)
	}
}

func TestDeleteUser_NoContent(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/users/3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := New(srv.URL).DeleteUser(context.Background(), 3); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
}

func TestAuthenticatedCalls_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"expired token", 401, isAuthorizationError},
		{"forbidden", 403, isAuthorizationError},
		{"bad request", 400, isValidationError},
		{"not found", 404, isValidationError},
		{"conflict", 409, isValidationError},
		{"unprocessable", 422, isValidationError},
		{"server error", 502, isNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				replyJSON(w, tt.status, `{"detail":"nope"}`)
			})
			_, err := New(srv.URL).GetUser(context.Background(), 1)
			if !tt.check(err) {
				t.Fatalf("unexpected error type: %T %v", err, err)
			}
		})
	}
}

func TestConflictCarriesServerDetail(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusConflict, `{"detail":"There is already another user with this username."}`)
	})

	_, err := New(srv.URL).CreateUser(context.Background(), domain.CreateUserInput{Username: "bob", Password: "pw"})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Status != http.StatusConflict || vErr.Message != "There is already another user with this username." {
		t.Fatalf("unexpected validation error: %+v", vErr)
	}
}

func TestForbiddenUnwrapsToErrForbidden(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusForbidden, `{"detail":"Access forbidden."}`)
	})

	_, err := New(srv.URL).ListUsers(context.Background())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).ListOrders(context.Background())
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestCancelledContextIsReachable(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).ListOrders(ctx)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected deadline wrapped in a transport error, got %v", err)
	}
}

func TestInvalidResponseBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusOK, `not json`)
	})

	_, err := New(srv.URL).ListUsers(context.Background())
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func isAuthError(err error) bool {
	var e *domain.AuthError
	return errors.As(err, &e)
}

func isAuthorizationError(err error) bool {
	var e *domain.AuthorizationError
	return errors.As(err, &e)
}

func isValidationError(err error) bool {
	var e *domain.ValidationError
	return errors.As(err, &e)
}

func isNetworkError(err error) bool {
	var e *domain.NetworkError
	return errors.As(err, &e)
}
