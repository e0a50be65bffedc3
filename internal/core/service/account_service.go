package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/metrics"
)

// ProtectedUserIDs cannot be deleted through the API.
var ProtectedUserIDs = map[int64]struct{}{1: {}, 2: {}}

// AccountService implements login and user administration.
type AccountService struct {
	repo      ports.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewAccountService(repo ports.UserRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AccountService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AccountService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, now: time.Now, log: log}
}

// Login checks the password and issues an access token. An unknown username
// yields domain.ErrUserNotFound, a wrong password domain.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("unknown_user").Inc()
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	return token, user, nil
}

// CreateUser hashes the password and stores the account. Username and email
// must be unique.
func (s *AccountService) CreateUser(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	role := in.UserType
	if role == "" {
		role = domain.RoleDefault
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidInput
	}

	if existing, err := s.repo.FindByUsername(ctx, in.Username); err == nil && existing != nil {
		return nil, domain.ErrUserExists
	}
	if in.Email != nil && *in.Email != "" {
		if existing, err := s.repo.FindByEmail(ctx, *in.Email); err == nil && existing != nil {
			return nil, domain.ErrEmailExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		UserType:     role,
		PasswordHash: string(hash),
		CreatedBy:    createdBy,
		CreatedAt:    s.now().UTC(),
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.UsersCreatedTotal.WithLabelValues(string(created.UserType)).Inc()
	s.log.Info().Int64("user_id", created.ID).Str("username", created.Username).Str("user_type", string(created.UserType)).Msg("user created")
	return created, nil
}

func (s *AccountService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// UpdateUser applies the non-nil fields of in.
func (s *AccountService) UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error) {
	if in.UserType != nil && !in.UserType.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if in.Username != nil {
		if existing, err := s.repo.FindByUsername(ctx, *in.Username); err == nil && existing.ID != id {
			return nil, domain.ErrUserExists
		}
	}
	if in.Email != nil && *in.Email != "" {
		if existing, err := s.repo.FindByEmail(ctx, *in.Email); err == nil && existing.ID != id {
			return nil, domain.ErrEmailExists
		}
	}
	if in.Empty() {
		return s.repo.FindByID(ctx, id)
	}
	return s.repo.Update(ctx, id, in)
}

// DeleteUser removes an account. Protected accounts yield domain.ErrProtectedUser.
func (s *AccountService) DeleteUser(ctx context.Context, id int64) error {
	if _, protected := ProtectedUserIDs[id]; protected {
		return domain.ErrProtectedUser
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// EnsureAdmin creates the bootstrap admin when no account has its username.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password, email string) (*domain.User, error) {
	if existing, err := s.repo.FindByUsername(ctx, username); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	fullName := "Administrator"
	in := domain.CreateUserInput{
		Username: username,
		Password: password,
		FullName: &fullName,
		UserType: domain.RoleAdmin,
	}
	if email != "" {
		in.Email = &email
	}
	user, err := s.CreateUser(ctx, in, 1)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("username", username).Msg("admin user ensured")
	return user, nil
}

func (s *AccountService) generateToken(user *domain.User) (string, error) {
	now := s.now()
	claims := domain.Claims{
		UserID:   user.ID,
		Username: user.Username,
		UserType: string(user.UserType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
