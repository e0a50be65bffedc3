package domain

import "time"

// User is an account managed by the accounts API.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	FullName  *string   `json:"full_name,omitempty"`
	UserType  Role      `json:"user_type"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	PasswordHash string `json:"-"`
}

// CreateUserInput is the body of POST /api/users.
type CreateUserInput struct {
	Username string  `json:"username" validate:"required,min=1,max=150"`
	Password string  `json:"password" validate:"required,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=254"`
	UserType Role    `json:"user_type" validate:"required,oneof=default admin"`
}

// UpdateUserInput is the body of PUT /api/users/{id}. Nil fields are left
// untouched.
type UpdateUserInput struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=1,max=150"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=254"`
	UserType *Role   `json:"user_type,omitempty" validate:"omitempty,oneof=default admin"`
}

// Empty reports whether the update carries no field.
func (in UpdateUserInput) Empty() bool {
	return in.Username == nil && in.Email == nil && in.FullName == nil && in.UserType == nil
}

// Credentials is the body of POST /api/login.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
