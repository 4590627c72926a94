package entity

import (
	"strings"
	"time"
)

// User mirrors a row of the users table, see migrations/001_create_users.sql.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// Normalize trims the name and lower-cases the email.
func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
}

// UpdateUserRequest is the body of PATCH /users/:id. Nil fields are left
// unchanged; any other JSON keys are ignored.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (r *UpdateUserRequest) Normalize() {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}
	if r.Email != nil {
		email := normalizeEmail(*r.Email)
		r.Email = &email
	}
}

// Empty reports whether the request carries no updatable field.
func (r *UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Email == nil
}

// UserPage is one page of GET /users. Count is the size of this page and
// Total the number of users stored.
type UserPage struct {
	Users  []User `json:"users"`
	Count  int    `json:"count"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
