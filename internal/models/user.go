package models

import "time"

// User is an account row. PasswordHash is only ever written through a
// PasswordHasher; the plaintext never reaches this struct.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// LoginForm is the payload of POST /login.
type LoginForm struct {
	Username   string `form:"username" validate:"required"`
	Password   string `form:"password" validate:"required"`
	RememberMe bool   `form:"remember_me"`
}

// RegistrationForm is the payload of POST /register.
type RegistrationForm struct {
	FirstName string `form:"first_name" validate:"required,max=30"`
	LastName  string `form:"last_name" validate:"required,max=30"`
	Username  string `form:"username" validate:"required,max=64"`
	Email     string `form:"email" validate:"required,email,max=120"`
	Password  string `form:"password" validate:"required,max=72"`
	Password2 string `form:"password2" validate:"required,eqfield=Password"`
}

// ResetPasswordRequestForm is the payload of POST /reset_password_request.
type ResetPasswordRequestForm struct {
	Email string `form:"email" validate:"required,email"`
}

// ResetPasswordForm is the payload of POST /reset_password/{token}.
type ResetPasswordForm struct {
	Password  string `form:"password" validate:"required,max=72"`
	Password2 string `form:"password2" validate:"required,eqfield=Password"`
}
