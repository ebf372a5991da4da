package app

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and deliberately does not
	// distinguish unknown accounts from wrong passwords.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrSignupFieldsMissing = errors.New("name, email and password are required")

	// ErrNotOwned gates content downloads: only an Owned access state may
	// resolve a download URL.
	ErrNotOwned = errors.New("book not owned")

	ErrNoContent = errors.New("book has no downloadable content")
)
