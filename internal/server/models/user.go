package models

import "time"

// User is the decrypted, in-memory shape of an account. It never carries
// the password digest out of the service layer.
type User struct {
	ID         int64      `json:"id"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	UserName   string     `json:"username"`
	Image      string     `json:"image,omitempty"`
	LastAccess *time.Time `json:"lastAccess,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// UserRow is the persisted form: identity fields are ciphertext and
// EmailHash is the searchable digest of the normalized e-mail.
type UserRow struct {
	ID           int64
	FullNameEnc  string
	EmailEnc     string
	EmailHash    string
	UserName     string
	PasswordHash string
	Image        string
	LastAccess   *time.Time
	CreatedAt    time.Time
}

// UserBasic is what other members may see about a user.
type UserBasic struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
	Image    string `json:"image,omitempty"`
}
