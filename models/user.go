package models

// User is a sync-server account. Password carries the plaintext credential
// on register/login requests only; PasswordHash is the stored bcrypt digest
// and never leaves the server.
type User struct {
	UserID       int64  `json:"userId,omitempty"`
	Login        string `json:"login"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"-"`
}
