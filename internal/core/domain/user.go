package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSeller     bool      `json:"is_seller"`
	CartID       int64     `json:"cart_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsSeller bool   `json:"is_seller"`
}
