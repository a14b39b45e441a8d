package model

import "time"

// Role is an account's role
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account represents a registered user of the file-sharing service
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose password hash
	Role         Role      `json:"role"`
	Credits      int       `json:"credits"`
	ReferralCode string    `json:"referralCode"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the account carries the administrative role.
// Role alone never grants administrative access; see session.Guard.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CreditTransaction records a change to an account's credit balance
type CreditTransaction struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	Amount          int       `json:"amount"`
	TransactionType string    `json:"transactionType"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Credit transaction types
const (
	TransactionAdminSetup      = "admin_setup"
	TransactionAdminAdjustment = "admin_adjustment"
)
