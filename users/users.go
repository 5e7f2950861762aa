package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the portal-facing role assigned to a user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCustomer   Role = "customer"
	RoleReseller   Role = "reseller"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
)

// User is a record from the platform's user directory. The session lifecycle
// treats it as read-only apart from login bookkeeping.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Permissions   []string  `json:"permissions,omitempty"`
	TenantID      string    `json:"tenantId,omitempty"`
	AccountNumber string    `json:"accountNumber,omitempty"` // Customer billing account reference
	PasswordHash  string    `json:"-"`                       // Never serialize
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	LastLogin     time.Time `json:"lastLogin,omitempty"`
}

// HasPermission reports whether the user carries the named permission.
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
