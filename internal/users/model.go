package users

import (
	"errors"
	"strings"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// Role is authoritative in the profile store, never in a client-held claim.
type Role string

const (
	RoleNone         Role = ""
	RoleIndividual   Role = "particulier"
	RoleProfessional Role = "professionnel"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleIndividual || r == RoleProfessional || r == RoleAdmin
}

func (r Role) Admin() bool { return r == RoleAdmin }

// User is a profile row. The id is the identity provider's uid: both stores
// share the same value.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	FirstName     *string   `json:"first_name,omitempty"`
	LastName      *string   `json:"last_name,omitempty"`
	CompanyName   *string   `json:"company_name,omitempty"`
	StreetAddress string    `json:"street_address"`
	City          string    `json:"city"`
	PostalCode    string    `json:"postal_code"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidateNew checks a signup profile. Name and company name are mutually
// exclusive by role, and admin can never be self-assigned at signup.
func (u *User) ValidateNew() error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("id required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email required")
	}
	switch u.Role {
	case RoleIndividual:
		if u.FirstName == nil || u.LastName == nil {
			return errors.New("first and last name required for individuals")
		}
		if u.CompanyName != nil {
			return errors.New("company name not allowed for individuals")
		}
	case RoleProfessional:
		if u.CompanyName == nil || strings.TrimSpace(*u.CompanyName) == "" {
			return errors.New("company name required for professionals")
		}
	case RoleAdmin:
		return errors.New("admin role cannot be self-assigned")
	default:
		return errors.New("unknown role")
	}
	return nil
}
