package users

import (
	"golang.org/x/crypto/bcrypt"
)

// UserType is the role flag carried by every account
type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeAdmin    UserType = "admin"
)

// Status is the account status
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type User struct {
	ID              string   `json:"id" bson:"_id"`
	FirstName       string   `json:"firstName,omitempty" bson:"first_name,omitempty"`
	LastName        string   `json:"lastName,omitempty" bson:"last_name,omitempty"`
	Email           string   `json:"email" bson:"email"`
	PhoneNumber     string   `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
	Location        string   `json:"location,omitempty" bson:"location,omitempty"`
	UserType        UserType `json:"userType" bson:"user_type"`
	Status          Status   `json:"status" bson:"status"`
	HasNotification bool     `json:"hasNotification" bson:"has_notification"`
	HasNotice       bool     `json:"hasNotice" bson:"has_notice"`
	PasswordHash    string   `json:"-" bson:"password_hash"` // never serialize
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.UserType == UserTypeAdmin
}

// ApplyDefaults fills the role and status for a newly registered user
func (u *User) ApplyDefaults() {
	if u.UserType == "" {
		u.UserType = UserTypeCustomer
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
}

// ParseUserType returns the matching role; anything unrecognised is a customer.
func ParseUserType(s string) UserType {
	if UserType(s) == UserTypeAdmin {
		return UserTypeAdmin
	}
	return UserTypeCustomer
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
