package models

import (
	"fmt"
	"strings"
)

// Role is the kind of actor behind an authenticated request.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a stored or user-supplied role name into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleRider, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is an account that can authenticate against the service.
// It maps to the `users` table in SQLite and the users table in DynamoDB.
type User struct {
	Username     string `db:"username" json:"username" dynamodbav:"username"`
	Role         Role   `db:"role" json:"role" dynamodbav:"role"`
	PasswordHash string `db:"password_hash" json:"-" dynamodbav:"passwordHash"`
	Salt         string `db:"salt" json:"-" dynamodbav:"salt"`
}
