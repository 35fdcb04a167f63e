package capability

import (
	"deliveryService/internal/apperr"
	"deliveryService/models"
)

// Keyring holds one signing key per role. Tokens for a role are only ever signed
// with that role's key.
type Keyring struct {
	Customers string
	Riders    string
}

// ForRole returns the raw key for role. An unconfigured key is an Internal error.
func (k Keyring) ForRole(role models.Role) (string, error) {
	var raw string
	switch role {
	case models.RoleCustomer:
		raw = k.Customers
	case models.RoleRider:
		raw = k.Riders
	default:
		return "", apperr.New(apperr.Unauthorized, "no signing key for role %s", role)
	}
	if raw == "" {
		return "", apperr.New(apperr.Internal, "signing key for role %s is not configured", role)
	}
	return raw, nil
}

// IssueFor mints a token for username under role, selecting the key and the
// capability list that belong to role.
func (i *Issuer) IssueFor(keys Keyring, role models.Role, username string, orderIDs []int64) (string, error) {
	raw, err := keys.ForRole(role)
	if err != nil {
		return "", err
	}
	caps, err := CapabilitiesFor(role)
	if err != nil {
		return "", err
	}
	return i.Issue(raw, username, orderIDs, caps)
}
