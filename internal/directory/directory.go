package directory

import (
	"context"
	"errors"
)

// ErrAuth signals bad credentials or a missing directory entry.
var ErrAuth = errors.New("directory: authentication failed")

// Attributes are the identity attributes returned by the corporate directory
// after a successful bind.
type Attributes struct {
	DisplayName string
	Title       string
	Department  string
	Phone       string
}

// Resolver authenticates a user against the corporate directory and returns
// their identity attributes. Implemented by the LDAP client and by the
// bypass stub used in environments without directory access.
type Resolver interface {
	Authenticate(ctx context.Context, username, password string) (*Attributes, error)
}
