package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// LDAPConfig holds directory connection configuration.
type LDAPConfig struct {
	URL          string // e.g. ldaps://ldap.example.com:636
	BindDN       string // service account DN
	BindPassword string
	BaseDN       string
	UserFilter   string // e.g. (mail=%s)
}

// LDAPResolver authenticates users against the corporate LDAP directory.
type LDAPResolver struct {
	cfg    LDAPConfig
	logger *zap.Logger
}

// NewLDAPResolver creates a new LDAP resolver.
func NewLDAPResolver(cfg LDAPConfig, logger *zap.Logger) *LDAPResolver {
	if cfg.UserFilter == "" {
		cfg.UserFilter = "(mail=%s)"
	}
	return &LDAPResolver{cfg: cfg, logger: logger}
}

// Authenticate binds as the service account, locates the user entry, then
// re-binds with the user's own credentials. A missing entry and a failed
// bind are both surfaced as ErrAuth; no partial result is returned.
func (r *LDAPResolver) Authenticate(ctx context.Context, username, password string) (*Attributes, error) {
	conn, err := ldap.DialURL(r.cfg.URL)
	if err != nil {
		r.logger.Error("Failed to dial LDAP server", zap.String("url", r.cfg.URL), zap.Error(err))
		return nil, fmt.Errorf("dial ldap: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}

	if err := conn.Bind(r.cfg.BindDN, r.cfg.BindPassword); err != nil {
		r.logger.Error("Service account bind failed", zap.Error(err))
		return nil, fmt.Errorf("service bind: %w", err)
	}

	searchReq := ldap.NewSearchRequest(
		r.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		fmt.Sprintf(r.cfg.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn", "displayName", "title", "department", "telephoneNumber"},
		nil,
	)

	result, err := conn.Search(searchReq)
	if err != nil {
		r.logger.Error("LDAP search failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if len(result.Entries) == 0 {
		r.logger.Warn("User not found in directory", zap.String("username", username))
		return nil, ErrAuth
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		r.logger.Warn("User bind failed", zap.String("username", username))
		return nil, ErrAuth
	}

	return &Attributes{
		DisplayName: entry.GetAttributeValue("displayName"),
		Title:       entry.GetAttributeValue("title"),
		Department:  entry.GetAttributeValue("department"),
		Phone:       entry.GetAttributeValue("telephoneNumber"),
	}, nil
}
