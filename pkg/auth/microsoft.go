package auth

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/onetaskassistant/onetask/pkg/config"
)

const ProviderMicrosoft = "microsoft"

// MicrosoftConfig builds a public-client config for the Microsoft identity
// platform. No client secret is involved; PKCE protects the exchange.
func MicrosoftConfig(cfg config.AuthConfig) *oauth2.Config {
	endpoint := microsoft.AzureADEndpoint(cfg.Tenant)
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint,
		RedirectURL: fmt.Sprintf("http://localhost:%d", cfg.RedirectPort),
		Scopes:      cfg.Scopes,
	}
}

func NewMicrosoft(cfg config.AuthConfig, tokenDir string, logger *zap.Logger, prompt io.Writer) *Provider {
	return &Provider{
		Name:    ProviderMicrosoft,
		Config:  MicrosoftConfig(cfg),
		Store:   TokenStore{Dir: tokenDir},
		Logger:  logger,
		Prompt:  prompt,
		Options: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")},
	}
}

// Identity is the signed-in account as described by the id_token.
type Identity struct {
	ObjectID string
	TenantID string
	Name     string
	Username string
}

// AccountID is the compound "oid.tid" account identifier.
func (i Identity) AccountID() string {
	if i.TenantID == "" {
		return i.ObjectID
	}
	return i.ObjectID + "." + i.TenantID
}

// ParseIDToken reads the identity claims from an id_token. The signature is
// not checked: the token is only ever taken from the token endpoint response.
func ParseIDToken(raw string) (*Identity, error) {
	if raw == "" {
		return nil, &Error{Code: CodeInvalidIDToken, Err: fmt.Errorf("no id_token in token response")}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, &Error{Code: CodeInvalidIDToken, Err: err}
	}

	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	id := &Identity{
		ObjectID: str("oid"),
		TenantID: str("tid"),
		Name:     str("name"),
		Username: str("preferred_username"),
	}
	if id.ObjectID == "" {
		id.ObjectID, _ = claims.GetSubject()
	}
	if id.ObjectID == "" {
		return nil, &Error{Code: CodeInvalidIDToken, Err: fmt.Errorf("id_token has neither oid nor sub")}
	}
	return id, nil
}

// SimpleUserID strips the tenant suffix from a compound account id:
// "oid.tid" becomes "oid". Ids without a dot are returned unchanged.
func SimpleUserID(accountID string) string {
	oid, _, _ := strings.Cut(accountID, ".")
	return oid
}
