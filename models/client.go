package models

import "crypto/subtle"

// Client client model
type Client struct {
	ID           string
	Secret       string
	RedirectURIs []string
	Scope        Scope
}

// GetID client id
func (c *Client) GetID() string {
	return c.ID
}

// GetSecret client secret
func (c *Client) GetSecret() string {
	return c.Secret
}

// VerifySecret compares secret with the registered one in constant time.
func (c *Client) VerifySecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

// HasRedirectURI reports whether uri exactly matches one of the registered
// redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, v := range c.RedirectURIs {
		if v == uri {
			return true
		}
	}
	return false
}

// DefaultRedirectURI is used when an authorization request omits redirect_uri
// and the client registered exactly one.
func (c *Client) DefaultRedirectURI() (string, bool) {
	if len(c.RedirectURIs) == 1 {
		return c.RedirectURIs[0], true
	}
	return "", false
}

// ProtectedResource identifies a resource server allowed to call the
// introspection endpoint.
type ProtectedResource struct {
	ID     string
	Secret string
}

// VerifySecret compares secret with the registered one in constant time.
func (r *ProtectedResource) VerifySecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(r.Secret), []byte(secret)) == 1
}
