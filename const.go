package oauth2

// ResponseType the type of authorization request
type ResponseType string

// define the type of authorization request
const (
	Code ResponseType = "code"
)

func (rt ResponseType) String() string {
	return string(rt)
}

// GrantType authorization model
type GrantType string

// define authorization model
const (
	AuthorizationCode   GrantType = "authorization_code"
	PasswordCredentials GrantType = "password"
	Refreshing          GrantType = "refresh_token"
)

func (gt GrantType) String() string {
	return string(gt)
}

// TokenTypeBearer is the only token type issued by the server.
const TokenTypeBearer = "Bearer"
