package manage

import "time"

// Config configuration parameters
type Config struct {
	// Issuer is reported as "iss" by introspection.
	Issuer string
	// AccessTokenExp is the access token lifetime; 0 means no expiry.
	AccessTokenExp time.Duration
	// RefreshTokenExp is the refresh token lifetime; 0 means no expiry.
	RefreshTokenExp time.Duration
	// Refreshing controls what happens to existing tokens on refresh.
	Refreshing RefreshingConfig
}

// RefreshingConfig refresh token grant settings
type RefreshingConfig struct {
	// Issue a new refresh token on every refresh and delete the presented one.
	// When false the presented refresh token is returned again.
	GenerateNew bool
	// Delete the access tokens previously issued from the presented refresh token.
	RemoveOldAccess bool
}

// default configs
var (
	DefaultIssuer          = "http://localhost:9001/"
	DefaultAccessTokenExp  = time.Hour
	DefaultRefreshTokenExp = time.Duration(0)
	DefaultRefreshConfig   = RefreshingConfig{}
)

// NewConfig returns the default engine configuration.
func NewConfig() Config {
	return Config{
		Issuer:          DefaultIssuer,
		AccessTokenExp:  DefaultAccessTokenExp,
		RefreshTokenExp: DefaultRefreshTokenExp,
		Refreshing:      DefaultRefreshConfig,
	}
}
