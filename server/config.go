package server

import (
	oauth2 "github.com/legit-games/oauth2-in-action"
)

// Config configuration parameters
type Config struct {
	TokenType            string                // token type
	AllowedResponseTypes []oauth2.ResponseType // allow the authorization type
	AllowedGrantTypes    []oauth2.GrantType    // allow the grant type
}

// NewConfig create to configuration instance
func NewConfig() *Config {
	return &Config{
		TokenType:            oauth2.TokenTypeBearer,
		AllowedResponseTypes: []oauth2.ResponseType{oauth2.Code},
		AllowedGrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCode,
			oauth2.PasswordCredentials,
			oauth2.Refreshing,
		},
	}
}
