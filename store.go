package oauth2

import (
	"context"

	"github.com/legit-games/oauth2-in-action/models"
)

type (
	// ClientRegistry the read-only registry of OAuth clients
	ClientRegistry interface {
		// according to the ID for the client information
		GetByID(ctx context.Context, id string) (*models.Client, error)
	}

	// ResourceRegistry the read-only registry of protected resources allowed to introspect
	ResourceRegistry interface {
		GetByID(ctx context.Context, id string) (*models.ProtectedResource, error)
	}

	// UserStore the resource owner accounts
	UserStore interface {
		GetByUsername(ctx context.Context, username string) (*models.User, error)
	}

	// TokenStore the token information storage interface
	TokenStore interface {
		// create and store the new token information
		Create(ctx context.Context, token *models.Token) error

		// use the access token to get token information
		GetByAccess(ctx context.Context, access string) (*models.Token, error)

		// use the refresh token to get token information
		GetByRefresh(ctx context.Context, refresh string) (*models.Token, error)

		// delete the access token
		RemoveByAccess(ctx context.Context, access string) error

		// delete the refresh token
		RemoveByRefresh(ctx context.Context, refresh string) error

		// delete every access token paired with the given refresh token
		RemoveAccessByRefresh(ctx context.Context, refresh string) (int, error)

		// delete every token (access and refresh) issued to the client
		RemoveByClientID(ctx context.Context, clientID string) (int, error)
	}

	// AuthorizationRequestStore holds pending authorization requests until
	// the resource owner approves or denies them.
	AuthorizationRequestStore interface {
		Save(ctx context.Context, req *models.AuthorizationRequest) error

		// Take loads and deletes the request in one step; a second Take
		// for the same id reports store.ErrNotFound.
		Take(ctx context.Context, requestID string) (*models.AuthorizationRequest, error)
	}

	// AuthorizationCodeStore holds issued authorization codes until they
	// are exchanged at the token endpoint.
	AuthorizationCodeStore interface {
		Save(ctx context.Context, code *models.AuthorizationCode) error
		Take(ctx context.Context, code string) (*models.AuthorizationCode, error)
	}
)
