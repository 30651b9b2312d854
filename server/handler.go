package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/logger"
)

type (
	// ClientInfoHandler get client info from request
	ClientInfoHandler func(r *http.Request) (clientID, clientSecret string, err error)

	// ResourceInfoHandler get protected resource credentials from request
	ResourceInfoHandler func(r *http.Request) (resourceID, resourceSecret string, err error)

	// InternalErrorHandler internal error handing
	InternalErrorHandler func(err error) (re *errors.Response)

	// ResponseErrorHandler response error handing
	ResponseErrorHandler func(re *errors.Response)
)

// FormValue reads a form field, falling back to the query string for GET.
func FormValue(r *http.Request, key string) string {
	if r.Form == nil {
		_ = r.ParseForm()
	}
	return r.Form.Get(key)
}

// basicAuth decodes the Basic credentials. Both parts are form-unescaped as
// RFC 6749 section 2.3.1 requires.
func basicAuth(r *http.Request) (id, secret string, ok bool, err error) {
	id, secret, ok = r.BasicAuth()
	if !ok {
		return "", "", false, nil
	}
	if id, err = url.QueryUnescape(id); err != nil {
		return "", "", true, errors.ErrInvalidClient
	}
	if secret, err = url.QueryUnescape(secret); err != nil {
		return "", "", true, errors.ErrInvalidClient
	}
	return id, secret, true, nil
}

// ClientBasicOrFormHandler accepts client credentials from the Basic header
// or from the client_id/client_secret body fields, but never from both.
func ClientBasicOrFormHandler(r *http.Request) (string, string, error) {
	id, secret, ok, err := basicAuth(r)
	if err != nil {
		return "", "", err
	}
	formID := strings.TrimSpace(r.PostFormValue("client_id"))
	if ok {
		if formID != "" {
			logger.Warnw("client credentials sent in header and body", "client_id", id)
			return "", "", errors.ErrInvalidClient
		}
		return id, secret, nil
	}
	if formID == "" {
		return "", "", errors.ErrInvalidClient
	}
	return formID, r.PostFormValue("client_secret"), nil
}

// ResourceBasicHandler accepts protected resource credentials from the Basic
// header only.
func ResourceBasicHandler(r *http.Request) (string, string, error) {
	id, secret, ok, err := basicAuth(r)
	if err != nil {
		return "", "", err
	}
	if !ok || id == "" {
		return "", "", errors.ErrInvalidClient
	}
	return id, secret, nil
}
