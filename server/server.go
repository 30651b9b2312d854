package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/manage"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewDefaultServer create a default authorization server
func NewDefaultServer(manager *manage.Manager) *Server {
	return NewServer(NewConfig(), manager)
}

// NewServer create authorization server
func NewServer(cfg *Config, manager *manage.Manager) *Server {
	srv := &Server{
		Config:  cfg,
		Manager: manager,
		Logger:  zap.NewNop().Sugar(),
	}

	// default handlers
	srv.ClientInfoHandler = ClientBasicOrFormHandler
	srv.ResourceInfoHandler = ResourceBasicHandler
	return srv
}

// Server Provide authorization server
type Server struct {
	Config               *Config
	Manager              *manage.Manager
	Logger               *zap.SugaredLogger
	Gatherer             prometheus.Gatherer
	ClientInfoHandler    ClientInfoHandler
	ResourceInfoHandler  ResourceInfoHandler
	ResponseErrorHandler ResponseErrorHandler
	InternalErrorHandler InternalErrorHandler
}

// redirectError sends err to the client's redirect URI. Without a validated
// request the error is displayed instead.
func (s *Server) redirectError(w http.ResponseWriter, req *models.AuthorizationRequest, err error) error {
	if req == nil {
		return s.tokenError(w, err)
	}

	data, _, _ := s.GetErrorData(err)
	delete(data, "error_description")
	return s.redirect(w, req, data)
}

func (s *Server) redirect(w http.ResponseWriter, req *models.AuthorizationRequest, data map[string]interface{}) error {
	uri, err := s.GetRedirectURI(req, data)
	if err != nil {
		return err
	}

	w.Header().Set("Location", uri)
	w.WriteHeader(http.StatusFound)
	return nil
}

func (s *Server) tokenError(w http.ResponseWriter, err error) error {
	data, statusCode, header := s.GetErrorData(err)
	return s.token(w, data, header, statusCode)
}

func (s *Server) token(w http.ResponseWriter, data map[string]interface{}, header http.Header, statusCode ...int) error {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	for key := range header {
		w.Header().Set(key, header.Get(key))
	}

	status := http.StatusOK
	if len(statusCode) > 0 && statusCode[0] > 0 {
		status = statusCode[0]
	}

	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GetRedirectURI get redirect uri
func (s *Server) GetRedirectURI(req *models.AuthorizationRequest, data map[string]interface{}) (string, error) {
	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if req.State != "" {
		q.Set("state", req.State)
	}

	for k, v := range data {
		q.Set(k, fmt.Sprint(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CheckResponseType check allows response type
func (s *Server) CheckResponseType(rt oauth2.ResponseType) bool {
	for _, art := range s.Config.AllowedResponseTypes {
		if art == rt {
			return true
		}
	}
	return false
}

// CheckGrantType check allows grant type
func (s *Server) CheckGrantType(gt oauth2.GrantType) bool {
	for _, agt := range s.Config.AllowedGrantTypes {
		if agt == gt {
			return true
		}
	}
	return false
}

// HandleAuthorizeRequest validates an authorization request and returns the
// pending request for the approval page as JSON.
func (s *Server) HandleAuthorizeRequest(w http.ResponseWriter, r *http.Request) error {
	ar := manage.AuthorizeRequest{
		ResponseType: FormValue(r, "response_type"),
		ClientID:     FormValue(r, "client_id"),
		RedirectURI:  FormValue(r, "redirect_uri"),
		Scope:        FormValue(r, "scope"),
		State:        FormValue(r, "state"),
	}

	req, cli, err := s.Manager.IssueAuthorizationRequest(r.Context(), ar)
	if err != nil {
		return s.redirectError(w, req, err)
	}
	if !s.CheckResponseType(oauth2.ResponseType(req.ResponseType)) {
		// the stored request is left to expire
		s.Logger.Infow("authorize: response type not allowed", "client_id", cli.ID, "response_type", req.ResponseType)
		return s.redirectError(w, req, errors.ErrUnsupportedResponseType)
	}

	return s.token(w, map[string]interface{}{
		"request_id":      req.RequestID,
		"client_id":       cli.ID,
		"scope":           cli.Scope.String(),
		"requested_scope": req.Scope.String(),
		"redirect_uri":    req.RedirectURI,
		"state":           req.State,
	}, nil)
}

// approvedScope collects the granted scope from scope_<label> checkboxes
// and from a space-delimited scope field.
func approvedScope(r *http.Request) models.Scope {
	var labels []string
	for key := range r.PostForm {
		if strings.HasPrefix(key, "scope_") {
			labels = append(labels, strings.TrimPrefix(key, "scope_"))
		}
	}
	labels = append(labels, strings.Fields(r.PostFormValue("scope"))...)
	return models.ParseScope(strings.Join(labels, " "))
}

// HandleApproveRequest records the resource owner's decision and redirects
// back to the client with a code or an error.
func (s *Server) HandleApproveRequest(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	requestID := r.PostFormValue("reqid")
	if requestID == "" {
		requestID = r.PostFormValue("request_id")
	}
	approved := r.PostFormValue("approve") != "" && r.PostFormValue("deny") == ""

	req, code, err := s.Manager.ApproveAuthorizationRequest(r.Context(), requestID, approved, approvedScope(r))
	if err != nil {
		return s.redirectError(w, req, err)
	}
	return s.redirect(w, req, map[string]interface{}{"code": code})
}

// ValidationTokenRequest the token request validation
func (s *Server) ValidationTokenRequest(r *http.Request) (*manage.TokenRequest, error) {
	if r.Method != http.MethodPost {
		return nil, errors.ErrInvalidRequest
	}
	if err := r.ParseForm(); err != nil {
		return nil, errors.ErrInvalidRequest
	}

	clientID, clientSecret, err := s.ClientInfoHandler(r)
	if err != nil {
		return nil, err
	}

	return &manage.TokenRequest{
		GrantType:    oauth2.GrantType(r.PostFormValue("grant_type")),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		Scope:        r.PostFormValue("scope"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		Refresh:      r.PostFormValue("refresh_token"),
	}, nil
}

// GetTokenData token data
func (s *Server) GetTokenData(tp *manage.TokenPair) map[string]interface{} {
	data := map[string]interface{}{
		"access_token": tp.Access.Value,
		"token_type":   s.Config.TokenType,
		"scope":        tp.Access.Scope.String(),
	}

	if exp := tp.Access.ExpiresIn(time.Now()); exp > 0 {
		data["expires_in"] = int64(exp / time.Second)
	}

	if tp.Refresh != nil {
		data["refresh_token"] = tp.Refresh.Value
	}
	return data
}

// HandleTokenRequest token request handling
func (s *Server) HandleTokenRequest(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	tr, err := s.ValidationTokenRequest(r)
	if err != nil {
		return s.tokenError(w, err)
	}

	if !s.CheckGrantType(tr.GrantType) {
		if _, err := s.Manager.AuthenticateClient(ctx, tr.ClientID, tr.ClientSecret); err != nil {
			return s.tokenError(w, err)
		}
		return s.tokenError(w, errors.ErrUnsupportedGrantType)
	}

	tp, err := s.Manager.IssueToken(ctx, tr)
	if err != nil {
		return s.tokenError(w, err)
	}

	return s.token(w, s.GetTokenData(tp), nil)
}

// GetErrorData get error response data
func (s *Server) GetErrorData(err error) (map[string]interface{}, int, http.Header) {
	var re errors.Response
	if known, ok := errors.Lookup(err); ok {
		re.Error = known
		re.Description = errors.Descriptions[known]
		re.StatusCode = errors.StatusCodes[known]
	} else {
		if fn := s.InternalErrorHandler; fn != nil {
			if v := fn(err); v != nil {
				re = *v
			}
		}

		if re.Error == nil {
			s.Logger.Errorw("internal error", "error", err)
			re.Error = errors.ErrServerError
			re.Description = errors.Descriptions[errors.ErrServerError]
			re.StatusCode = errors.StatusCodes[errors.ErrServerError]
		}
	}

	if fn := s.ResponseErrorHandler; fn != nil {
		fn(&re)
	}

	data := make(map[string]interface{})
	if err := re.Error; err != nil {
		data["error"] = err.Error()
	}

	if v := re.ErrorCode; v != 0 {
		data["error_code"] = v
	}

	if v := re.Description; v != "" {
		data["error_description"] = v
	}

	if v := re.URI; v != "" {
		data["error_uri"] = v
	}

	statusCode := http.StatusInternalServerError
	if v := re.StatusCode; v > 0 {
		statusCode = v
	}

	return data, statusCode, re.Header
}

// HandleRevocationRequest deletes every token of the authenticated client.
// Success is 204 with an empty body.
func (s *Server) HandleRevocationRequest(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	if err := r.ParseForm(); err != nil {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	clientID, clientSecret, err := s.ClientInfoHandler(r)
	if err != nil {
		return s.tokenError(w, err)
	}

	if _, err := s.Manager.RevokeToken(r.Context(), clientID, clientSecret, r.PostFormValue("token")); err != nil {
		return s.tokenError(w, err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// HandleIntrospectionRequest implements RFC 7662 Token Introspection for
// registered protected resources. Bad resource credentials get a bare 401.
func (s *Server) HandleIntrospectionRequest(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	if err := r.ParseForm(); err != nil {
		return s.tokenError(w, errors.ErrInvalidRequest)
	}
	resourceID, resourceSecret, err := s.ResourceInfoHandler(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return nil
	}

	res, err := s.Manager.Introspect(r.Context(), resourceID, resourceSecret, r.PostFormValue("token"))
	if err != nil {
		if errors.Is(err, errors.ErrInvalidClient) {
			w.WriteHeader(http.StatusUnauthorized)
			return nil
		}
		return s.tokenError(w, err)
	}

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(res)
}
