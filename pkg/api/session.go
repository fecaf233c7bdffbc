package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
)

// Credentials identify a user by login name or, when Login contains "@", by
// email.
type Credentials struct {
	Login    string `validate:"required,min=3"`
	Password string `validate:"required,min=6"`
}

func (c Credentials) params() map[string]any {
	p := map[string]any{"password": c.Password}
	if strings.Contains(c.Login, "@") {
		p["email"] = c.Login
	} else {
		p["loginName"] = c.Login
	}
	return p
}

type tokenResponse struct {
	Token string `json:"token"`
}

// LogIn starts a session and returns its token.
func (a *API) LogIn(ctx context.Context, creds Credentials) (string, error) {
	if err := validateInput(creds); err != nil {
		return "", err
	}
	req := client.Request{Method: http.MethodPost, Path: "/user/session", Params: creds.params()}
	resp, err := client.Call(ctx, a.client, OpLogIn, req, func(status int, body json.RawMessage) (tokenResponse, error) {
		var r tokenResponse
		if status != http.StatusOK && status != http.StatusCreated {
			return r, errUnexpected(status)
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return r, err
		}
		if r.Token == "" {
			return r, errMissing("token")
		}
		return r, nil
	})
	if err != nil {
		return "", err
	}
	a.logger.Info().Str("login", creds.Login).Msg("Session started")
	return resp.Token, nil
}

// LogOut ends the current session on the backend.
func (a *API) LogOut(ctx context.Context) error {
	req := client.Request{Method: http.MethodDelete, Path: "/user/session"}
	_, err := client.Call(ctx, a.client, OpLogOut, req, client.DecodeNone())
	return err
}

// UserData loads the signed-in user.
func (a *API) UserData(ctx context.Context) (models.User, error) {
	req := client.Request{Method: http.MethodGet, Path: "/user/data"}
	return client.Call(ctx, a.client, OpGetUserData, req, func(status int, body json.RawMessage) (models.User, error) {
		if status != http.StatusOK {
			return nil, errUnexpected(status)
		}
		return models.ParseUser(body)
	})
}
