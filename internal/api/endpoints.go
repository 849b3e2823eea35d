package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/model"
)

const (
	pathLogin         = "/api/v1/user/login"
	pathPackage       = "/api/v1/user/package"
	pathUserList      = "/api/v1/user/list"
	pathForwardList   = "/api/v1/forward/list"
	pathForwardCreate = "/api/v1/forward/create"
	pathForwardUpdate = "/api/v1/forward/update"
	pathForwardDelete = "/api/v1/forward/delete"
	pathForwardForce  = "/api/v1/forward/force-delete"
	pathForwardPause  = "/api/v1/forward/pause"
	pathForwardResume = "/api/v1/forward/resume"
	pathUserTunnels   = "/api/v1/tunnel/user/tunnel"
	pathTunnelList    = "/api/v1/tunnel/list"
	pathNodeList      = "/api/v1/node/list"
)

// Session is the result of a successful login.
type Session struct {
	Token                 string
	Role                  model.Role
	Name                  string
	RequirePasswordChange bool
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CaptchaID string `json:"captchaId,omitempty"`
}

type loginResponse struct {
	Token                 string `json:"token"`
	RoleID                int    `json:"role_id"`
	Name                  string `json:"name"`
	RequirePasswordChange bool   `json:"requirePasswordChange"`
}

// Login exchanges credentials for a session token. captchaID may be empty
// when the panel has captcha disabled.
func (c *Client) Login(ctx context.Context, username, password, captchaID string) (Session, error) {
	raw, err := c.post(ctx, pathLogin, &loginRequest{Username: username, Password: password, CaptchaID: captchaID})
	if err != nil {
		return Session{}, err
	}
	var res loginResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return Session{}, fmt.Errorf("decode %s: %w", pathLogin, err)
	}
	if res.Token == "" {
		return Session{}, fmt.Errorf("decode %s: empty token", pathLogin)
	}
	return Session{
		Token:                 res.Token,
		Role:                  model.ParseRole(res.RoleID),
		Name:                  res.Name,
		RequirePasswordChange: res.RequirePasswordChange,
	}, nil
}

// Dashboard fetches the logged-in account's package. Invalid list rows are
// skipped; the returned error then wraps *model.ListError values and the
// Dashboard is still usable.
func (c *Client) Dashboard(ctx context.Context) (model.Dashboard, error) {
	raw, err := c.post(ctx, pathPackage, nil)
	if err != nil {
		return model.Dashboard{}, err
	}
	fields, err := decodeObject(pathPackage, raw)
	if err != nil {
		return model.Dashboard{}, err
	}
	return model.DashboardFromFields(fields, c.modelOptions()...)
}

func (c *Client) Forwards(ctx context.Context) ([]model.Forward, error) {
	return fetchList(ctx, c, pathForwardList, "Forward", model.ForwardFromFields)
}

// UserTunnels lists the tunnels the account may create forwards on.
func (c *Client) UserTunnels(ctx context.Context) ([]model.Tunnel, error) {
	return fetchList(ctx, c, pathUserTunnels, "Tunnel", model.TunnelFromFields)
}

func (c *Client) Tunnels(ctx context.Context) ([]model.Tunnel, error) {
	return fetchList(ctx, c, pathTunnelList, "Tunnel", model.TunnelFromFields)
}

func (c *Client) Nodes(ctx context.Context) ([]model.Node, error) {
	return fetchList(ctx, c, pathNodeList, "Node", model.NodeFromFields)
}

func (c *Client) Users(ctx context.Context) ([]model.UserAccount, error) {
	return fetchList(ctx, c, pathUserList, "UserAccount", model.UserAccountFromFields)
}

// CreateForward submits d as a new forward on t. The draft is checked
// against the tunnel's port range before anything is sent.
func (c *Client) CreateForward(ctx context.Context, t model.Tunnel, d model.ForwardDraft) error {
	body, err := c.draftBody(t, d)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, pathForwardCreate, body)
	return err
}

func (c *Client) UpdateForward(ctx context.Context, id int64, t model.Tunnel, d model.ForwardDraft) error {
	body, err := c.draftBody(t, d)
	if err != nil {
		return err
	}
	body["id"] = id
	_, err = c.post(ctx, pathForwardUpdate, body)
	return err
}

func (c *Client) DeleteForward(ctx context.Context, id int64) error {
	return c.forwardAction(ctx, pathForwardDelete, id)
}

// ForceDeleteForward removes a forward even when its node cannot be reached.
func (c *Client) ForceDeleteForward(ctx context.Context, id int64) error {
	return c.forwardAction(ctx, pathForwardForce, id)
}

func (c *Client) PauseForward(ctx context.Context, id int64) error {
	return c.forwardAction(ctx, pathForwardPause, id)
}

func (c *Client) ResumeForward(ctx context.Context, id int64) error {
	return c.forwardAction(ctx, pathForwardResume, id)
}

func (c *Client) forwardAction(ctx context.Context, path string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s: invalid forward id %d", path, id)
	}
	_, err := c.post(ctx, path, map[string]any{"id": id})
	return err
}

func (c *Client) draftBody(t model.Tunnel, d model.ForwardDraft) (map[string]any, error) {
	dropped, err := d.Validate(t)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		c.reporter.Warn(diag.Warning{
			Kind:   diag.MalformedAddressEntry,
			Entity: "ForwardDraft",
			Field:  "remoteAddr",
			Detail: "malformed target not sent",
			Count:  dropped,
		})
	}
	return d.Fields(), nil
}

func (c *Client) modelOptions() []model.Option {
	return []model.Option{model.WithReporter(c.reporter)}
}

func fetchList[T any](ctx context.Context, c *Client, path, entity string, build func(map[string]any, ...model.Option) (T, error)) ([]T, error) {
	raw, err := c.post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList(path, raw)
	if err != nil {
		return nil, err
	}
	return model.BuildList(entity, rows, build, c.modelOptions()...)
}
