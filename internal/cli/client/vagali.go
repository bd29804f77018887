package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

// Paths are endpoint paths relative to the API root. The deployed backend
// routes the current profile under accounts/perfil/me/.
type Paths struct {
	Login         string
	Logout        string
	Me            string
	SetPassword   string
	PasswordReset string
}

// DefaultPaths returns the routes of the VagALI backend
func DefaultPaths() Paths {
	return Paths{
		Login:         "auth/login/",
		Logout:        "auth/logout/",
		Me:            "accounts/perfil/me/",
		SetPassword:   "auth/users/set_password/",
		PasswordReset: "auth/password/reset/",
	}
}

func (p Paths) withDefaults() Paths {
	d := DefaultPaths()
	if p.Login == "" {
		p.Login = d.Login
	}
	if p.Logout == "" {
		p.Logout = d.Logout
	}
	if p.Me == "" {
		p.Me = d.Me
	}
	if p.SetPassword == "" {
		p.SetPassword = d.SetPassword
	}
	if p.PasswordReset == "" {
		p.PasswordReset = d.PasswordReset
	}
	return p
}

// ID is a user identifier. The backend sends integers; other deployments
// send strings. Both decode to the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response. The token field name is not
// consistent across backend versions, so all known names are decoded.
type LoginResponse struct {
	TokenField string `json:"token,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	Key        string `json:"key,omitempty"`
}

// Token returns the first non-empty of token, auth_token and key
func (r *LoginResponse) Token() string {
	switch {
	case r.TokenField != "":
		return r.TokenField
	case r.AuthToken != "":
		return r.AuthToken
	default:
		return r.Key
	}
}

// ProfileDetails is the nested "profile" object of the current user
type ProfileDetails struct {
	FullName    string `json:"full_name,omitempty"`
	CPF         string `json:"cpf,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Address     string `json:"address,omitempty"`
	CNPJ        string `json:"cnpj,omitempty"`
	CEP         string `json:"cep,omitempty"`
	Profession  string `json:"profession,omitempty"`
	Keywords    string `json:"palavras_chave,omitempty"`
	Photo       string `json:"photo,omitempty"`
}

// Profile is returned by GET/PATCH accounts/perfil/me/
type Profile struct {
	ID             ID             `json:"id"`
	Email          string         `json:"email"`
	IsProfessional bool           `json:"is_professional"`
	Details        ProfileDetails `json:"profile"`
}

// ProfileFields is a partial update of ProfileDetails; nil fields are not sent
type ProfileFields struct {
	FullName    *string `json:"full_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Address     *string `json:"address,omitempty"`
	CNPJ        *string `json:"cnpj,omitempty"`
	CEP         *string `json:"cep,omitempty"`
	Profession  *string `json:"profession,omitempty"`
	Keywords    *string `json:"palavras_chave,omitempty"`
}

// ProfileUpdate is the PATCH body for accounts/perfil/me/
type ProfileUpdate struct {
	IsProfessional *bool          `json:"is_professional,omitempty"`
	Profile        *ProfileFields `json:"profile,omitempty"`
}

// ChangePasswordRequest is the set_password body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ReNewPassword   string `json:"re_new_password"`
}

// Login exchanges email and password for a token. The credential is not
// attached; the caller decides whether to keep it.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var loginResp LoginResponse
	err := c.do(ctx, http.MethodPost, c.paths.Login, "", LoginRequest{Email: email, Password: password}, &loginResp)
	if err != nil {
		return nil, err
	}
	return &loginResp, nil
}

// Logout asks the backend to invalidate token
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, c.paths.Logout, token, nil, nil)
}

// Me fetches the current user's profile
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.Get(ctx, c.paths.Me, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateMe patches the current user's profile and returns the result
func (c *Client) UpdateMe(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var profile Profile
	if err := c.Patch(ctx, c.paths.Me, update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword changes the current user's password
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.Post(ctx, c.paths.SetPassword, req, nil)
}

// RequestPasswordReset sends the reset e-mail. Needs no credential.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, c.paths.PasswordReset, "", map[string]string{"email": email}, nil)
}
