package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fingrupo/fingrupo/internal/shared"
)

// RegisterRequest is the POST /users payload.
type RegisterRequest struct {
	Nome           string `json:"nome"`
	Sobrenome      string `json:"sobrenome"`
	CPF            string `json:"cpf"`
	DataNascimento string `json:"dthr_nascimento"`
	Endereco       string `json:"endereco"`
	Email          string `json:"email"`
	Senha          string `json:"senha"`
}

// Credentials is the POST /users/login payload.
type Credentials struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type roleResponse struct {
	Role string `json:"role"`
}

// User holds identity fields of the current user.
type User struct {
	ID             int64     `json:"id"`
	Nome           string    `json:"nome"`
	Sobrenome      string    `json:"sobrenome"`
	CPF            string    `json:"cpf"`
	DataNascimento Timestamp `json:"dthr_nascimento"`
	Endereco       string    `json:"endereco,omitempty"`
}

// UserInfo holds account fields of the current user.
type UserInfo struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Endereco string `json:"endereco"`
}

// Profile is the GET /users/profile response.
type Profile struct {
	User     User     `json:"user"`
	UserInfo UserInfo `json:"userInfo"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.User.Nome + " " + p.User.Sobrenome)
}

// Address prefers the account address and falls back to the identity one.
func (p Profile) Address() string {
	if p.UserInfo.Endereco != "" {
		return p.UserInfo.Endereco
	}
	return p.User.Endereco
}

// ProfileUpdate is the PATCH /users/profile payload. Nil fields are left
// untouched; Senha is omitted when empty so a blank form field never resets
// the password.
type ProfileUpdate struct {
	Nome           *string `json:"nome,omitempty"`
	Sobrenome      *string `json:"sobrenome,omitempty"`
	DataNascimento *string `json:"dthr_nascimento,omitempty"`
	Endereco       *string `json:"endereco,omitempty"`
	Email          *string `json:"email,omitempty"`
	Senha          string  `json:"senha,omitempty"`
}

// Register creates a user account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/users", req, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", creds, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", fmt.Errorf("%w: login returned no token", ErrMalformedResponse)
	}
	return resp.Token, nil
}

// Role fetches the caller's authoritative role.
func (c *Client) Role(ctx context.Context) (shared.Role, error) {
	var resp roleResponse
	if err := c.do(ctx, http.MethodGet, "/users/role", nil, &resp); err != nil {
		return "", err
	}
	role, ok := shared.ParseRole(resp.Role)
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrMalformedResponse, resp.Role)
	}
	return role, nil
}

// Profile fetches the caller's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &raw); err != nil {
		return Profile{}, err
	}
	profile, err := decodeObject[Profile](raw, "data")
	if err != nil {
		return Profile{}, err
	}
	if profile.User.ID == 0 && profile.UserInfo.ID == 0 {
		return Profile{}, fmt.Errorf("%w: profile without identity", ErrMalformedResponse)
	}
	return profile, nil
}

// UpdateProfile submits changed profile fields.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.do(ctx, http.MethodPatch, "/users/profile", update, nil)
}
