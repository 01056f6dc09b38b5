package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/fingrupo/fingrupo/internal/shared"
)

// Member is one membership of the caller's group.
type Member struct {
	ID         int64
	UserInfoID int64
	GroupID    int64
	Role       shared.Role
	Name       string
	Email      string
	Since      Timestamp
}

type memberWire struct {
	ID         int64     `json:"id"`
	Role       string    `json:"role"`
	UserInfoID int64     `json:"id_usuario_info"`
	GroupID    int64     `json:"id_grupo_financeiro"`
	Since      Timestamp `json:"dthr_cadastro"`
	Info       struct {
		Email   string     `json:"email"`
		Usuario personName `json:"usuario"`
	} `json:"usuario_info_grupo_financeiro_usuario_id_usuario_infoTousuario_info"`
}

// CreateGroupRequest is the POST /groups payload.
type CreateGroupRequest struct {
	Nome string `json:"nome"`
}

// CreateGroup creates a financial group administered by the caller.
func (c *Client) CreateGroup(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/groups", CreateGroupRequest{Nome: name}, nil)
}

// QuitGroup removes the caller's membership.
func (c *Client) QuitGroup(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/groups/quit", nil, nil)
}

// Members lists the caller's group.
func (c *Client) Members(ctx context.Context) ([]Member, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/groups/members", nil, &raw); err != nil {
		return nil, err
	}
	wire, err := decodeList[memberWire](raw, "membros", "members")
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(wire))
	for _, w := range wire {
		role, _ := shared.ParseRole(w.Role)
		out = append(out, Member{
			ID:         w.ID,
			UserInfoID: w.UserInfoID,
			GroupID:    w.GroupID,
			Role:       role,
			Name:       strings.TrimSpace(w.Info.Usuario.Nome + " " + w.Info.Usuario.Sobrenome),
			Email:      w.Info.Email,
			Since:      w.Since,
		})
	}
	return out, nil
}
