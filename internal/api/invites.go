package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fingrupo/fingrupo/internal/shared"
)

// InviteStatus is the derived state of an invite.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Label returns the pt-BR badge text.
func (s InviteStatus) Label() string {
	switch s {
	case InviteDeclined:
		return "Recusado"
	case InvitePending:
		return "Pendente"
	default:
		return "Aceito"
	}
}

// Invite is an offer of group membership at Cargo.
type Invite struct {
	ID           int64
	Cargo        shared.Role
	GroupID      int64
	TargetUserID int64
	TargetEmail  string
	SenderID     int64
	SenderName   string
	SenderEmail  string
	Pending      bool
	Declined     bool
}

// Status derives the single state of the invite: declined wins over pending,
// and an invite that is neither is accepted.
func (i Invite) Status() InviteStatus {
	switch {
	case i.Declined:
		return InviteDeclined
	case i.Pending:
		return InvitePending
	default:
		return InviteAccepted
	}
}

// SendInviteRequest is the POST /invites/send payload.
type SendInviteRequest struct {
	Cargo string `json:"cargo"`
	Email string `json:"usuarioDestinoEmail"`
}

type personName struct {
	Nome      string `json:"nome"`
	Sobrenome string `json:"sobrenome"`
}

type inviteSender struct {
	Info struct {
		ID      int64      `json:"id"`
		Email   string     `json:"email"`
		Usuario personName `json:"usuario"`
	} `json:"usuario_info_grupo_financeiro_usuario_id_usuario_info_cadastroTousuario_info"`
	Role string `json:"role"`
}

type inviteWire struct {
	ID           int64        `json:"id"`
	Cargo        string       `json:"cargo"`
	MembershipID int64        `json:"grupo_financeiro_usuarioId"`
	TargetUserID int64        `json:"usuarioDestinoId"`
	GroupID      int64        `json:"grupoFinanceiroId"`
	Pending      *bool        `json:"pendente"`
	Declined     *bool        `json:"recusado"`
	Sender       inviteSender `json:"membroId"`
	Target       struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"usuario"`
}

// invite converts the wire shape. Received invites omit pendente/recusado
// because the API only returns open ones, so missing flags mean pending.
func (w inviteWire) invite() Invite {
	inv := Invite{
		ID:           w.ID,
		Cargo:        shared.Role(strings.ToUpper(strings.TrimSpace(w.Cargo))),
		GroupID:      w.GroupID,
		TargetUserID: w.TargetUserID,
		TargetEmail:  w.Target.Email,
		SenderID:     w.Sender.Info.ID,
		SenderName:   strings.TrimSpace(w.Sender.Info.Usuario.Nome + " " + w.Sender.Info.Usuario.Sobrenome),
		SenderEmail:  w.Sender.Info.Email,
		Pending:      true,
	}
	if w.Pending != nil {
		inv.Pending = *w.Pending
	}
	if w.Declined != nil {
		inv.Declined = *w.Declined
		if inv.Declined {
			inv.Pending = false
		}
	}
	if inv.TargetUserID == 0 {
		inv.TargetUserID = w.Target.ID
	}
	return inv
}

func decodeInvites(raw []byte, keys ...string) ([]Invite, error) {
	wire, err := decodeList[inviteWire](raw, keys...)
	if err != nil {
		return nil, err
	}
	out := make([]Invite, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.invite())
	}
	return out, nil
}

// ReceivedInvites lists invites addressed to the caller.
func (c *Client) ReceivedInvites(ctx context.Context) ([]Invite, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/invites/received", nil, &raw); err != nil {
		return nil, err
	}
	return decodeInvites(raw, "convitesUsuario", "convites")
}

// SentInvites lists invites the caller issued.
func (c *Client) SentInvites(ctx context.Context) ([]Invite, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/invites/sent", nil, &raw); err != nil {
		return nil, err
	}
	return decodeInvites(raw, "convites", "convitesEnviados")
}

// AcceptInvite accepts invite id.
func (c *Client) AcceptInvite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/invites/accept/%d", id), nil, nil)
}

// DeclineInvite declines invite id.
func (c *Client) DeclineInvite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/invites/decline/%d", id), nil, nil)
}

// RevokeInvite withdraws a pending invite the caller sent.
func (c *Client) RevokeInvite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/invites/revoke/%d", id), nil, nil)
}

// SendInvite invites email into the caller's group at cargo.
func (c *Client) SendInvite(ctx context.Context, req SendInviteRequest) error {
	return c.do(ctx, http.MethodPost, "/invites/send", req, nil)
}
