// Package invites drives the invite and group membership lifecycle: receiving,
// accepting and declining invites, sending and revoking them as an admin, and
// creating or leaving a group. Every action that can change the caller's role
// ends with exactly one role refresh; the role is never set optimistically.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/shared"
)

var (
	// ErrForbidden is returned when the caller's role does not allow the action.
	ErrForbidden = httpx.NewUserError("Apenas administradores podem gerenciar convites")
	// ErrNotPending is returned when acting on an invite that is already settled.
	ErrNotPending = httpx.NewUserError("Convite não está mais pendente")
	// ErrInviteNotFound is returned for an id missing from the caller's lists.
	ErrInviteNotFound = httpx.NewUserError("Convite não encontrado")
	// ErrInvalidCargo is returned when sending an invite for a role other than MEMBRO or ADMIN.
	ErrInvalidCargo = httpx.NewUserError("Cargo inválido")
	// ErrInvalidEmail is returned when the invite target is not an email address.
	ErrInvalidEmail = httpx.NewUserError("Informe um e-mail válido")
	// ErrGroupName is returned when creating a group without a usable name.
	ErrGroupName = httpx.NewUserError("Informe o nome do grupo (até 100 caracteres)")
)

// Client is the slice of the API the controller needs.
type Client interface {
	ReceivedInvites(ctx context.Context) ([]api.Invite, error)
	SentInvites(ctx context.Context) ([]api.Invite, error)
	AcceptInvite(ctx context.Context, id int64) error
	DeclineInvite(ctx context.Context, id int64) error
	RevokeInvite(ctx context.Context, id int64) error
	SendInvite(ctx context.Context, req api.SendInviteRequest) error
	CreateGroup(ctx context.Context, name string) error
	QuitGroup(ctx context.Context) error
}

// RoleSource is the session side of the controller: it reads the current role
// and re-resolves it from the server.
type RoleSource interface {
	Role() shared.Role
	RefreshRole(ctx context.Context) shared.Role
}

// Controller holds the invite lists loaded during one request.
type Controller struct {
	client   Client
	roles    RoleSource
	logger   *slog.Logger
	validate *validator.Validate

	mu       sync.Mutex
	received []api.Invite
	sent     []api.Invite
}

// NewController constructs a Controller.
func NewController(client Client, roles RoleSource, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:   client,
		roles:    roles,
		logger:   logger,
		validate: validator.New(),
	}
}

// ListReceived loads the invites addressed to the caller. Only pending invites
// are kept.
func (c *Controller) ListReceived(ctx context.Context) ([]api.Invite, error) {
	list, err := c.client.ReceivedInvites(ctx)
	if err != nil {
		return nil, err
	}
	list = slices.DeleteFunc(list, func(inv api.Invite) bool {
		return inv.Status() != api.InvitePending
	})
	c.mu.Lock()
	c.received = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// ListSent loads the invites the caller issued.
func (c *Controller) ListSent(ctx context.Context) ([]api.Invite, error) {
	list, err := c.client.SentInvites(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.sent = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// Received returns the last loaded received list.
func (c *Controller) Received() []api.Invite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.received)
}

// Sent returns the last loaded sent list.
func (c *Controller) Sent() []api.Invite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

// Accept joins the group behind invite id. On success the role is refreshed
// once and the invite leaves the received list. A conflict means the invite
// changed under us, so the list is reloaded before the error is returned.
func (c *Controller) Accept(ctx context.Context, id int64) (shared.Role, error) {
	if err := c.client.AcceptInvite(ctx, id); err != nil {
		return c.roles.Role(), c.settleFailure(ctx, "accept", id, err)
	}
	role := c.roles.RefreshRole(ctx)
	c.removeReceived(id)
	c.logger.Info("invite accepted", slog.Int64("invite_id", id), slog.String("role", role.String()))
	return role, nil
}

// Decline rejects invite id. Declining never changes membership, so the role
// is not refetched.
func (c *Controller) Decline(ctx context.Context, id int64) (shared.Role, error) {
	if err := c.client.DeclineInvite(ctx, id); err != nil {
		return c.roles.Role(), c.settleFailure(ctx, "decline", id, err)
	}
	c.removeReceived(id)
	c.logger.Info("invite declined", slog.Int64("invite_id", id))
	return c.roles.Role(), nil
}

// Revoke withdraws an invite the caller sent. Only admins may revoke, and only
// while the invite is still pending.
func (c *Controller) Revoke(ctx context.Context, id int64) error {
	if c.roles.Role() != shared.RoleAdmin {
		return ErrForbidden
	}
	c.mu.Lock()
	loaded := c.sent != nil
	c.mu.Unlock()
	if !loaded {
		if _, err := c.ListSent(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	idx := slices.IndexFunc(c.sent, func(inv api.Invite) bool { return inv.ID == id })
	var inv api.Invite
	if idx >= 0 {
		inv = c.sent[idx]
	}
	c.mu.Unlock()
	switch {
	case idx < 0:
		return ErrInviteNotFound
	case inv.Status() != api.InvitePending:
		return ErrNotPending
	}

	if err := c.client.RevokeInvite(ctx, id); err != nil {
		if errors.Is(err, api.ErrConflict) {
			c.reloadSent(ctx)
		}
		return err
	}
	c.mu.Lock()
	c.sent = slices.DeleteFunc(c.sent, func(inv api.Invite) bool { return inv.ID == id })
	c.mu.Unlock()
	c.logger.Info("invite revoked", slog.Int64("invite_id", id))
	return nil
}

type sendForm struct {
	Email string `validate:"required,email"`
	Cargo string `validate:"required,oneof=MEMBRO ADMIN"`
}

// Send invites email to the caller's group with the given role.
func (c *Controller) Send(ctx context.Context, email string, cargo shared.Role) error {
	if c.roles.Role() != shared.RoleAdmin {
		return ErrForbidden
	}
	form := sendForm{Email: strings.TrimSpace(email), Cargo: string(cargo)}
	if err := c.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "Email" {
			return ErrInvalidEmail
		}
		return ErrInvalidCargo
	}
	if err := c.client.SendInvite(ctx, api.SendInviteRequest{Cargo: form.Cargo, Email: form.Email}); err != nil {
		return err
	}
	c.logger.Info("invite sent", slog.String("cargo", form.Cargo))
	c.reloadSent(ctx)
	return nil
}

type groupForm struct {
	Name string `validate:"required,max=100"`
}

// CreateGroup founds a group with the caller as admin.
func (c *Controller) CreateGroup(ctx context.Context, name string) (shared.Role, error) {
	form := groupForm{Name: strings.TrimSpace(name)}
	if err := c.validate.Struct(form); err != nil {
		return c.roles.Role(), ErrGroupName
	}
	if err := c.client.CreateGroup(ctx, form.Name); err != nil {
		return c.roles.Role(), err
	}
	role := c.roles.RefreshRole(ctx)
	c.logger.Info("group created", slog.String("role", role.String()))
	return role, nil
}

// CreateOrganization is CreateGroup under the name the navigation uses.
func (c *Controller) CreateOrganization(ctx context.Context, name string) (shared.Role, error) {
	return c.CreateGroup(ctx, name)
}

// QuitGroup leaves the caller's group; the refreshed role is the guest role.
func (c *Controller) QuitGroup(ctx context.Context) (shared.Role, error) {
	if err := c.client.QuitGroup(ctx); err != nil {
		return c.roles.Role(), err
	}
	role := c.roles.RefreshRole(ctx)
	c.logger.Info("group left", slog.String("role", role.String()))
	return role, nil
}

func (c *Controller) settleFailure(ctx context.Context, action string, id int64, err error) error {
	if !errors.Is(err, api.ErrConflict) {
		return err
	}
	if _, reloadErr := c.ListReceived(ctx); reloadErr != nil {
		c.logger.Warn("reload received invites", slog.Any("error", reloadErr))
	}
	return fmt.Errorf("invites: %s %d: %w", action, id, err)
}

func (c *Controller) reloadSent(ctx context.Context) {
	if _, err := c.ListSent(ctx); err != nil {
		c.logger.Warn("reload sent invites", slog.Any("error", err))
	}
}

func (c *Controller) removeReceived(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = slices.DeleteFunc(c.received, func(inv api.Invite) bool { return inv.ID == id })
}
