// Package financeiro serves the income and expense page.
package financeiro

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

const moduleEntries = "financeiro"

var (
	errUnknownKind = httpx.NewUserError("Tipo de lançamento inválido")
	errNotFound    = httpx.NewUserError("Lançamento não encontrado")
)

// Handler serves /financeiro.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *httpx.Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, guard *httpx.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers the entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route(rbac.PathFinanceiro, func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/{kind}", h.create)
		r.Post("/{kind}/{id}/delete", h.remove)
	})
}

// Form is one new entry. Priority only applies to expenses and the asset
// link is optional.
type Form struct {
	Kind          api.EntryKind `form:"kind"`
	Nome          string        `form:"nome" validate:"required,max=120"`
	Valor         float64       `form:"valor" validate:"gt=0"`
	CategoryID    int64         `form:"id_categoria" validate:"gt=0"`
	PaymentTypeID int64         `form:"id_tipo" validate:"gt=0"`
	PriorityID    int64         `form:"id_prioridade"`
	AssetID       int64         `form:"id_patrimonio"`
}

// KindData is the list and form state of one kind.
type KindData struct {
	Kind         api.EntryKind
	Entries      []api.Entry
	Group        []api.Entry
	Total        float64
	Categories   []api.LookupOption
	PaymentTypes []api.LookupOption
	Priorities   []api.LookupOption
	Form         Form
	RawValor     string
	Errors       map[string]string
}

// PageData is what pages/financeiro.html renders.
type PageData struct {
	Admin    bool
	Incomes  KindData
	Expenses KindData
	Assets   []api.Asset
	Balance  float64
}

// Kinds returns both sides in display order.
func (d *PageData) Kinds() []*KindData {
	return []*KindData{&d.Incomes, &d.Expenses}
}

// IsExpense reports whether the section takes a priority.
func (k *KindData) IsExpense() bool {
	return k.Kind == api.Expense
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	data, err := h.load(r.Context(), store)
	if err != nil && !h.softFail(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, data)
}

// load fetches both kinds with their lookups and the caller's assets
// concurrently. Lists that fail stay empty; the first error is returned.
func (h *Handler) load(ctx context.Context, store *session.Store) (*PageData, error) {
	client := store.Client()
	data := &PageData{
		Admin:    store.Role() == shared.RoleAdmin,
		Incomes:  KindData{Kind: api.Income, Errors: map[string]string{}},
		Expenses: KindData{Kind: api.Expense, Errors: map[string]string{}},
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	// Each fetch keeps going when a sibling fails so the page shows what it can.
	fetch := func(g *errgroup.Group, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}

	var g errgroup.Group
	for _, kd := range data.Kinds() {
		fetch(&g, func() (err error) {
			kd.Entries, err = client.Entries(ctx, kd.Kind)
			return err
		})
		fetch(&g, func() (err error) {
			kd.Categories, err = client.Categories(ctx, kd.Kind)
			return err
		})
		fetch(&g, func() (err error) {
			kd.PaymentTypes, err = client.PaymentTypes(ctx, kd.Kind)
			return err
		})
		if data.Admin {
			fetch(&g, func() (err error) {
				kd.Group, err = client.GroupEntries(ctx, kd.Kind)
				return err
			})
		}
	}
	fetch(&g, func() (err error) {
		data.Expenses.Priorities, err = client.Priorities(ctx)
		return err
	})
	fetch(&g, func() (err error) {
		data.Assets, err = client.OwnAssets(ctx)
		return err
	})
	_ = g.Wait()

	for _, kd := range data.Kinds() {
		for _, e := range kd.Entries {
			kd.Total += e.Value.Float()
		}
	}
	data.Balance = data.Incomes.Total - data.Expenses.Total
	return data, firstErr
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	kind, ok := api.ParseEntryKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Fail(w, r, h.logger, errUnknownKind, rbac.PathFinanceiro)
		return
	}

	form := Form{
		Kind:          kind,
		Nome:          strings.TrimSpace(r.PostFormValue("nome")),
		CategoryID:    formInt(r, "id_categoria"),
		PaymentTypeID: formInt(r, "id_tipo"),
		AssetID:       formInt(r, "id_patrimonio"),
	}
	if kind == api.Expense {
		form.PriorityID = formInt(r, "id_prioridade")
	}
	rawValor := r.PostFormValue("valor")
	errs := map[string]string{}
	value, valid := httpx.ParseMoney(rawValor)
	if !valid {
		errs["valor"] = "Valor inválido"
	}
	form.Valor = value
	for field, msg := range httpx.FieldErrors(h.validator.Struct(form)) {
		if _, set := errs[field]; !set {
			errs[field] = msg
		}
	}
	if kind == api.Expense && form.PriorityID <= 0 {
		errs["id_prioridade"] = "Campo obrigatório"
	}
	if len(errs) > 0 {
		h.renderInvalid(w, r, store, http.StatusBadRequest, form, rawValor, errs)
		return
	}

	claim, err := h.guard.Claim(r, moduleEntries)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathFinanceiro)
		return
	}
	user, _ := store.User()
	err = store.Client().CreateEntry(r.Context(), api.EntryRequest{
		Kind:          kind,
		Name:          form.Nome,
		Value:         form.Valor,
		CategoryID:    form.CategoryID,
		PaymentTypeID: form.PaymentTypeID,
		PriorityID:    form.PriorityID,
		AssetID:       form.AssetID,
		UserInfoID:    user.UserInfo.ID,
	})
	if err != nil {
		claim.Release(r.Context())
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		h.renderInvalid(w, r, store, httpx.StatusFor(err), form, rawValor, map[string]string{"general": httpx.UserMessage(err)})
		return
	}
	httpx.Succeed(w, r, kind.Label()+" registrada", rbac.PathFinanceiro)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	kind, ok := api.ParseEntryKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Fail(w, r, h.logger, errUnknownKind, rbac.PathFinanceiro)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, r, h.logger, errNotFound, rbac.PathFinanceiro)
		return
	}
	claim, err := h.guard.Claim(r, moduleEntries)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathFinanceiro)
		return
	}
	if err := store.Client().DeleteEntry(r.Context(), kind, id); err != nil {
		claim.Release(r.Context())
		httpx.Fail(w, r, h.logger, err, rbac.PathFinanceiro)
		return
	}
	httpx.Succeed(w, r, kind.Label()+" excluída", rbac.PathFinanceiro)
}

// renderInvalid re-renders the page with the rejected form filled in on the
// side it was posted from.
func (h *Handler) renderInvalid(w http.ResponseWriter, r *http.Request, store *session.Store, status int, form Form, rawValor string, errs map[string]string) {
	data, err := h.load(r.Context(), store)
	if err != nil && !h.softFail(w, r, err) {
		return
	}
	kd := &data.Incomes
	if form.Kind == api.Expense {
		kd = &data.Expenses
	}
	kd.Form, kd.RawValor, kd.Errors = form, rawValor, errs
	h.render(w, r, status, data)
}

func (h *Handler) softFail(w http.ResponseWriter, r *http.Request, err error) bool {
	if httpx.StatusFor(err) == http.StatusUnauthorized {
		httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
		return false
	}
	httpx.Log(r, h.logger, err)
	shared.AddFlash(r.Context(), shared.FlashError, httpx.UserMessage(err))
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data *PageData) {
	h.templates.Page(w, h.logger, status, "pages/financeiro.html", view.NewTemplateData(r, h.csrf, "Financeiro", data))
}

func authenticated(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		httpx.Redirect(w, r, rbac.PathLogin)
		return nil, false
	}
	return store, true
}

func formInt(r *http.Request, field string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(r.PostFormValue(field)), 10, 64)
	return v
}
