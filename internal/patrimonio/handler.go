// Package patrimonio serves the asset pages: the caller's holdings, the
// group's holdings for admins, and create, edit and delete forms.
package patrimonio

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

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

const moduleAssets = "patrimonio"

var errNotFound = httpx.NewUserError("Patrimônio não encontrado")

// Handler serves /patrimonio.
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

// MountRoutes registers the asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route(rbac.PathPatrimonio, func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/new", h.showNew)
		r.Get("/{id}", h.detail)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.remove)
	})
}

// Form is the asset form. Values accept a comma as decimal separator.
type Form struct {
	Nome           string  `form:"nome" validate:"required,max=120"`
	ValorAquisicao float64 `form:"valor_aquisicao" validate:"gte=0"`
	ValorMercado   float64 `form:"valor_mercado" validate:"gte=0"`
}

// ListData is what pages/patrimonio.html renders.
type ListData struct {
	Own        []api.Asset
	Group      []api.Asset
	Admin      bool
	OwnMarket  float64
	OwnGain    float64
	GroupTotal float64
}

// FormData is what pages/patrimonio_form.html renders.
type FormData struct {
	ID     int64
	Action string
	Form   Form
	Raw    map[string]string
	Errors map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	client := store.Client()
	data := ListData{Admin: store.Role() == shared.RoleAdmin}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		data.Own, err = client.OwnAssets(ctx)
		return err
	})
	if data.Admin {
		g.Go(func() error {
			var err error
			data.Group, err = client.GroupAssets(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if !h.softFail(w, r, err) {
			return
		}
	}
	for _, a := range data.Own {
		data.OwnMarket += a.MarketValue.Float()
		data.OwnGain += a.Appreciation()
	}
	for _, a := range data.Group {
		data.GroupTotal += a.MarketValue.Float()
	}
	h.templates.Page(w, h.logger, http.StatusOK, "pages/patrimonio.html", view.NewTemplateData(r, h.csrf, "Patrimônios", data))
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	id, ok := assetID(r)
	if !ok {
		httpx.Fail(w, r, h.logger, errNotFound, rbac.PathPatrimonio)
		return
	}
	asset, err := store.Client().AssetDetail(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathPatrimonio)
		return
	}
	h.templates.Page(w, h.logger, http.StatusOK, "pages/patrimonio_detail.html", view.NewTemplateData(r, h.csrf, asset.Name, asset))
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticated(w, r); !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, FormData{Action: rbac.PathPatrimonio})
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	id, ok := assetID(r)
	if !ok {
		httpx.Fail(w, r, h.logger, errNotFound, rbac.PathPatrimonio)
		return
	}
	asset, err := store.Client().AssetDetail(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathPatrimonio)
		return
	}
	form := Form{Nome: asset.Name, ValorAquisicao: asset.AcquisitionValue.Float(), ValorMercado: asset.MarketValue.Float()}
	h.renderForm(w, r, http.StatusOK, FormData{ID: id, Action: assetPath(id), Form: form, Raw: rawValues(form)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(r)
	if !ok {
		httpx.Fail(w, r, h.logger, errNotFound, rbac.PathPatrimonio)
		return
	}
	h.save(w, r, id)
}

// save creates the asset when id is zero and updates it otherwise.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	data := FormData{ID: id, Action: rbac.PathPatrimonio, Raw: map[string]string{}}
	if id > 0 {
		data.Action = assetPath(id)
	}

	errs := map[string]string{}
	data.Form.Nome = strings.TrimSpace(r.PostFormValue("nome"))
	data.Form.ValorAquisicao = parseMoney(r, "valor_aquisicao", data.Raw, errs)
	data.Form.ValorMercado = parseMoney(r, "valor_mercado", data.Raw, errs)
	for field, msg := range httpx.FieldErrors(h.validator.Struct(data.Form)) {
		if _, set := errs[field]; !set {
			errs[field] = msg
		}
	}
	if len(errs) > 0 {
		data.Errors = errs
		h.renderForm(w, r, http.StatusBadRequest, data)
		return
	}

	claim, err := h.guard.Claim(r, moduleAssets)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathPatrimonio)
		return
	}
	req := api.AssetRequest{Nome: data.Form.Nome, ValorAquisicao: data.Form.ValorAquisicao, ValorMercado: data.Form.ValorMercado}
	msg := "Patrimônio cadastrado"
	if id > 0 {
		err = store.Client().UpdateAsset(r.Context(), id, req)
		msg = "Patrimônio atualizado"
	} else {
		err = store.Client().CreateAsset(r.Context(), req)
	}
	if err != nil {
		claim.Release(r.Context())
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		data.Errors = map[string]string{"general": httpx.UserMessage(err)}
		h.renderForm(w, r, httpx.StatusFor(err), data)
		return
	}
	httpx.Succeed(w, r, msg, rbac.PathPatrimonio)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	store, ok := authenticated(w, r)
	if !ok {
		return
	}
	id, ok := assetID(r)
	if !ok {
		httpx.Fail(w, r, h.logger, errNotFound, rbac.PathPatrimonio)
		return
	}
	claim, err := h.guard.Claim(r, moduleAssets)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathPatrimonio)
		return
	}
	if err := store.Client().DeleteAsset(r.Context(), id); err != nil {
		claim.Release(r.Context())
		httpx.Fail(w, r, h.logger, err, rbac.PathPatrimonio)
		return
	}
	httpx.Succeed(w, r, "Patrimônio excluído", rbac.PathPatrimonio)
}

// softFail flashes err and reports whether the page should still render. A
// rejected session is redirected to login instead.
func (h *Handler) softFail(w http.ResponseWriter, r *http.Request, err error) bool {
	if httpx.StatusFor(err) == http.StatusUnauthorized {
		httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
		return false
	}
	httpx.Log(r, h.logger, err)
	shared.AddFlash(r.Context(), shared.FlashError, httpx.UserMessage(err))
	return true
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data FormData) {
	title := "Novo patrimônio"
	if data.ID > 0 {
		title = "Editar patrimônio"
	}
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	if data.Raw == nil {
		data.Raw = map[string]string{}
	}
	h.templates.Page(w, h.logger, status, "pages/patrimonio_form.html", view.NewTemplateData(r, h.csrf, title, data))
}

func authenticated(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		httpx.Redirect(w, r, rbac.PathLogin)
		return nil, false
	}
	return store, true
}

func assetID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func assetPath(id int64) string {
	return rbac.PathPatrimonio + "/" + strconv.FormatInt(id, 10)
}

func parseMoney(r *http.Request, field string, raw, errs map[string]string) float64 {
	value := r.PostFormValue(field)
	raw[field] = value
	v, ok := httpx.ParseMoney(value)
	if !ok {
		errs[field] = "Valor inválido"
	}
	return v
}

func rawValues(f Form) map[string]string {
	return map[string]string{
		"valor_aquisicao": strconv.FormatFloat(f.ValorAquisicao, 'f', 2, 64),
		"valor_mercado":   strconv.FormatFloat(f.ValorMercado, 'f', 2, 64),
	}
}
