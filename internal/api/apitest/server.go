// Package apitest runs an in-memory stand-in for the fingrupo REST API. It keeps
// just enough state (users, tokens, invites, groups, assets, entries) for the
// session, invite and handler tests to drive full flows over real HTTP.
package apitest

import (
	"cmp"
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/shared"
)

const signingKey = "apitest"

// User is a registered account of the fake API.
type User struct {
	ID         int64
	Nome       string
	Sobrenome  string
	CPF        string
	Nascimento string
	Endereco   string
	Email      string
	Senha      string
	Role       shared.Role
	GroupID    int64
}

// InviteState is the server side view of one invite.
type InviteState struct {
	ID       int64
	Cargo    shared.Role
	GroupID  int64
	From     string
	To       string
	Pending  bool
	Declined bool
}

type asset struct {
	ID        int64
	Owner     string
	GroupID   int64
	Nome      string
	Aquisicao float64
	Mercado   float64
	CreatedAt time.Time
}

type entry struct {
	ID         int64
	Kind       api.EntryKind
	Owner      string
	GroupID    int64
	Nome       string
	Valor      float64
	Categoria  int64
	Tipo       int64
	Prioridade int64
	Periodo    int64
	AssetID    int64
	CreatedAt  time.Time
}

type failure struct {
	status  int
	message string
}

// Server is the fake API. The embedded httptest.Server is closed on test cleanup.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	users    map[string]*User
	tokens   map[string]string
	invites  map[int64]*InviteState
	groups   map[int64]string
	assets   map[int64]*asset
	entries  map[int64]*entry
	calls    map[string]int
	failures map[string]failure
	updates  []map[string]any
}

// New starts a fake API bound to t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   100,
		users:    make(map[string]*User),
		tokens:   make(map[string]string),
		invites:  make(map[int64]*InviteState),
		groups:   make(map[int64]string),
		assets:   make(map[int64]*asset),
		entries:  make(map[int64]*entry),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// APIClient returns an api.Client pointed at the fake.
func (s *Server) APIClient(opts ...api.Option) *api.Client {
	return api.NewClient(s.URL, append([]api.Option{api.WithHTTPClient(s.Server.Client())}, opts...)...)
}

// AddUser registers u directly. Missing fields get defaults.
func (s *Server) AddUser(u User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	if u.Role == "" {
		u.Role = shared.RoleGuest
	}
	if u.Senha == "" {
		u.Senha = "secret123"
	}
	if u.Nome == "" {
		u.Nome = strings.Split(u.Email, "@")[0]
	}
	if u.Nascimento == "" {
		u.Nascimento = "1990-01-01"
	}
	if u.Role.Affiliated() && u.GroupID == 0 {
		u.GroupID = s.id()
		s.groups[u.GroupID] = "Grupo " + u.Nome
	}
	stored := u
	s.users[u.Email] = &stored
	return &stored
}

// User returns a copy of the account registered under email.
func (s *Server) User(email string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// SetRole changes the role the server reports for email.
func (s *Server) SetRole(email string, role shared.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.Role = role
	}
}

// Token issues a valid token for email.
func (s *Server) Token(email string) string {
	return s.issue(email, time.Now().Add(time.Hour))
}

// ExpiredToken issues a token whose exp claim is in the past. The fake still
// accepts it, so callers can tell a local expiry check from a server 401.
func (s *Server) ExpiredToken(email string) string {
	return s.issue(email, time.Now().Add(-time.Minute))
}

// RevokeTokens invalidates every token of email; later calls answer 401.
func (s *Server) RevokeTokens(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.tokens {
		if owner == email {
			delete(s.tokens, token)
		}
	}
}

// AddInvite creates a pending invite from an admin to a user.
func (s *Server) AddInvite(from, to string, cargo shared.Role) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sender := s.users[from]
	inv := &InviteState{ID: s.id(), Cargo: cargo, From: from, To: to, Pending: true}
	if sender != nil {
		inv.GroupID = sender.GroupID
	}
	s.invites[inv.ID] = inv
	return inv.ID
}

// Invite returns the server state of invite id.
func (s *Server) Invite(id int64) (InviteState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return InviteState{}, false
	}
	return *inv, true
}

// SetInvite overwrites the flags of invite id, simulating a change made elsewhere.
func (s *Server) SetInvite(id int64, pending, declined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invites[id]; ok {
		inv.Pending, inv.Declined = pending, declined
	}
}

// AddAsset stores an asset owned by email and returns its id.
func (s *Server) AddAsset(owner, name string, acquisition, market float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &asset{ID: s.id(), Owner: owner, Nome: name, Aquisicao: acquisition, Mercado: market, CreatedAt: time.Now()}
	if u := s.users[owner]; u != nil {
		a.GroupID = u.GroupID
	}
	s.assets[a.ID] = a
	return a.ID
}

// AddEntry stores an entry owned by email and returns its id.
func (s *Server) AddEntry(owner string, kind api.EntryKind, name string, value float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{ID: s.id(), Kind: kind, Owner: owner, Nome: name, Valor: value, CreatedAt: time.Now()}
	if u := s.users[owner]; u != nil {
		e.GroupID = u.GroupID
	}
	s.entries[e.ID] = e
	return e.ID
}

// Assets counts stored assets.
func (s *Server) Assets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// Entries counts stored entries of kind.
func (s *Server) Entries(kind api.EntryKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Fail makes the next requests to method+path answer status until Heal.
// path is the concrete request path, e.g. "/invites/accept/5".
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

// Heal clears an injected failure.
func (s *Server) Heal(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Calls reports how many requests hit the route pattern, e.g. "GET /users/role".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ProfileUpdates returns the raw PATCH /users/profile bodies received.
func (s *Server) ProfileUpdates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.updates...)
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) issue(email string, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.tokens[token] = email
	s.mu.Unlock()
	return token
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count, s.inject)

	r.Post("/users", s.register)
	r.Post("/users/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/users/role", s.role)
		r.Get("/users/profile", s.profile)
		r.Patch("/users/profile", s.updateProfile)

		r.Get("/invites/received", s.receivedInvites)
		r.Get("/invites/sent", s.sentInvites)
		r.Post("/invites/accept/{id}", s.acceptInvite)
		r.Post("/invites/decline/{id}", s.declineInvite)
		r.Post("/invites/revoke/{id}", s.revokeInvite)
		r.Post("/invites/send", s.sendInvite)

		r.Post("/groups", s.createGroup)
		r.Post("/groups/quit", s.quitGroup)
		r.Get("/groups/members", s.members)

		r.Get("/patrimonios", s.ownAssets)
		r.Get("/patrimonios/grupo", s.groupAssets)
		r.Get("/patrimonios/{id}", s.assetDetail)
		r.Post("/patrimonios", s.createAsset)
		r.Patch("/patrimonios/{id}", s.updateAsset)
		r.Delete("/patrimonios/{id}", s.deleteAsset)

		r.Get("/financeiro/metadata", s.metadata)
		r.Route("/financeiro/{kind}", func(r chi.Router) {
			r.Get("/", s.ownEntries)
			r.Post("/", s.createEntry)
			r.Get("/grupo", s.groupEntries)
			r.Get("/categorias", s.categories)
			r.Get("/tipos", s.paymentTypes)
			r.Get("/prioridades", s.priorities)
			r.Delete("/{id}", s.deleteEntry)
		})
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := strings.TrimSuffix(chi.RouteContext(r.Context()).RoutePattern(), "/")
		s.mu.Lock()
		s.calls[r.Method+" "+pattern]++
		s.mu.Unlock()
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token inválido")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithEmail(r.Context(), email)))
	})
}

// caller returns the authenticated user; the lock must be held.
func (s *Server) caller(r *http.Request) *User {
	return s.users[emailFromContext(r.Context())]
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if req.Email == "" || req.Senha == "" || req.Nome == "" {
		writeError(w, http.StatusBadRequest, "Campos obrigatórios ausentes")
		return
	}
	s.mu.Lock()
	_, exists := s.users[req.Email]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "Email já cadastrado")
		return
	}
	s.AddUser(User{
		Nome:       req.Nome,
		Sobrenome:  req.Sobrenome,
		CPF:        req.CPF,
		Nascimento: req.DataNascimento,
		Endereco:   req.Endereco,
		Email:      req.Email,
		Senha:      req.Senha,
	})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Email]
	valid := ok && u.Senha == req.Senha
	s.mu.Unlock()
	if !valid {
		writeError(w, http.StatusUnauthorized, "Credenciais inválidas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.Token(req.Email)})
}

func (s *Server) role(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	role := s.caller(r).Role
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := *s.caller(r)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":              u.ID,
			"nome":            u.Nome,
			"sobrenome":       u.Sobrenome,
			"cpf":             u.CPF,
			"dthr_nascimento": u.Nascimento,
		},
		"userInfo": map[string]any{
			"id":       u.ID + 1000,
			"email":    u.Email,
			"endereco": u.Endereco,
		},
	})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, body)
	u := s.caller(r)
	str := func(key string, dst *string) {
		if v, ok := body[key].(string); ok {
			*dst = v
		}
	}
	str("nome", &u.Nome)
	str("sobrenome", &u.Sobrenome)
	str("dthr_nascimento", &u.Nascimento)
	str("endereco", &u.Endereco)
	str("senha", &u.Senha)
	if email, ok := body["email"].(string); ok && email != u.Email {
		if _, taken := s.users[email]; taken {
			writeError(w, http.StatusConflict, "Email já cadastrado")
			return
		}
		delete(s.users, u.Email)
		for token, owner := range s.tokens {
			if owner == u.Email {
				s.tokens[token] = email
			}
		}
		u.Email = email
		s.users[email] = u
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Perfil atualizado"})
}

func (s *Server) senderJSON(email string) map[string]any {
	u := s.users[email]
	if u == nil {
		return map[string]any{}
	}
	return map[string]any{
		"role": string(u.Role),
		"usuario_info_grupo_financeiro_usuario_id_usuario_info_cadastroTousuario_info": map[string]any{
			"id":      u.ID + 1000,
			"email":   u.Email,
			"usuario": map[string]any{"nome": u.Nome, "sobrenome": u.Sobrenome},
		},
	}
}

func (s *Server) receivedInvites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	list := []map[string]any{}
	for _, inv := range sortedInvites(s.invites) {
		if inv.To != me.Email || !inv.Pending {
			continue
		}
		// Received invites come without status flags: only open ones are listed.
		list = append(list, map[string]any{
			"id":                         inv.ID,
			"cargo":                      string(inv.Cargo),
			"grupoFinanceiroId":          inv.GroupID,
			"usuarioDestinoId":           me.ID,
			"grupo_financeiro_usuarioId": inv.GroupID,
			"membroId":                   s.senderJSON(inv.From),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"convitesUsuario": list})
}

func (s *Server) sentInvites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	list := []map[string]any{}
	for _, inv := range sortedInvites(s.invites) {
		if inv.From != me.Email {
			continue
		}
		var targetID int64
		if target := s.users[inv.To]; target != nil {
			targetID = target.ID
		}
		list = append(list, map[string]any{
			"id":                inv.ID,
			"cargo":             string(inv.Cargo),
			"grupoFinanceiroId": inv.GroupID,
			"usuarioDestinoId":  targetID,
			"pendente":          inv.Pending,
			"recusado":          inv.Declined,
			"usuario":           map[string]any{"id": targetID, "email": inv.To},
			"membroId":          s.senderJSON(inv.From),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"convites": list})
}

func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	inv, ok := s.invites[pathID(r)]
	if !ok || inv.To != me.Email {
		writeError(w, http.StatusNotFound, "Convite não encontrado")
		return
	}
	if !inv.Pending || inv.Declined {
		writeError(w, http.StatusConflict, "Convite não está mais pendente")
		return
	}
	inv.Pending = false
	me.Role = inv.Cargo
	me.GroupID = inv.GroupID
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  s.id(),
		"role":                string(inv.Cargo),
		"id_grupo_financeiro": inv.GroupID,
		"id_usuario_info":     me.ID + 1000,
	})
}

func (s *Server) declineInvite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	inv, ok := s.invites[pathID(r)]
	if !ok || inv.To != me.Email {
		writeError(w, http.StatusNotFound, "Convite não encontrado")
		return
	}
	if !inv.Pending {
		writeError(w, http.StatusConflict, "Convite não está mais pendente")
		return
	}
	inv.Pending, inv.Declined = false, true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revokeInvite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if me.Role != shared.RoleAdmin {
		writeError(w, http.StatusForbidden, "Apenas administradores podem revogar convites")
		return
	}
	id := pathID(r)
	inv, ok := s.invites[id]
	if !ok || inv.From != me.Email {
		writeError(w, http.StatusNotFound, "Convite não encontrado")
		return
	}
	if !inv.Pending {
		writeError(w, http.StatusConflict, "Convite não está mais pendente")
		return
	}
	delete(s.invites, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendInvite(w http.ResponseWriter, r *http.Request) {
	var req api.SendInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if me.Role != shared.RoleAdmin {
		writeError(w, http.StatusForbidden, "Apenas administradores podem convidar")
		return
	}
	cargo, ok := shared.ParseRole(req.Cargo)
	if !ok || cargo == shared.RoleGuest {
		writeError(w, http.StatusBadRequest, "Cargo inválido")
		return
	}
	if _, exists := s.users[req.Email]; !exists {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	inv := &InviteState{ID: s.id(), Cargo: cargo, GroupID: me.GroupID, From: me.Email, To: req.Email, Pending: true}
	s.invites[inv.ID] = inv
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req api.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Nome) == "" {
		writeError(w, http.StatusBadRequest, "Nome do grupo obrigatório")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if me.Role.Affiliated() {
		writeError(w, http.StatusConflict, "Usuário já pertence a um grupo")
		return
	}
	me.GroupID = s.id()
	me.Role = shared.RoleAdmin
	s.groups[me.GroupID] = req.Nome
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) quitGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if !me.Role.Affiliated() {
		writeError(w, http.StatusBadRequest, "Usuário não pertence a um grupo")
		return
	}
	me.GroupID = 0
	me.Role = shared.RoleGuest
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) members(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if !me.Role.Affiliated() {
		writeError(w, http.StatusForbidden, "Usuário não pertence a um grupo")
		return
	}
	list := []map[string]any{}
	for _, u := range sortedUsers(s.users) {
		if u.GroupID != me.GroupID {
			continue
		}
		list = append(list, map[string]any{
			"id":                  u.ID + 2000,
			"id_ativo":            true,
			"role":                string(u.Role),
			"id_usuario_info":     u.ID + 1000,
			"id_grupo_financeiro": u.GroupID,
			"dthr_cadastro":       time.Now().UTC().Format(time.RFC3339),
			"usuario_info_grupo_financeiro_usuario_id_usuario_infoTousuario_info": map[string]any{
				"email":   u.Email,
				"usuario": map[string]any{"nome": u.Nome, "sobrenome": u.Sobrenome},
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"membros": list})
}

func (s *Server) assetJSON(a *asset, detail bool) map[string]any {
	out := map[string]any{
		"id":            a.ID,
		"id_ativo":      true,
		"dthr_cadastro": a.CreatedAt.UTC().Format(time.RFC3339),
		"valor_mercado": strconv.FormatFloat(a.Mercado, 'f', 2, 64),
		"patrimonio": map[string]any{
			"nome":            a.Nome,
			"valor_aquisicao": strconv.FormatFloat(a.Aquisicao, 'f', 2, 64),
		},
	}
	if owner := s.users[a.Owner]; owner != nil {
		out["usuario_info"] = map[string]any{
			"email":   owner.Email,
			"usuario": map[string]any{"nome": owner.Nome, "cpf": owner.CPF},
		}
	}
	if detail {
		lines := map[api.EntryKind][]map[string]any{api.Income: {}, api.Expense: {}}
		for _, e := range sortedEntries(s.entries) {
			if e.AssetID != a.ID {
				continue
			}
			lines[e.Kind] = append(lines[e.Kind], map[string]any{
				"id_ativo":         true,
				"id_periodicidade": e.Periodo,
				"valor":            strconv.FormatFloat(e.Valor, 'f', 2, 64),
			})
		}
		out["entrada_info"] = lines[api.Income]
		out["saida_info"] = lines[api.Expense]
	}
	return out
}

func (s *Server) ownAssets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	list := []map[string]any{}
	for _, a := range sortedAssets(s.assets) {
		if a.Owner == me.Email {
			list = append(list, s.assetJSON(a, false))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patrimonios": list})
}

func (s *Server) groupAssets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if me.Role != shared.RoleAdmin {
		writeError(w, http.StatusForbidden, "Apenas administradores")
		return
	}
	list := []map[string]any{}
	for _, a := range sortedAssets(s.assets) {
		if a.GroupID == me.GroupID {
			list = append(list, s.assetJSON(a, false))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patrimonios": list})
}

func (s *Server) visibleAsset(me *User, id int64) (*asset, bool) {
	a, ok := s.assets[id]
	if !ok {
		return nil, false
	}
	if a.Owner == me.Email || (me.Role == shared.RoleAdmin && a.GroupID == me.GroupID && a.GroupID != 0) {
		return a, true
	}
	return nil, false
}

func (s *Server) assetDetail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.visibleAsset(s.caller(r), pathID(r))
	if !ok {
		writeError(w, http.StatusNotFound, "Patrimônio não encontrado")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patrimonios": s.assetJSON(a, true)})
}

type assetBody struct {
	Nome           string     `json:"nome"`
	ValorAquisicao api.Amount `json:"valor_aquisicao"`
	ValorMercado   api.Amount `json:"valor_mercado"`
}

func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	var req assetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Nome) == "" {
		writeError(w, http.StatusBadRequest, "Nome obrigatório")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	a := &asset{ID: s.id(), Owner: me.Email, GroupID: me.GroupID, Nome: req.Nome,
		Aquisicao: req.ValorAquisicao.Float(), Mercado: req.ValorMercado.Float(), CreatedAt: time.Now()}
	s.assets[a.ID] = a
	writeJSON(w, http.StatusCreated, map[string]any{"id": a.ID})
}

func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[pathID(r)]
	if !ok || a.Owner != s.caller(r).Email {
		writeError(w, http.StatusNotFound, "Patrimônio não encontrado")
		return
	}
	if req.Nome != "" {
		a.Nome = req.Nome
	}
	a.Aquisicao, a.Mercado = req.ValorAquisicao.Float(), req.ValorMercado.Float()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	a, ok := s.assets[id]
	if !ok || a.Owner != s.caller(r).Email {
		writeError(w, http.StatusNotFound, "Patrimônio não encontrado")
		return
	}
	delete(s.assets, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entryJSON(e *entry) map[string]any {
	single := strings.TrimSuffix(string(e.Kind), "s")
	out := map[string]any{
		"id":                               e.ID,
		"id_ativo":                         true,
		"dthr_cadastro":                    e.CreatedAt.UTC().Format(time.RFC3339),
		"dthr_" + single:                   nil,
		"id_" + single + "_categoria":      e.Categoria,
		"id_pagamento_" + single + "_tipo": e.Tipo,
		"id_periodicidade":                 e.Periodo,
		"valor":                            strconv.FormatFloat(e.Valor, 'f', 2, 64),
		"id_patrimonio_info":               nil,
		single:                             map[string]any{"id": e.ID, "nome": e.Nome},
	}
	if e.AssetID != 0 {
		out["id_patrimonio_info"] = e.AssetID
	}
	if e.Kind == api.Expense {
		out["id_saida_prioridade"] = e.Prioridade
	}
	if owner := s.users[e.Owner]; owner != nil {
		out["usuario_info_"+single+"_info_id_usuario_info_cadastroTousuario_info"] = map[string]any{
			"id":      owner.ID + 1000,
			"email":   owner.Email,
			"usuario": map[string]any{"nome": owner.Nome, "cpf": owner.CPF},
		}
	}
	return out
}

func entryKind(w http.ResponseWriter, r *http.Request) (api.EntryKind, bool) {
	kind, ok := api.ParseEntryKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "Rota não encontrada")
	}
	return kind, ok
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request, group bool) {
	kind, ok := entryKind(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	if group && me.Role != shared.RoleAdmin {
		writeError(w, http.StatusForbidden, "Apenas administradores")
		return
	}
	list := []map[string]any{}
	for _, e := range sortedEntries(s.entries) {
		if e.Kind != kind {
			continue
		}
		if (group && e.GroupID == me.GroupID && e.GroupID != 0) || (!group && e.Owner == me.Email) {
			list = append(list, s.entryJSON(e))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{string(kind): list})
}

func (s *Server) ownEntries(w http.ResponseWriter, r *http.Request) {
	s.listEntries(w, r, false)
}

func (s *Server) groupEntries(w http.ResponseWriter, r *http.Request) {
	s.listEntries(w, r, true)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	kind, ok := entryKind(w, r)
	if !ok {
		return
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	single := strings.TrimSuffix(string(kind), "s")
	var (
		nome  string
		valor api.Amount
	)
	_ = json.Unmarshal(body["nome"], &nome)
	_ = json.Unmarshal(body["valor"], &valor)
	if strings.TrimSpace(nome) == "" || valor <= 0 {
		writeError(w, http.StatusBadRequest, "Nome e valor são obrigatórios")
		return
	}
	integer := func(key string) int64 {
		var v int64
		_ = json.Unmarshal(body[key], &v)
		return v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	e := &entry{
		ID:         s.id(),
		Kind:       kind,
		Owner:      me.Email,
		GroupID:    me.GroupID,
		Nome:       nome,
		Valor:      valor.Float(),
		Categoria:  integer("id_" + single + "_categoria"),
		Tipo:       integer("id_pagamento_" + single + "_tipo"),
		Prioridade: integer("id_saida_prioridade"),
		Periodo:    integer("id_periodicidade"),
		AssetID:    integer("id_patrimonio_info"),
		CreatedAt:  time.Now(),
	}
	s.entries[e.ID] = e
	writeJSON(w, http.StatusCreated, map[string]any{"id": e.ID})
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, ok := entryKind(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	e, found := s.entries[id]
	if !found || e.Kind != kind || e.Owner != s.caller(r).Email {
		writeError(w, http.StatusNotFound, "Registro não encontrado")
		return
	}
	delete(s.entries, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) metadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.caller(r)
	now := time.Now()
	var spent, spentMonth, income, incomeMonth, gSpent, gSpentMonth, gIncome, gIncomeMonth float64
	for _, e := range s.entries {
		thisMonth := e.CreatedAt.Year() == now.Year() && e.CreatedAt.Month() == now.Month()
		mine := e.Owner == me.Email
		inGroup := me.GroupID != 0 && e.GroupID == me.GroupID
		switch e.Kind {
		case api.Expense:
			if mine {
				spent += e.Valor
				if thisMonth {
					spentMonth += e.Valor
				}
			}
			if inGroup {
				gSpent += e.Valor
				if thisMonth {
					gSpentMonth += e.Valor
				}
			}
		case api.Income:
			if mine {
				income += e.Valor
				if thisMonth {
					incomeMonth += e.Valor
				}
			}
			if inGroup {
				gIncome += e.Valor
				if thisMonth {
					gIncomeMonth += e.Valor
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gastoTotal":             spent,
		"gastoDoMes":             spentMonth,
		"entradasTotais":         strconv.FormatFloat(income, 'f', 2, 64),
		"entradasMes":            incomeMonth,
		"gastosTotaisDoGrupo":    gSpent,
		"gastosTotaisDoGrupoMes": gSpentMonth,
		"entradasTotaisGrupo":    gIncome,
		"entradasTotaisGrupoMes": gIncomeMonth,
	})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	kind, ok := entryKind(w, r)
	if !ok {
		return
	}
	if kind == api.Income {
		writeJSON(w, http.StatusOK, map[string]any{
			"entradasCategoriasPadrao": []map[string]any{{"id": 1, "nome": "Salário"}, {"id": 2, "nome": "Investimentos"}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categoriasPadrao":    []map[string]any{{"id": 1, "nome": "Moradia"}, {"id": 2, "nome": "Alimentação"}},
		"categoriasDoUsuario": []map[string]any{{"id": 2, "nome": "Alimentação"}, {"id": 9, "nome": "Pets"}},
	})
}

func (s *Server) paymentTypes(w http.ResponseWriter, r *http.Request) {
	if _, ok := entryKind(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tiposPublicos": []map[string]any{{"id": 1, "nome": "Pix"}, {"id": 2, "nome": "Cartão"}},
	})
}

func (s *Server) priorities(w http.ResponseWriter, r *http.Request) {
	if kind, ok := entryKind(w, r); !ok || kind != api.Expense {
		if ok {
			writeError(w, http.StatusNotFound, "Rota não encontrada")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saidas":         []map[string]any{},
		"saidasPublicas": []map[string]any{{"id": 1, "nome": "Alta", "nivel": 1}, {"id": 2, "nome": "Baixa", "nivel": 3}},
	})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

type emailKey struct{}

func contextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey{}, email)
}

func emailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey{}).(string)
	return email
}

func sortedByID[T any](items []*T, id func(*T) int64) []*T {
	slices.SortFunc(items, func(a, b *T) int { return cmp.Compare(id(a), id(b)) })
	return items
}

func sortedInvites(m map[int64]*InviteState) []*InviteState {
	return sortedByID(slices.Collect(maps.Values(m)), func(i *InviteState) int64 { return i.ID })
}

func sortedUsers(m map[string]*User) []*User {
	return sortedByID(slices.Collect(maps.Values(m)), func(u *User) int64 { return u.ID })
}

func sortedAssets(m map[int64]*asset) []*asset {
	return sortedByID(slices.Collect(maps.Values(m)), func(a *asset) int64 { return a.ID })
}

func sortedEntries(m map[int64]*entry) []*entry {
	return sortedByID(slices.Collect(maps.Values(m)), func(e *entry) int64 { return e.ID })
}
