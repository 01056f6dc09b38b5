package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// EntryKind distinguishes income from expense.
type EntryKind string

const (
	Income  EntryKind = "entradas"
	Expense EntryKind = "saidas"
)

// ParseEntryKind accepts the path form of a kind.
func ParseEntryKind(raw string) (EntryKind, bool) {
	switch EntryKind(strings.ToLower(strings.TrimSpace(raw))) {
	case Income:
		return Income, true
	case Expense:
		return Expense, true
	}
	return "", false
}

// Label returns the pt-BR name of the kind.
func (k EntryKind) Label() string {
	if k == Income {
		return "Entrada"
	}
	return "Saída"
}

func (k EntryKind) singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// Entry is an income or expense record.
type Entry struct {
	ID            int64
	Kind          EntryKind
	Name          string
	Value         Amount
	CategoryID    int64
	PaymentTypeID int64
	PriorityID    int64
	PeriodicityID int64
	AssetID       int64
	OccurredAt    Timestamp
	CreatedAt     Timestamp
	CreatorName   string
	CreatorEmail  string
}

// EntryRequest describes a new entry. PriorityID only applies to expenses.
type EntryRequest struct {
	Kind          EntryKind
	Name          string
	Value         float64
	CategoryID    int64
	PaymentTypeID int64
	PriorityID    int64
	PeriodicityID int64
	AssetID       int64
	UserInfoID    int64
}

// Metadata are the dashboard totals.
type Metadata struct {
	SpentTotal       Amount `json:"gastoTotal"`
	SpentMonth       Amount `json:"gastoDoMes"`
	IncomeTotal      Amount `json:"entradasTotais"`
	IncomeMonth      Amount `json:"entradasMes"`
	GroupSpentTotal  Amount `json:"gastosTotaisDoGrupo"`
	GroupSpentMonth  Amount `json:"gastosTotaisDoGrupoMes"`
	GroupIncomeTotal Amount `json:"entradasTotaisGrupo"`
	GroupIncomeMonth Amount `json:"entradasTotaisGrupoMes"`
}

// Balance is personal income minus spending.
func (m Metadata) Balance() float64 {
	return m.IncomeTotal.Float() - m.SpentTotal.Float()
}

// MonthBalance is this month's personal income minus spending.
func (m Metadata) MonthBalance() float64 {
	return m.IncomeMonth.Float() - m.SpentMonth.Float()
}

// GroupBalance is group income minus spending.
func (m Metadata) GroupBalance() float64 {
	return m.GroupIncomeTotal.Float() - m.GroupSpentTotal.Float()
}

// LookupOption is a lookup value used by entry forms.
type LookupOption struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Level int    `json:"nivel,omitempty"`
}

// EntryLookups groups the option lists of one kind.
type EntryLookups struct {
	Categories   []LookupOption
	PaymentTypes []LookupOption
	Priorities   []LookupOption
}

type namedRef struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

type creatorInfo struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Usuario struct {
		Nome string `json:"nome"`
	} `json:"usuario"`
}

type entryWire struct {
	ID               int64     `json:"id"`
	Valor            Amount    `json:"valor"`
	CreatedAt        Timestamp `json:"dthr_cadastro"`
	Periodicidade    int64     `json:"id_periodicidade"`
	PatrimonioInfo   *int64    `json:"id_patrimonio_info"`
	Prioridade       int64     `json:"id_saida_prioridade"`
	Nome             string    `json:"nome"`
	DthrEntrada      Timestamp `json:"dthr_entrada"`
	DthrSaida        Timestamp `json:"dthr_saida"`
	CategoriaEntrada int64     `json:"id_entrada_categoria"`
	CategoriaSaida   int64     `json:"id_saida_categoria"`
	TipoEntrada      int64     `json:"id_pagamento_entrada_tipo"`
	TipoSaida        int64     `json:"id_pagamento_saida_tipo"`
	Entrada          *namedRef `json:"entrada"`
	Saida            *namedRef `json:"saida"`

	CriadorEntrada *creatorInfo `json:"usuario_info_entrada_info_id_usuario_info_cadastroTousuario_info"`
	CriadorSaida   *creatorInfo `json:"usuario_info_saida_info_id_usuario_info_cadastroTousuario_info"`
}

func (w entryWire) entry(kind EntryKind) Entry {
	e := Entry{
		ID:            w.ID,
		Kind:          kind,
		Name:          w.Nome,
		Value:         w.Valor,
		PriorityID:    w.Prioridade,
		PeriodicityID: w.Periodicidade,
		CreatedAt:     w.CreatedAt,
	}
	if w.PatrimonioInfo != nil {
		e.AssetID = *w.PatrimonioInfo
	}
	ref, creator := w.Saida, w.CriadorSaida
	e.CategoryID, e.PaymentTypeID, e.OccurredAt = w.CategoriaSaida, w.TipoSaida, w.DthrSaida
	if kind == Income {
		ref, creator = w.Entrada, w.CriadorEntrada
		e.CategoryID, e.PaymentTypeID, e.OccurredAt = w.CategoriaEntrada, w.TipoEntrada, w.DthrEntrada
	}
	if ref != nil && ref.Nome != "" {
		e.Name = ref.Nome
	}
	if creator != nil {
		e.CreatorName = creator.Usuario.Nome
		e.CreatorEmail = creator.Email
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = e.CreatedAt
	}
	return e
}

func (c *Client) listEntries(ctx context.Context, kind EntryKind, path string) ([]Entry, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	wire, err := decodeList[entryWire](raw, string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.entry(kind))
	}
	return out, nil
}

// Entries lists the caller's entries of kind.
func (c *Client) Entries(ctx context.Context, kind EntryKind) ([]Entry, error) {
	return c.listEntries(ctx, kind, "/financeiro/"+string(kind))
}

// GroupEntries lists every entry of kind in the caller's group.
func (c *Client) GroupEntries(ctx context.Context, kind EntryKind) ([]Entry, error) {
	return c.listEntries(ctx, kind, "/financeiro/"+string(kind)+"/grupo")
}

// CreateEntry records a new entry.
func (c *Client) CreateEntry(ctx context.Context, req EntryRequest) error {
	kind := req.Kind
	if _, ok := ParseEntryKind(string(kind)); !ok {
		return fmt.Errorf("api: unknown entry kind %q", kind)
	}
	single := kind.singular()
	payload := map[string]any{
		"nome":                             req.Name,
		"dthr_" + single:                   nil,
		"id_" + single + "_categoria":      req.CategoryID,
		"id_pagamento_" + single + "_tipo": req.PaymentTypeID,
		"id_usuario_info":                  req.UserInfoID,
		"id_periodicidade":                 req.PeriodicityID,
		"id_patrimonio_info":               nil,
	}
	if req.AssetID > 0 {
		payload["id_patrimonio_info"] = req.AssetID
	}
	if kind == Income {
		// Incomes carry valor as a decimal string and a receipt placeholder.
		payload["valor"] = strconv.FormatFloat(req.Value, 'f', 2, 64)
		payload["comprovante"] = 0
	} else {
		payload["valor"] = req.Value
		payload["id_saida_prioridade"] = req.PriorityID
	}
	return c.do(ctx, http.MethodPost, "/financeiro/"+string(kind), payload, nil)
}

// DeleteEntry removes entry id of kind.
func (c *Client) DeleteEntry(ctx context.Context, kind EntryKind, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/financeiro/%s/%d", kind, id), nil, nil)
}

// Metadata fetches the dashboard totals.
func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/financeiro/metadata", nil, &raw); err != nil {
		return Metadata{}, err
	}
	return decodeObject[Metadata](raw, "metadata", "data")
}

// Categories lists categories of kind, defaults first.
func (c *Client) Categories(ctx context.Context, kind EntryKind) ([]LookupOption, error) {
	keys := []string{"categoriasPadrao", "categoriasDoUsuario"}
	if kind == Income {
		keys = []string{"entradasCategoriasPadrao", "categoriasPadrao", "entradasCategoriasDoUsuario", "categoriasDoUsuario"}
	}
	return c.options(ctx, "/financeiro/"+string(kind)+"/categorias", keys...)
}

// PaymentTypes lists payment types of kind.
func (c *Client) PaymentTypes(ctx context.Context, kind EntryKind) ([]LookupOption, error) {
	return c.options(ctx, "/financeiro/"+string(kind)+"/tipos", "tiposPublicos", "tipos", "tiposDoUsuario")
}

// Priorities lists expense priorities.
func (c *Client) Priorities(ctx context.Context) ([]LookupOption, error) {
	return c.options(ctx, "/financeiro/saidas/prioridades", "saidasPublicas", "saidas")
}

func (c *Client) options(ctx context.Context, path string, keys ...string) ([]LookupOption, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return mergeOptions(raw, keys...)
}

// mergeOptions concatenates every list found under keys, dropping repeated
// ids. A bare array is returned as is.
func mergeOptions(raw []byte, keys ...string) ([]LookupOption, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		return decodeList[LookupOption](raw)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if data, ok := envelope["data"]; ok {
		return mergeOptions(data, keys...)
	}
	seen := make(map[int64]struct{})
	out := []LookupOption{}
	for _, key := range keys {
		list, ok := envelope[key]
		if !ok {
			continue
		}
		opts, err := decodeList[LookupOption](list)
		if err != nil {
			return nil, err
		}
		for _, opt := range opts {
			if _, dup := seen[opt.ID]; dup {
				continue
			}
			seen[opt.ID] = struct{}{}
			out = append(out, opt)
		}
	}
	return out, nil
}
