package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Asset is a tracked holding ("patrimônio").
type Asset struct {
	ID               int64
	Name             string
	AcquisitionValue Amount
	MarketValue      Amount
	OwnerName        string
	OwnerEmail       string
	CreatedAt        Timestamp
}

// Appreciation is market minus acquisition value.
func (a Asset) Appreciation() float64 {
	return a.MarketValue.Float() - a.AcquisitionValue.Float()
}

// AssetLine is an income or expense line linked to an asset.
type AssetLine struct {
	Active      bool
	Periodicity int64
	Value       Amount
}

// AssetDetail is an asset with its linked lines.
type AssetDetail struct {
	Asset
	Incomes  []AssetLine
	Expenses []AssetLine
}

// AssetRequest is the create/update payload.
type AssetRequest struct {
	Nome           string  `json:"nome"`
	ValorAquisicao float64 `json:"valor_aquisicao"`
	ValorMercado   float64 `json:"valor_mercado"`
}

type assetLineWire struct {
	Active      bool   `json:"id_ativo"`
	Periodicity int64  `json:"id_periodicidade"`
	Value       Amount `json:"valor"`
}

type assetWire struct {
	ID          int64     `json:"id"`
	MarketValue Amount    `json:"valor_mercado"`
	CreatedAt   Timestamp `json:"dthr_cadastro"`
	Patrimonio  struct {
		Nome           string `json:"nome"`
		ValorAquisicao Amount `json:"valor_aquisicao"`
	} `json:"patrimonio"`
	Owner *struct {
		Email   string     `json:"email"`
		Usuario personName `json:"usuario"`
	} `json:"usuario_info"`
	Incomes  []assetLineWire `json:"entrada_info"`
	Expenses []assetLineWire `json:"saida_info"`
}

func (w assetWire) asset() Asset {
	a := Asset{
		ID:               w.ID,
		Name:             w.Patrimonio.Nome,
		AcquisitionValue: w.Patrimonio.ValorAquisicao,
		MarketValue:      w.MarketValue,
		CreatedAt:        w.CreatedAt,
	}
	if w.Owner != nil {
		a.OwnerName = strings.TrimSpace(w.Owner.Usuario.Nome + " " + w.Owner.Usuario.Sobrenome)
		a.OwnerEmail = w.Owner.Email
	}
	return a
}

func assetLines(wire []assetLineWire) []AssetLine {
	out := make([]AssetLine, 0, len(wire))
	for _, w := range wire {
		out = append(out, AssetLine(w))
	}
	return out
}

func (c *Client) listAssets(ctx context.Context, path string) ([]Asset, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	wire, err := decodeList[assetWire](raw, "patrimonios")
	if err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.asset())
	}
	return out, nil
}

// OwnAssets lists the caller's assets.
func (c *Client) OwnAssets(ctx context.Context) ([]Asset, error) {
	return c.listAssets(ctx, "/patrimonios")
}

// GroupAssets lists every asset of the caller's group.
func (c *Client) GroupAssets(ctx context.Context) ([]Asset, error) {
	return c.listAssets(ctx, "/patrimonios/grupo")
}

// AssetDetail fetches one asset with its linked lines.
func (c *Client) AssetDetail(ctx context.Context, id int64) (AssetDetail, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/patrimonios/%d", id), nil, &raw); err != nil {
		return AssetDetail{}, err
	}
	wire, err := decodeObject[assetWire](raw, "patrimonios", "patrimonio", "data")
	if err != nil {
		return AssetDetail{}, err
	}
	if wire.ID == 0 {
		return AssetDetail{}, fmt.Errorf("%w: asset without id", ErrMalformedResponse)
	}
	return AssetDetail{
		Asset:    wire.asset(),
		Incomes:  assetLines(wire.Incomes),
		Expenses: assetLines(wire.Expenses),
	}, nil
}

// CreateAsset registers a new asset.
func (c *Client) CreateAsset(ctx context.Context, req AssetRequest) error {
	return c.do(ctx, http.MethodPost, "/patrimonios", req, nil)
}

// UpdateAsset replaces the fields of asset id.
func (c *Client) UpdateAsset(ctx context.Context, id int64, req AssetRequest) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/patrimonios/%d", id), req, nil)
}

// DeleteAsset removes asset id.
func (c *Client) DeleteAsset(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/patrimonios/%d", id), nil, nil)
}
