package http

import (
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

const priceDecimals = 18

type AssetHandler struct {
	engine *engine.Service
}

func NewAssetHandler(engine *engine.Service) *AssetHandler {
	return &AssetHandler{engine: engine}
}

func (h *AssetHandler) Root() string {
	return "/assets"
}

func (h *AssetHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listAssets)
	pub.GET("/:id", h.getAsset)

	admin.POST("", h.addAsset)
	admin.PUT("/:id/tradability", h.setTradability)
}

// AssetResponse is a pool asset with its hub price in smallest units and
// in whole tokens.
type AssetResponse struct {
	executor.AssetSnapshot
	Symbol      string `json:"symbol,omitempty"`
	Shares      string `json:"shares"`
	Tradable    string `json:"tradable"`
	HubPrice    string `json:"hubPrice"`
	TokenPrice  string `json:"tokenPrice"`
	ReserveUnit string `json:"reserveTokens"`
}

func ratioDecimal(r fixed.Ratio) decimal.Decimal {
	if r.IsZero() {
		return decimal.Zero
	}
	n := decimal.NewFromBigInt(r.N.ToBig(), 0)
	d := decimal.NewFromBigInt(r.D.ToBig(), 0)
	return n.DivRound(d, priceDecimals)
}

func newAssetResponse(a *domain.AssetState) AssetResponse {
	n, d := a.Fee.Rational()
	pn, pd := a.ProtocolFee.Rational()
	raw := ratioDecimal(a.HubPrice())
	return AssetResponse{
		AssetSnapshot: executor.AssetSnapshot{
			AssetID:    a.AssetID,
			Reserve:    a.Reserve,
			HubReserve: a.HubReserve,
			Decimals:   a.Decimals,
			Fee:        executor.Fee{Numerator: n, Denominator: d},
			HubFee:     executor.Fee{Numerator: pn, Denominator: pd},
		},
		Symbol:      a.Symbol,
		Shares:      a.Shares.Dec(),
		Tradable:    a.Tradable.String(),
		HubPrice:    raw.String(),
		TokenPrice:  raw.Shift(int32(a.Decimals) - int32(domain.HubAssetDecimals)).String(),
		ReserveUnit: humanAmount(a.Reserve, a.Decimals),
	}
}

// @Summary List pool assets
// @Description Returns the solver snapshot of every asset, or of the ids given in ?ids=0,27.
// @Tags assets
// @Produce json
// @Param ids query string false "Comma separated asset ids"
// @Success 200 {object} httputil.Response
// @Router /api/v1/assets [get]
func (h *AssetHandler) listAssets(c *gin.Context) {
	ids, err := parseAssetIDs(c.Query("ids"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	httputil.Success(c, h.engine.Assets(ids))
}

// @Summary Get pool asset
// @Tags assets
// @Produce json
// @Param id path int true "Asset id"
// @Success 200 {object} AssetResponse
// @Failure 404 {object} httputil.Response
// @Router /api/v1/assets/{id} [get]
func (h *AssetHandler) getAsset(c *gin.Context) {
	id, err := parseAssetID(c.Param("id"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	a, ok := h.engine.Asset(id)
	if !ok {
		httputil.Fail(c, toHttpError(executor.ErrUnknownAsset))
		return
	}
	httputil.Success(c, newAssetResponse(a))
}

type AddAssetRequest struct {
	AssetID    uint32 `json:"assetId"`
	Symbol     string `json:"symbol"`
	Decimals   uint8  `json:"decimals"`
	Reserve    string `json:"reserve" binding:"required"`
	HubReserve string `json:"hubReserve" binding:"required"`
	// Fees and cap in parts per million.
	Fee         uint32 `json:"fee"`
	ProtocolFee uint32 `json:"protocolFee"`
	Cap         uint32 `json:"cap"`
	Tradable    *uint8 `json:"tradable"`
}

// @Summary Register a pool asset
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AddAssetRequest true "Initial asset state"
// @Success 201 {object} AssetResponse
// @Failure 409 {object} httputil.Response
// @Router /api/v1/admin/assets [post]
func (h *AssetHandler) addAsset(c *gin.Context) {
	var req AddAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	reserve, err := parseAmount(req.Reserve, 0, false)
	if err != nil {
		httputil.BadRequest(c, "reserve: "+err.Error())
		return
	}
	hubReserve, err := parseAmount(req.HubReserve, 0, false)
	if err != nil {
		httputil.BadRequest(c, "hubReserve: "+err.Error())
		return
	}
	tradable := domain.TradeAll
	if req.Tradable != nil {
		tradable = domain.Tradability(*req.Tradable)
	}
	weightCap := fixed.PermillFromParts(req.Cap)
	if req.Cap == 0 {
		weightCap = fixed.PermillFromPercent(100)
	}

	a := &domain.AssetState{
		AssetID:        domain.AssetID(req.AssetID),
		Symbol:         req.Symbol,
		Decimals:       req.Decimals,
		Reserve:        reserve,
		HubReserve:     hubReserve,
		Shares:         new(uint256.Int).Set(reserve),
		ProtocolShares: new(uint256.Int),
		Fee:            fixed.PermillFromParts(req.Fee),
		ProtocolFee:    fixed.PermillFromParts(req.ProtocolFee),
		Cap:            weightCap,
		Tradable:       tradable,
	}
	if err := h.engine.AddAsset(a); err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	stored, _ := h.engine.Asset(a.AssetID)
	httputil.Created(c, newAssetResponse(stored))
}

type TradabilityRequest struct {
	Tradable uint8 `json:"tradable"`
}

// @Summary Set asset tradability flags
// @Description Bit flags: 1 sell, 2 buy, 4 add liquidity, 8 remove liquidity. 0 freezes the asset.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Asset id"
// @Param request body TradabilityRequest true "Flags"
// @Success 200 {object} AssetResponse
// @Router /api/v1/admin/assets/{id}/tradability [put]
func (h *AssetHandler) setTradability(c *gin.Context) {
	id, err := parseAssetID(c.Param("id"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	var req TradabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.engine.SetTradability(id, domain.Tradability(req.Tradable)); err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	a, _ := h.engine.Asset(id)
	httputil.Success(c, newAssetResponse(a))
}
