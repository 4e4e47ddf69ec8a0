package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
)

type LiquidityHandler struct {
	engine *engine.Service
}

func NewLiquidityHandler(engine *engine.Service) *LiquidityHandler {
	return &LiquidityHandler{engine: engine}
}

func (h *LiquidityHandler) Root() string {
	return "/positions"
}

func (h *LiquidityHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/:id", h.getPosition)

	admin.POST("", h.addLiquidity)
	admin.POST("/:id/withdraw", h.removeLiquidity)
}

type AddLiquidityRequest struct {
	Owner   string `json:"owner" binding:"required" example:"carol"`
	AssetID uint32 `json:"assetId" example:"27"`
	Amount  string `json:"amount" binding:"required" example:"10000000000"`
	Human   bool   `json:"human"`
}

type RemoveLiquidityRequest struct {
	// Shares to burn. Empty burns every share of the position.
	Shares string `json:"shares"`
}

func parsePositionID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

// @Summary Get a liquidity position
// @Tags positions
// @Produce json
// @Param id path int true "Position id"
// @Success 200 {object} domain.Position
// @Failure 404 {object} httputil.Response
// @Router /api/v1/positions/{id} [get]
func (h *LiquidityHandler) getPosition(c *gin.Context) {
	id, ok := parsePositionID(c.Param("id"))
	if !ok {
		httputil.BadRequest(c, "invalid position id")
		return
	}
	p, ok := h.engine.Position(id)
	if !ok {
		httputil.Fail(c, toHttpError(executor.ErrPositionNotFound))
		return
	}
	httputil.Success(c, p)
}

// @Summary Add liquidity
// @Description Deposits an asset and mints a position priced at the current hub price.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AddLiquidityRequest true "Deposit"
// @Success 201 {object} domain.Position
// @Router /api/v1/admin/positions [post]
func (h *LiquidityHandler) addLiquidity(c *gin.Context) {
	var req AddLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	assetID := domain.AssetID(req.AssetID)
	var decimals uint8
	if req.Human {
		d, err := decimalsOf(h.engine, assetID)
		if err != nil {
			httputil.Fail(c, toHttpError(err))
			return
		}
		decimals = d
	}
	amount, err := parseAmount(req.Amount, decimals, req.Human)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	p, err := h.engine.AddLiquidity(req.Owner, assetID, amount)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Created(c, p)
}

// @Summary Remove liquidity
// @Description Burns shares of a position. A withdrawal fee applies when the price moved since the last round close.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Position id"
// @Param request body RemoveLiquidityRequest false "Shares"
// @Success 200 {object} executor.Withdrawal
// @Router /api/v1/admin/positions/{id}/withdraw [post]
func (h *LiquidityHandler) removeLiquidity(c *gin.Context) {
	id, ok := parsePositionID(c.Param("id"))
	if !ok {
		httputil.BadRequest(c, "invalid position id")
		return
	}
	var req RemoveLiquidityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	p, ok := h.engine.Position(id)
	if !ok {
		httputil.Fail(c, toHttpError(executor.ErrPositionNotFound))
		return
	}
	shares := p.Shares
	if req.Shares != "" {
		s, err := parseAmount(req.Shares, 0, false)
		if err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
		shares = s
	}

	w, err := h.engine.RemoveLiquidity(id, shares)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Success(c, w)
}
