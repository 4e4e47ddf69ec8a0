package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
)

type QuoteHandler struct {
	engine *engine.Service
}

func NewQuoteHandler(engine *engine.Service) *QuoteHandler {
	return &QuoteHandler{engine: engine}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest prices a single omnipool trade against the current state.
type QuoteRequest struct {
	AssetIn  string `form:"assetIn" binding:"required" example:"0"`
	AssetOut string `form:"assetOut" binding:"required" example:"27"`
	// Amount sold for kind=sell, amount bought for kind=buy.
	Amount string `form:"amount" binding:"required" example:"1000000000000"`
	Kind   string `form:"kind" enums:"sell,buy" example:"sell"`
	// When true, amounts are whole token quantities.
	Human bool `form:"human"`
}

// QuoteResponse is the quote plus its amounts in whole tokens.
type QuoteResponse struct {
	*domain.QuoteResult
	AmountInTokens  string `json:"amountInTokens"`
	AmountOutTokens string `json:"amountOutTokens"`
}

func parseTradeKind(s string) (domain.TradeKind, bool) {
	switch strings.ToLower(s) {
	case "", "sell":
		return domain.TradeKindSell, true
	case "buy":
		return domain.TradeKindBuy, true
	}
	return 0, false
}

// @Summary Get a pool quote
// @Description Prices a sell or buy against the omnipool at the current state. Quotes are cached until the pool state changes.
// @Tags quote
// @Produce json
// @Param assetIn query int true "Asset sold"
// @Param assetOut query int true "Asset bought"
// @Param amount query string true "Amount in smallest units, or whole tokens when human=true"
// @Param kind query string false "sell or buy" Enums(sell, buy) default(sell)
// @Param human query bool false "Interpret amount as whole tokens"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}
	in, err := parseAssetID(req.AssetIn)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	out, err := parseAssetID(req.AssetOut)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	kind, ok := parseTradeKind(req.Kind)
	if !ok {
		httputil.BadRequest(c, "invalid kind: must be sell or buy")
		return
	}

	inDecimals, err := decimalsOf(h.engine, in)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	outDecimals, err := decimalsOf(h.engine, out)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	amountDecimals := inDecimals
	if kind == domain.TradeKindBuy {
		amountDecimals = outDecimals
	}
	amount, err := parseAmount(req.Amount, amountDecimals, req.Human)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	q, err := h.engine.Quote(kind, in, out, amount)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Success(c, QuoteResponse{
		QuoteResult:     q,
		AmountInTokens:  humanAmount(q.AmountIn, inDecimals),
		AmountOutTokens: humanAmount(q.AmountOut, outDecimals),
	})
}
