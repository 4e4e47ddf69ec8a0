package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
	"github.com/hxuan190/omnipool-engine/internal/intent"
)

type IntentHandler struct {
	engine *engine.Service
}

func NewIntentHandler(engine *engine.Service) *IntentHandler {
	return &IntentHandler{engine: engine}
}

func (h *IntentHandler) Root() string {
	return "/intents"
}

func (h *IntentHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listIntents)
	pub.GET("/:id", h.getIntent)
	pub.POST("", h.submitIntent)
	pub.DELETE("/:id", h.cancelIntent)
}

// SubmitIntentRequest describes a swap intent. For ExactIn amountIn is
// spent and amountOut is the minimum received; for ExactOut amountOut is
// wanted and amountIn is the most that may be paid.
type SubmitIntentRequest struct {
	Who       string `json:"who" binding:"required" example:"alice"`
	AssetIn   uint32 `json:"assetIn" example:"0"`
	AssetOut  uint32 `json:"assetOut" example:"27"`
	AmountIn  string `json:"amountIn" binding:"required" example:"100000000000000"`
	AmountOut string `json:"amountOut" binding:"required" example:"1149000000000"`
	SwapType  string `json:"swapType" example:"ExactIn"`
	// Deadline in unix milliseconds. When zero, ttlSeconds from now is used.
	Deadline   uint64 `json:"deadline"`
	TTLSeconds uint64 `json:"ttlSeconds" example:"3600"`
	Partial    bool   `json:"partial"`
	// Human amounts are token quantities scaled by the asset decimals.
	Human     bool   `json:"human"`
	OnSuccess []byte `json:"onSuccess,omitempty"`
	OnFailure []byte `json:"onFailure,omitempty"`
}

// decimalsOf returns the decimals of a pool asset or of the hub asset.
func decimalsOf(svc *engine.Service, id domain.AssetID) (uint8, error) {
	if id == svc.HubAsset() {
		return domain.HubAssetDecimals, nil
	}
	a, ok := svc.Asset(id)
	if !ok {
		return 0, executor.ErrUnknownAsset
	}
	return a.Decimals, nil
}

func (h *IntentHandler) parseSubmission(req *SubmitIntentRequest) (intent.Submission, error) {
	swapType := domain.ExactIn
	if req.SwapType != "" {
		t, err := domain.ParseSwapType(req.SwapType)
		if err != nil {
			return intent.Submission{}, err
		}
		swapType = t
	}

	in, out := domain.AssetID(req.AssetIn), domain.AssetID(req.AssetOut)
	var inDecimals, outDecimals uint8
	if req.Human {
		var err error
		if inDecimals, err = decimalsOf(h.engine, in); err != nil {
			return intent.Submission{}, err
		}
		if outDecimals, err = decimalsOf(h.engine, out); err != nil {
			return intent.Submission{}, err
		}
	}
	amountIn, err := parseAmount(req.AmountIn, inDecimals, req.Human)
	if err != nil {
		return intent.Submission{}, err
	}
	amountOut, err := parseAmount(req.AmountOut, outDecimals, req.Human)
	if err != nil {
		return intent.Submission{}, err
	}

	deadline := req.Deadline
	if deadline == 0 {
		deadline = h.engine.Now() + req.TTLSeconds*1000
	}

	return intent.Submission{
		Who: req.Who,
		Swap: domain.Swap{
			AssetIn:   in,
			AssetOut:  out,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Type:      swapType,
		},
		Deadline:  deadline,
		Partial:   req.Partial,
		OnSuccess: req.OnSuccess,
		OnFailure: req.OnFailure,
	}, nil
}

// @Summary Submit a swap intent
// @Description The intent waits in the pool until a round resolves it or its deadline passes.
// @Tags intents
// @Accept json
// @Produce json
// @Param request body SubmitIntentRequest true "Intent"
// @Success 201 {object} domain.Intent
// @Failure 400 {object} httputil.Response
// @Router /api/v1/intents [post]
func (h *IntentHandler) submitIntent(c *gin.Context) {
	var req SubmitIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	sub, err := h.parseSubmission(&req)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	in, err := h.engine.SubmitIntent(sub)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Created(c, in)
}

// @Summary List pending intents
// @Tags intents
// @Produce json
// @Param who query string false "Only intents of this account"
// @Success 200 {array} domain.Intent
// @Router /api/v1/intents [get]
func (h *IntentHandler) listIntents(c *gin.Context) {
	httputil.Success(c, h.engine.Intents(c.Query("who")))
}

// @Summary Get an intent
// @Tags intents
// @Produce json
// @Param id path string true "Intent id"
// @Success 200 {object} domain.Intent
// @Failure 404 {object} httputil.Response
// @Router /api/v1/intents/{id} [get]
func (h *IntentHandler) getIntent(c *gin.Context) {
	id, err := domain.ParseIntentID(c.Param("id"))
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	in, ok := h.engine.Intent(id)
	if !ok {
		httputil.Fail(c, toHttpError(engine.ErrIntentNotFound))
		return
	}
	httputil.Success(c, in)
}

// @Summary Cancel an intent
// @Tags intents
// @Produce json
// @Param id path string true "Intent id"
// @Param who query string true "Owner account"
// @Success 200 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Router /api/v1/intents/{id} [delete]
func (h *IntentHandler) cancelIntent(c *gin.Context) {
	id, err := domain.ParseIntentID(c.Param("id"))
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	who := c.Query("who")
	if who == "" {
		httputil.BadRequest(c, "who is required")
		return
	}
	if err := h.engine.CancelIntent(id, who); err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Success(c, gin.H{"id": id.String(), "status": "cancelled"})
}
