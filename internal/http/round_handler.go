package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
)

type RoundHandler struct {
	engine *engine.Service
}

func NewRoundHandler(engine *engine.Service) *RoundHandler {
	return &RoundHandler{engine: engine}
}

func (h *RoundHandler) Root() string {
	return "/rounds"
}

func (h *RoundHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/current", h.getCurrent)
	admin.POST("/close", h.closeRound)
}

type RoundResponse struct {
	Round      uint64 `json:"round"`
	IntervalMs int64  `json:"intervalMs"`
	Pending    int    `json:"pending"`
	BestScore  uint64 `json:"bestScore"`
	Proposer   string `json:"proposer,omitempty"`
}

type CloseRoundResponse struct {
	Round    uint64                                  `json:"round"`
	Proposer string                                  `json:"proposer,omitempty"`
	Score    uint64                                  `json:"score"`
	Resolved []domain.ResolvedIntent                 `json:"resolved"`
	Expired  []domain.IntentID                       `json:"expired"`
	Fees     map[domain.AssetID]dynamicfees.FeeEntry `json:"fees,omitempty"`
}

// @Summary Get the open round
// @Tags rounds
// @Produce json
// @Success 200 {object} RoundResponse
// @Router /api/v1/rounds/current [get]
func (h *RoundHandler) getCurrent(c *gin.Context) {
	resp := RoundResponse{
		Round:      h.engine.Round(),
		IntervalMs: h.engine.RoundInterval().Milliseconds(),
		Pending:    len(h.engine.Snapshot().Intents),
	}
	if best, ok := h.engine.Best(); ok {
		resp.BestScore = best.Score
		resp.Proposer = best.Proposer
	}
	httputil.Success(c, resp)
}

// @Summary Close the open round now
// @Description Applies the best proposal, expires stale intents and recomputes dynamic fees.
// @Tags admin
// @Produce json
// @Success 200 {object} CloseRoundResponse
// @Failure 422 {object} httputil.Response
// @Router /api/v1/admin/rounds/close [post]
func (h *RoundHandler) closeRound(c *gin.Context) {
	result, err := h.engine.CloseRound()
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	resp := CloseRoundResponse{
		Round:    result.Round,
		Proposer: result.Proposer,
		Score:    result.Score,
		Resolved: []domain.ResolvedIntent{},
		Expired:  make([]domain.IntentID, 0, len(result.Expired)),
		Fees:     result.Fees,
	}
	for _, in := range result.Expired {
		resp.Expired = append(resp.Expired, in.ID)
	}
	if result.Solution != nil {
		resp.Resolved = result.Solution.ResolvedIntents
	}
	httputil.Success(c, resp)
}
