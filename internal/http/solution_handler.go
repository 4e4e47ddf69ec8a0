package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

// SolutionHandler is the surface for external solvers: they read the
// snapshot, solve offline and propose for the open round.
type SolutionHandler struct {
	engine *engine.Service
}

func NewSolutionHandler(engine *engine.Service) *SolutionHandler {
	return &SolutionHandler{engine: engine}
}

func (h *SolutionHandler) Root() string {
	return "/solutions"
}

func (h *SolutionHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/snapshot", h.getSnapshot)
	pub.GET("/best", h.getBest)
	pub.POST("", h.propose)
}

// @Summary Get the solver snapshot
// @Description Current round, pool assets and pending intents.
// @Tags solutions
// @Produce json
// @Success 200 {object} domain.Snapshot
// @Router /api/v1/solutions/snapshot [get]
func (h *SolutionHandler) getSnapshot(c *gin.Context) {
	httputil.Success(c, h.engine.Snapshot())
}

// @Summary Get the best proposal of the open round
// @Tags solutions
// @Produce json
// @Success 200 {object} domain.Solution
// @Failure 404 {object} httputil.Response
// @Router /api/v1/solutions/best [get]
func (h *SolutionHandler) getBest(c *gin.Context) {
	best, ok := h.engine.Best()
	if !ok {
		httputil.Fail(c, toHttpError(solver.ErrNoSolution))
		return
	}
	httputil.Success(c, best)
}

type ProposeRequest struct {
	Proposer string          `json:"proposer" binding:"required" example:"solver-1"`
	Solution domain.Solution `json:"solution"`
}

type ProposeResponse struct {
	Round uint64 `json:"round"`
	Score uint64 `json:"score"`
}

// @Summary Propose a solution
// @Description The executor validates the solution against the open round and keeps it when it beats the current best score.
// @Tags solutions
// @Accept json
// @Produce json
// @Param request body ProposeRequest true "Solution"
// @Success 200 {object} ProposeResponse
// @Failure 422 {object} httputil.Response "Rejected, code carries the reason"
// @Router /api/v1/solutions [post]
func (h *SolutionHandler) propose(c *gin.Context) {
	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	round := req.Solution.Round
	score, err := h.engine.Propose(req.Proposer, &req.Solution, round)
	if err != nil {
		httputil.Fail(c, toHttpError(err))
		return
	}
	httputil.Success(c, ProposeResponse{Round: round, Score: score})
}
