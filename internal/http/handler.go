package http

import (
	"context"
	"errors"
	"fmt"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/omnipool-engine/internal/config"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
	"github.com/hxuan190/omnipool-engine/internal/http/middlewares"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"

	rateLimiterIdle = 10 * time.Minute
)

type HTTPService struct {
	container.BaseDIInstance

	engineSvc   *engine.Service
	rateLimiter *middlewares.RateLimiter
	server      *gohttp.Server
	conf        *config.GeneralConfig
	cancel      context.CancelFunc

	handlers []httputil.IHttpHandler
}

// NewHTTPService builds the service outside the DI container.
func NewHTTPService(conf *config.GeneralConfig, engineSvc *engine.Service) *HTTPService {
	svc := &HTTPService{}
	svc.setup(conf, engineSvc)
	return svc
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if !ok || conf == nil {
		return errors.New("invalid server config")
	}
	svc.setup(conf, c.Instance(engine.ENGINE_SERVICE).(*engine.Service))
	return nil
}

func (svc *HTTPService) setup(conf *config.GeneralConfig, engineSvc *engine.Service) {
	svc.conf = conf
	svc.engineSvc = engineSvc
	svc.rateLimiter = middlewares.NewRateLimiter(conf.RateLimit, conf.RateBurst)

	svc.handlers = []httputil.IHttpHandler{
		NewAssetHandler(engineSvc),
		NewIntentHandler(engineSvc),
		NewQuoteHandler(engineSvc),
		NewSolutionHandler(engineSvc),
		NewRoundHandler(engineSvc),
		NewLiquidityHandler(engineSvc),
	}
}

// Router builds the gin engine with every route registered.
func (svc *HTTPService) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middlewares.RequestID())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders("Authorization", middlewares.RequestIDHeader)
	corsConf.AddExposeHeaders(middlewares.RequestIDHeader)
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())
	r.Use(svc.rateLimiter.RateLimitMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok", "round": svc.engineSvc.Round()})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	priv := api.Group(API_VERSION)

	admin := api.Group(fmt.Sprintf("%s/admin", API_VERSION))
	admin.Use(middlewares.AdminAuth(svc.conf.AdminToken))

	svc.setupHandlers(pub, priv, admin)
	return r
}

func (svc *HTTPService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	go svc.cleanupVisitors(ctx)

	svc.server = &gohttp.Server{
		Addr:              svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}

	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
	}
	if svc.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

func (svc *HTTPService) cleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.rateLimiter.Cleanup(rateLimiterIdle)
		}
	}
}

func (svc *HTTPService) setupHandlers(
	rootPub *gin.RouterGroup,
	rootPriv *gin.RouterGroup,
	rootAdmin *gin.RouterGroup,
) {
	for _, h := range svc.handlers {
		pub := rootPub.Group(h.Root())
		priv := rootPriv.Group(h.Root())
		admin := rootAdmin.Group(h.Root())
		h.SetRoutes(pub, priv, admin)
	}
}
