package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/keymasterhq/keymaster/internal/auth"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/auth/session"
	"github.com/keymasterhq/keymaster/internal/authorization"
	"github.com/keymasterhq/keymaster/internal/config"
	"github.com/keymasterhq/keymaster/internal/device"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	"github.com/keymasterhq/keymaster/internal/licensekey"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/internal/notify"
	"github.com/keymasterhq/keymaster/internal/observability"
	obslogger "github.com/keymasterhq/keymaster/internal/observability/logger"
	obsmetrics "github.com/keymasterhq/keymaster/internal/observability/metrics"
	obstracing "github.com/keymasterhq/keymaster/internal/observability/tracing"
	"github.com/keymasterhq/keymaster/internal/ratelimit"
	"github.com/keymasterhq/keymaster/internal/referral"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	"github.com/keymasterhq/keymaster/internal/reseller"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"github.com/keymasterhq/keymaster/internal/update"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"github.com/keymasterhq/keymaster/internal/verify"
	verifydomain "github.com/keymasterhq/keymaster/internal/verify/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	authorization.Module,
	auth.Module,
	licensekey.Module,
	device.Module,
	verify.Module,
	reseller.Module,
	referral.Module,
	update.Module,
	notify.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func registerRoutes(s *Server) {
	s.registerVerifyRoutes()
	s.registerPublicRoutes()
	s.registerAuthRoutes()
	s.registerAdminRoutes()
	s.registerResellerRoutes()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	sessions      *session.Manager
	games         *config.GameCatalog
	authSvc       authdomain.Service
	authzSvc      authorization.Service
	verifySvc     verifydomain.Service
	keySvc        keydomain.Service
	deviceSvc     devicedomain.Service
	resellerSvc   resellerdomain.Service
	referralSvc   referraldomain.Service
	updateSvc     updatedomain.Service
	verifyLimiter *ratelimit.VerifyLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Sessions      *session.Manager
	Games         *config.GameCatalog
	AuthSvc       authdomain.Service
	AuthzSvc      authorization.Service
	VerifySvc     verifydomain.Service
	KeySvc        keydomain.Service
	DeviceSvc     devicedomain.Service
	ResellerSvc   resellerdomain.Service
	ReferralSvc   referraldomain.Service
	UpdateSvc     updatedomain.Service
	VerifyLimiter *ratelimit.VerifyLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		sessions:      p.Sessions,
		games:         p.Games,
		authSvc:       p.AuthSvc,
		authzSvc:      p.AuthzSvc,
		verifySvc:     p.VerifySvc,
		keySvc:        p.KeySvc,
		deviceSvc:     p.DeviceSvc,
		resellerSvc:   p.ResellerSvc,
		referralSvc:   p.ReferralSvc,
		updateSvc:     p.UpdateSvc,
		verifyLimiter: p.VerifyLimiter,
	}
}
