package delivery

import (
	"net/http"
	"net/http/httputil"
	"time"
	"triage_service/internal/domain"
	"triage_service/internal/middleware"
	"triage_service/internal/proxy"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Auth          domain.AuthUseCase
	Patients      domain.PatientUseCase
	Diagnosis     domain.DiagnosisUseCase
	Syndrome      domain.SyndromeUseCase
	Treatments    TreatmentLookup
	ChatProxy     *httputil.ReverseProxy
	APIKeySet     bool
	MaxImageBytes int64
	AllowOrigins  []string
}

// NewRouter mounts every HTTP endpoint under /api, plus /health.
func NewRouter(cfg RouterConfig, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	router.MaxMultipartMemory = cfg.MaxImageBytes + (1 << 20)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"aiUpstream": cfg.APIKeySet,
			"time":       time.Now().UTC().Format(time.RFC3339),
		})
	})

	requireSession := middleware.AuthMiddleware(cfg.Auth, logger)
	api := router.Group("/api")

	NewAuthHandler(cfg.Auth, logger).RegisterRoutes(api, requireSession)
	NewPatientHandler(cfg.Patients, logger).RegisterRoutes(api, requireSession)
	NewDiagnosisHandler(cfg.Diagnosis, cfg.APIKeySet, cfg.MaxImageBytes, logger).RegisterRoutes(api)
	NewSyndromeHandler(cfg.Syndrome, cfg.Treatments, logger).RegisterRoutes(api)

	if cfg.ChatProxy != nil {
		api.POST("/deepseek/chat", proxy.ProxyHandler(cfg.ChatProxy, cfg.APIKeySet, logger))
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
