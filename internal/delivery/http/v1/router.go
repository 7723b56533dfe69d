package v1

import (
	"net/http"
	"time"

	"contactus-backend/config"
	"contactus-backend/internal/delivery/http/middleware"
	"contactus-backend/internal/delivery/http/response"
	"contactus-backend/internal/domain"
	"contactus-backend/internal/usecase"
	"contactus-backend/pkg/security"
	"contactus-backend/pkg/security/antivirus"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	ContactUC      domain.ContactUsecase
	Scanner        antivirus.Scanner
	SecurityLogger *security.SecurityLogger
	Verifier       middleware.TokenVerifier
	HealthUC       usecase.HealthUsecase
	Config         *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimitConfig(
		cfg.RateLimitGlobalThreshold, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)))

	v1 := r.Group("/v1")

	v1.GET("/health", healthHandler(deps.HealthUC))

	// Public routes; signed-in users are identified but never required
	public := v1.Group("")
	public.Use(middleware.OptionalAuth(deps.Verifier))
	NewContactHandler(public, ContactHandlerDeps{
		ContactUC:      deps.ContactUC,
		Scanner:        deps.Scanner,
		SecurityLogger: deps.SecurityLogger,
		AppHostName:    cfg.AppHostName,
		AppHostAddress: cfg.AppHostAddress,
	}, middleware.RateLimitMiddleware(middleware.ContactRateLimitConfig(
		cfg.RateLimitContactThreshold, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)))

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// healthHandler godoc
// @Summary      Health check
// @Description  Reports the status of each configured backing service. Optional services never fail the check.
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response{data=usecase.HealthReport}
// @Router       /health [get]
func healthHandler(healthUC usecase.HealthUsecase) gin.HandlerFunc {
	if healthUC == nil {
		healthUC = usecase.NewHealthUsecase(nil)
	}
	return func(c *gin.Context) {
		report := healthUC.Check(c.Request.Context())
		message := "System operational"
		if report.Status != "ok" {
			message = "System degraded"
		}
		response.Success(c, http.StatusOK, message, report)
	}
}
