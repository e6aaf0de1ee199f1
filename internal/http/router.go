package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/http/api/v1/handlers"
	"github.com/metergate/metergate/internal/ledger"
	"github.com/metergate/metergate/internal/tokenizer"
)

// RouterDeps carries the services the API surface is built from.
type RouterDeps struct {
	DB         *gorm.DB
	Config     *config.Manager
	Estimator  *ledger.Estimator
	Engine     *ledger.Engine
	Guard      *ledger.Guard
	Pricing    *ledger.Pricing
	Reconciler *ledger.Reconciler
	Counter    tokenizer.Counter
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	counter := deps.Counter
	if counter == nil {
		counter = tokenizer.Estimator{}
	}

	inlet := handlers.NewInletHandler(deps.Estimator)
	outlet := handlers.NewOutletHandler(deps.Engine, counter)
	users := handlers.NewUsersHandler(deps.DB)
	groups := handlers.NewGroupsHandler(deps.DB)
	modelPrices := handlers.NewModelsHandler(deps.DB, deps.Pricing)
	panel := handlers.NewPanelHandler(deps.DB, deps.Guard, deps.Reconciler)
	auth := handlers.NewAuthHandler(deps.Config)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/session", auth.CreateSession)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(deps.Config), RequireWriteMiddleware())
	{
		authed.POST("/inlet", inlet.Check)
		authed.POST("/outlet", outlet.Settle)

		authed.GET("/users", users.List)
		authed.POST("/users/:id/balance", users.SetBalance)
		authed.DELETE("/users/:id", users.Delete)
		authed.POST("/users/assign-group", users.AssignGroup)

		authed.GET("/groups", groups.List)
		authed.POST("/groups", groups.Upsert)
		authed.DELETE("/groups/:id", groups.Delete)

		authed.GET("/models", modelPrices.List)
		authed.POST("/models/price", modelPrices.UpdatePrice)

		authed.GET("/panel/global-quota", panel.GlobalQuota)
		authed.POST("/panel/maintenance", panel.Maintenance)
		authed.GET("/panel/records", panel.Records)
	}

	return router
}
