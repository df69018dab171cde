package handler

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"itemsim/internal/config"
	"itemsim/internal/metrics"
	"itemsim/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configureBinding sync.Once

// SetupRouter builds the gin engine with every route. locker may be nil.
func SetupRouter(db *gorm.DB, locker service.CharacterLocker, cfg *config.Config, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	configureBinding.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			// report json names in validation messages
			v.RegisterTagNameFunc(func(field reflect.StructField) string {
				name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware(log))
	}

	h := NewHandler(db, locker, cfg, log)
	requireAuth := AuthMiddleware(h.authService, log)
	optionalAuth := OptionalAuthMiddleware(h.authService)
	catalogAdmin := CatalogAdminMiddleware(h.authService, log)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Signup)
			auth.POST("/login", h.Login)
		}

		characters := api.Group("/characters")
		{
			characters.POST("", requireAuth, h.CreateCharacter)
			characters.DELETE("/:id", requireAuth, h.DeleteCharacter)
			characters.GET("/:id", optionalAuth, h.GetCharacter)
			characters.GET("/:id/getinv", requireAuth, h.GetInventory)
			characters.GET("/:id/getequip", h.GetEquipment)
			characters.GET("/:id/ledger", requireAuth, h.GetLedger)
			characters.POST("/:id/equip", requireAuth, h.Equip)
			characters.POST("/:id/unequip", requireAuth, h.Unequip)
			characters.POST("/:id/mining", requireAuth, h.Mine)
		}

		items := api.Group("/items")
		{
			items.POST("", requireAuth, catalogAdmin, h.CreateItem)
			items.GET("", h.ListItems)
			items.GET("/:itemCode", h.GetItem)
			items.PATCH("/:itemCode", requireAuth, catalogAdmin, h.UpdateItem)
			items.POST("/:charId/purchase", requireAuth, h.Purchase)
			items.POST("/:charId/sell", requireAuth, h.Sell)
		}

		rank := api.Group("/rank")
		{
			rank.GET("/pow", h.RankByPower)
			rank.GET("/hp", h.RankByHealth)
			rank.GET("/item", h.RankByItemCount)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
