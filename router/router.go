// Package router wires controllers and middleware into a gin engine.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/controllers"
	"github.com/princinho/eventhub/middleware"
	"github.com/princinho/eventhub/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// New builds the engine. limiter throttles login, registration and the mail
// sending routes.
func New(d *controllers.Deps, limiter middleware.Limiter) *gin.Engine {
	controllers.RegisterValidators()

	r := gin.New()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(corsMiddleware(d.Config.App.AllowedOrigins, d.Log))
	if d.Metrics != nil {
		r.Use(middleware.HTTPMetrics(d.Metrics))
	}
	r.Use(middleware.ErrorHandler(d.Log))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if local, ok := d.Uploader.(*storage.LocalStorage); ok {
		r.Static(local.URLPrefix(), local.Dir())
	}

	guard := middleware.AccessGuard(d.Sessions)
	throttle := middleware.RateLimit(limiter, d.Metrics, d.Log)

	authCtl := controllers.NewAuthController(d)
	userCtl := controllers.NewUserController(d)
	eventCtl := controllers.NewEventController(d)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", throttle, authCtl.Register())
		authGroup.POST("/login", throttle, authCtl.Login())
		authGroup.POST("/refresh_token", authCtl.RefreshToken())
		authGroup.POST("/logout", guard, authCtl.Logout())
		authGroup.GET("/me", guard, authCtl.Me())
	}

	userGroup := api.Group("/user")
	{
		userGroup.POST("/me/password", guard, userCtl.ChangeMyPassword())
		userGroup.POST("/verification-email", throttle, guard, userCtl.SendVerificationEmail())
		userGroup.GET("/email-confirmation", userCtl.ConfirmEmail())
		userGroup.POST("/password-reset/request", throttle, userCtl.RequestPasswordReset())
		userGroup.GET("/password-reset/validate", userCtl.ValidatePasswordReset())
		userGroup.POST("/password-reset", throttle, userCtl.ResetPassword())

		userGroup.GET("/:userId", middleware.OptionalAuth(d.Sessions), userCtl.GetUser())
		userGroup.PUT("/:userId", guard, userCtl.UpdateUser())
		userGroup.POST("/:userId/email", guard, userCtl.ChangeEmail())
		userGroup.POST("/:userId/username", guard, userCtl.ChangeUsername())
	}

	eventGroup := api.Group("/events")
	{
		eventGroup.GET("", eventCtl.ListEvents())
		eventGroup.POST("", guard, eventCtl.CreateEvent())
		eventGroup.GET("/:eventId", guard, eventCtl.GetEvent())
		eventGroup.POST("/:eventId/administrators", guard, eventCtl.AddAdministrators())
		eventGroup.DELETE("/:eventId/administrators/:adminId", guard, eventCtl.RemoveAdministrator())
		eventGroup.POST("/:eventId/subscribe", guard, eventCtl.Subscribe())
		eventGroup.POST("/:eventId/unsubscribe", guard, eventCtl.Unsubscribe())
	}

	return r
}

func corsMiddleware(origins []string, log *zap.Logger) gin.HandlerFunc {
	allowedOrigins := make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}
	log.Info("cors configured", zap.Strings("allowed_origins", origins))

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
