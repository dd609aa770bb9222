package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	postH *PostHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)
	auth.POST("/forgot-password", userH.ForgotPassword)
	auth.POST("/reset-password", userH.ResetPassword)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)

	me := r.Group("/me", JWTAuthMiddleware(jwtSvc))
	me.GET("", userH.Me)
	me.PATCH("", userH.UpdateMe)
	me.POST("/change-password", userH.ChangePassword)
	me.POST("/change-username", userH.ChangeUsername)
	me.GET("/username-history", userH.UsernameHistory)

	r.GET("/posts", postH.ListPosts)
	r.GET("/posts/:id", postH.GetPost)
	r.GET("/posts/:id/comments", postH.ListComments)

	posts := r.Group("/posts", JWTAuthMiddleware(jwtSvc))
	posts.POST("", postH.CreatePost)
	posts.PUT("/:id", postH.UpdatePost)
	posts.DELETE("/:id", postH.DeletePost)
	posts.POST("/:id/comments", postH.CreateComment)

	comments := r.Group("/comments", JWTAuthMiddleware(jwtSvc))
	comments.PUT("/:id", postH.UpdateComment)
	comments.DELETE("/:id", postH.DeleteComment)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
