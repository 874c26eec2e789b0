package router

import (
	"livepoll/internal/handlers"
	"livepoll/internal/metrics"
	"livepoll/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Sessions *handlers.SessionHandler
	Votes    *handlers.VoteHandler
	Results  *handlers.ResultsHandler
	Stream   *handlers.StreamHandler
	Health   *handlers.HealthHandler
}

type Options struct {
	AdminToken    string
	VoteRateLimit int
	APIRateLimit  int
}

// New 创建已挂载日志和 recovery 中间件的 engine
func New() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())
	return r
}

func RegisterRoutes(r *gin.Engine, h Handlers, opts Options) {
	r.GET("/healthz", h.Health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	// 参与者 (Participants)
	public := api.Group("/public/sessions/:joinCode")
	public.Use(middleware.RateLimit(opts.APIRateLimit))
	{
		public.GET("", h.Sessions.Public)
		public.GET("/voting-status", h.Votes.Status)
		public.POST("/votes", middleware.RateLimit(opts.VoteRateLimit), h.Votes.Submit)
	}

	// 结果 (Viewers)
	results := api.Group("/results")
	results.Use(middleware.RateLimit(opts.APIRateLimit))
	{
		results.GET("/sessions/:joinCode", h.Results.Session)
		results.GET("/sessions/:joinCode/analytics", h.Results.Analytics)
		results.GET("/sessions/:joinCode/stream", h.Stream.Stream)
		results.GET("/questions/:questionId", h.Results.Question)
		results.GET("/stats", middleware.AdminRequired(opts.AdminToken), h.Results.Stats)
	}

	// 管理 (Operators)
	admin := api.Group("/admin/sessions")
	admin.Use(middleware.AdminRequired(opts.AdminToken))
	{
		admin.POST("", h.Sessions.Create)
		admin.PATCH("/:id/status", h.Sessions.UpdateStatus)
		admin.POST("/:id/reset", h.Sessions.Reset)
		admin.DELETE("/:id", h.Sessions.Delete)
		admin.GET("/:id/queue", h.Sessions.Queue)
		admin.DELETE("/:id/queue", h.Sessions.ClearQueue)
	}
}
