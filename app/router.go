package app

import (
	"bitwise74/waitlist-api/app/root"
	"bitwise74/waitlist-api/app/user"
	"bitwise74/waitlist-api/app/waitlist"
	"bitwise74/waitlist-api/app/web"
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/pkg/middleware"
	"fmt"
	"net/http"
	"slices"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRouter builds the HTTP engine on top of already constructed dependencies
func NewRouter(d *internal.Deps) (*gin.Engine, error) {
	if d.Cache == nil {
		d.Cache = persist.NewMemoryStore(time.Minute)
	}

	router := gin.New()

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates, %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	corsConfig := cors.Config{
		AllowOrigins:     d.Config.Host.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if slices.Contains(corsConfig.AllowOrigins, "*") {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	router.Use(
		cors.New(corsConfig),
		middleware.NewRequestIDMiddleware(),
		gin.CustomRecovery(func(c *gin.Context, err any) {
			zap.L().Error("Recovered from panic", zap.Any("panic", err), zap.String("requestID", c.GetString("requestID")))

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": c.GetString("requestID"),
			})
		}),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD" || c.Request.URL.Path == "/metrics"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
		metrics.Middleware(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.GetString("requestID"),
		})
	})

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method not allowed",
			"requestID": c.GetString("requestID"),
		})
	})

	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: d.Config.Security.RateLimit,
		Burst:             d.Config.Security.RateLimit * 2,
	})
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled: d.Config.Turnstile.Enabled,
		Secret:  d.Config.Turnstile.SecretToken,
	})
	supabaseAuth := middleware.NewSupabaseAuthMiddleware(d.Config.Security.JWTSecret)
	cacheFor := cacheWith(d.Cache, d.Config.Cache.TTL)

	// GET /metrics			-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	m := router.Group("/api", rateLimiter, middleware.BodySizeLimiter(1<<20))
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
		m.GET("/heartbeat", root.Heartbeat)

		// POST /api/signup		-> Adds a new user to the waitlist
		m.POST("/signup", turnstile, func(c *gin.Context) { user.UserSignup(c, d) })

		// POST /api/create-profile	-> Creates the profile of a user registered through Supabase auth
		m.POST("/create-profile", supabaseAuth, func(c *gin.Context) { user.UserCreateProfile(c, d) })

		// GET /api/stats		-> Returns the total amount of users
		m.GET("/stats", cacheFor, func(c *gin.Context) { waitlist.Stats(c, d) })

		// GET /api/leaderboard		-> Returns the best ranked users
		m.GET("/leaderboard", cacheFor, func(c *gin.Context) { waitlist.Leaderboard(c, d) })
	}

	u := m.Group("/user")
	{
		// GET /api/user?id=|email=	-> Returns a single user
		u.GET("", func(c *gin.Context) { user.UserFetch(c, d) })

		// GET /api/user/position?code=	-> Returns the standing of a referral code owner
		u.GET("/position", func(c *gin.Context) { user.UserPosition(c, d) })
	}

	p := router.Group("", rateLimiter)
	{
		// GET /		-> Landing page with stats and leaderboard
		p.GET("/", func(c *gin.Context) { web.Landing(c, d) })

		// GET /signup		-> Signup form, ?ref= prefills the referral code
		p.GET("/signup", func(c *gin.Context) { web.SignupPage(c, d) })

		// POST /signup		-> Form submission, redirects to the dashboard
		p.POST("/signup", middleware.BodySizeLimiter(1<<16), turnstile, func(c *gin.Context) { web.SignupSubmit(c, d) })

		// GET /dashboard?id=	-> A user's code, link and rank
		p.GET("/dashboard", func(c *gin.Context) { web.Dashboard(c, d) })
	}

	return router, nil
}

// cacheWith returns a response cache keyed by request URI. A zero ttl turns
// caching off
func cacheWith(store persist.CacheStore, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return cache.CacheByRequestURI(store, ttl)
}
