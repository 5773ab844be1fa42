// Package routes wires the HTTP surface: middleware, route groups and the
// background poll expiry sweep.
package routes

import (
	"log"
	"time"

	"polling-system-backend/auth"
	"polling-system-backend/cache"
	"polling-system-backend/handlers"
	"polling-system-backend/realtime"
	"polling-system-backend/vote"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the router needs. main builds it once at startup.
type Deps struct {
	DB      *gorm.DB
	Tokens  *auth.Service
	Hub     *realtime.Hub
	RT      *realtime.Service
	Votes   *vote.Processor
	Results *cache.ProjectionCache
	Locker  *cache.Locker
}

// SetupRouter builds the gin engine with all routes registered.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := handlers.NewAuthHandler(d.DB, d.Tokens)
	pollHandler := handlers.NewPollHandler(d.DB, d.RT)
	voteHandler := handlers.NewVoteHandler(d.DB, d.Votes, d.Results)
	statsHandler := handlers.NewStatsHandler(d.DB, d.Hub, d.RT)
	wsHandler := handlers.NewWSHandler(d.DB, d.Tokens, d.Hub, d.Votes)

	api := r.Group("/api")
	{
		api.GET("/health", statsHandler.Health)
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		// The live channel authenticates via token before upgrading.
		api.GET("/ws", wsHandler.Serve)

		authed := api.Group("")
		authed.Use(auth.RequireAuth(d.Tokens, d.DB))
		{
			authed.GET("/auth/me", authHandler.Me)

			authed.POST("/polls", pollHandler.Create)
			authed.GET("/polls", pollHandler.List)
			authed.GET("/polls/mine", pollHandler.Mine)
			authed.GET("/polls/:id", pollHandler.Get)
			authed.PUT("/polls/:id", pollHandler.Update)
			authed.POST("/polls/:id/close", pollHandler.Close)
			authed.DELETE("/polls/:id", pollHandler.Delete)
			authed.GET("/polls/:id/export", pollHandler.Export)

			authed.POST("/polls/:id/vote", voteHandler.Submit)
			authed.DELETE("/polls/:id/vote", voteHandler.Withdraw)
			authed.GET("/polls/:id/vote", voteHandler.CheckVote)
			authed.GET("/polls/:id/results", voteHandler.Results)
			authed.GET("/votes/mine", voteHandler.Mine)

			authed.GET("/stats", statsHandler.System)

			admin := authed.Group("")
			admin.Use(auth.RequireAdmin())
			{
				admin.GET("/stats/admin", statsHandler.Admin)
			}
		}
	}

	return r
}

// StartSweeper closes expired polls on a fixed cadence. The distributed lock
// keeps concurrent server processes from double-closing and double-notifying.
func StartSweeper(d Deps, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := d.Locker.WithLock("polls:expiry-sweep", interval, func() error {
				return handlers.CloseExpiredPolls(d.DB, d.RT)
			})
			if err != nil {
				log.Printf("routes: expiry sweep failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}
