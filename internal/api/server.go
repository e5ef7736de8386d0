// Package api is a read-only HTTP inspection surface over the simulator:
// it never touches internal/exchange's request channel directly, only
// internal/client's façade, the same "API layer talks through an interface"
// split the teacher's service.go used. Grounded in the teacher's gin-based
// server/handlers/websocket shape.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"simexchange/internal/client"
	"simexchange/internal/historical"
)

// Server wires HTTP endpoints around one client façade and (optionally) the
// historical store's admin operations.
type Server struct {
	Router    *gin.Engine
	client    *client.Client
	store     *historical.Store
	jwtSecret []byte
}

// NewServer builds the router and registers every route. jwtSecret may be
// empty, in which case the admin route is unauthenticated (fine for local
// backtest runs, never for anything exposed beyond localhost).
func NewServer(cl *client.Client, store *historical.Store, jwtSecret string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Router:    gin.New(),
		client:    cl,
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}
	s.Router.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	s.Router.GET("/balances", s.getBalances)
	s.Router.GET("/positions", s.getPositions)
	s.Router.GET("/orders/open", s.getOpenOrders)
	s.Router.GET("/events", s.streamEvents)

	admin := s.Router.Group("/admin")
	admin.Use(s.requireBearer())
	admin.POST("/drop-tables", s.dropTables)
}

// requestLogger is the same short-status-tag log.Printf style the teacher
// uses throughout its middleware, trimmed to one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		gin.DefaultWriter.Write([]byte(
			c.Request.Method + " " + c.Request.URL.Path + " " +
				http.StatusText(c.Writer.Status()) + " " + time.Since(start).String() + "\n"))
	}
}
