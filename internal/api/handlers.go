package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getBalances(c *gin.Context) {
	balances, err := s.client.FetchBalances(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.client.FetchPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) getOpenOrders(c *gin.Context) {
	orders, err := s.client.FetchOrdersOpen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// dropTables maps to C2's drop_tables_matching admin operation (spec §4.1),
// guarded by requireBearer since it mutates the historical store.
func (s *Server) dropTables(c *gin.Context) {
	var body struct {
		Substring string `json:"substring" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no historical store configured"})
		return
	}
	if err := s.store.DropTablesMatching(c.Request.Context(), body.Substring); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped_matching": body.Substring})
}
