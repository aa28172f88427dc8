package api

import (
	"errors"
	"net/http"

	"tickle-go/internal/models"
	"tickle-go/internal/net/database"

	"github.com/gin-gonic/gin"
)

type ReportQueryParams struct {
	Name  string `form:"name"`
	Limit int    `form:"limit" binding:"gte=0"`
}

func (s *Server) GetMonitoringReport(c *gin.Context) {
	var queryParams ReportQueryParams

	if err := c.ShouldBindQuery(&queryParams); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid query parameters", "error": err.Error()})
		return
	}

	if queryParams.Limit == 0 {
		queryParams.Limit = 1000
	}

	if queryParams.Name == "" {
		summaries, err := s.db.Summaries()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve sites", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summaries)
		return
	}

	history, err := s.db.History(queryParams.Name, queryParams.Limit)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve site history", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) GetSites(c *gin.Context) {
	specs := make([]models.SiteSpec, 0, len(s.sites))
	for _, site := range s.sites {
		specs = append(specs, site.Spec())
	}

	c.JSON(http.StatusOK, specs)
}

func (s *Server) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "tickle-go",
	})
}
