package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
)

func (s *Server) SubmitUnit(c *gin.Context) {
	var req unitdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.unitSvc.Submit(c.Request.Context(), s.caller(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

type submitUnitBatchRequest struct {
	Units []unitdomain.SubmitRequest `json:"units"`
}

func (s *Server) SubmitUnitBatch(c *gin.Context) {
	var req submitUnitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.unitSvc.SubmitBatch(c.Request.Context(), s.caller(c), req.Units)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"units": created})
}

func (s *Server) GetUnit(c *gin.Context) {
	found, err := s.unitSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

func (s *Server) UnitExists(c *gin.Context) {
	exists, err := s.unitSvc.Exists(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (s *Server) GetUnitsByOwner(c *gin.Context) {
	ids, err := s.unitSvc.GetByOwner(c.Request.Context(), c.Param("owner"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ids": ids})
}
