package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
)

func (s *Server) SubmitRecord(c *gin.Context) {
	var req recorddomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.recordSvc.Submit(c.Request.Context(), s.caller(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

type submitRecordBatchRequest struct {
	Records []recorddomain.SubmitRequest `json:"records"`
}

func (s *Server) SubmitRecordBatch(c *gin.Context) {
	var req submitRecordBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.recordSvc.SubmitBatch(c.Request.Context(), s.caller(c), req.Records)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"records": created})
}

func (s *Server) GetRecord(c *gin.Context) {
	found, err := s.recordSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

func (s *Server) RecordExists(c *gin.Context) {
	exists, err := s.recordSvc.Exists(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (s *Server) GetRecordsByOwner(c *gin.Context) {
	ids, err := s.recordSvc.GetByOwner(c.Request.Context(), c.Param("owner"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ids": ids})
}
