package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type submitDraftRequest struct {
	LinkedUnitIDs []string `json:"linked_unit_ids"`
}

func (s *Server) SubmitDraft(c *gin.Context) {
	var req submitDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.draftSvc.Submit(c.Request.Context(), s.caller(c), req.LinkedUnitIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) GetDraft(c *gin.Context) {
	found, err := s.draftSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

func (s *Server) GetDraftsByOwner(c *gin.Context) {
	indexFrom, err := parseIndexParam(c.Query("index_from"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	indexTo, err := parseIndexParam(c.Query("index_to"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ids, err := s.draftSvc.GetByOwner(c.Request.Context(), c.Param("owner"), indexFrom, indexTo)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func parseIndexParam(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
