package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
)

type registerAgentRequest struct {
	Address     string `json:"address" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

type agentResponse struct {
	Address      string `json:"address"`
	DisplayName  string `json:"display_name"`
	Status       string `json:"status"`
	RegisteredAt string `json:"registered_at"`
}

func toAgentResponse(a *agentdomain.Agent) agentResponse {
	return agentResponse{
		Address:      a.Address,
		DisplayName:  a.DisplayName,
		Status:       a.Status.String(),
		RegisteredAt: a.RegisteredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func (s *Server) RegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.agentSvc.Register(c.Request.Context(), s.caller(c), req.Address, req.DisplayName)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAgentResponse(created))
}

type updateAgentStatusRequest struct {
	Status *int16 `json:"status" binding:"required"`
}

func (s *Server) UpdateAgentStatus(c *gin.Context) {
	var req updateAgentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.agentSvc.UpdateStatus(c.Request.Context(), s.caller(c), c.Param("address"), agentdomain.Status(*req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetAgent(c *gin.Context) {
	found, err := s.agentSvc.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAgentResponse(found))
}

func (s *Server) ListAgents(c *gin.Context) {
	addresses, err := s.agentSvc.ListAll(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}
