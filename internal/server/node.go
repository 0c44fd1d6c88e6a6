package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
)

type registerNodeRequest struct {
	NodeID      string `json:"nodeId"`
	NodeName    string `json:"nodeName"`
	DeviceID    string `json:"deviceId"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type updateNodeRequest struct {
	NodeName    *string `json:"nodeName,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
}

func (s *Server) RegisterNode(c *gin.Context) {
	var req registerNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.nodes.Register(c.Request.Context(), nodedomain.RegisterRequest{
		NodeID:      strings.TrimSpace(req.NodeID),
		NodeName:    strings.TrimSpace(req.NodeName),
		DeviceID:    strings.TrimSpace(req.DeviceID),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListNodes(c *gin.Context) {
	resp, err := s.nodes.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(resp), "data": resp})
}

func (s *Server) ListNodesByDevice(c *gin.Context) {
	resp, err := s.nodes.ListByDevice(c.Request.Context(), strings.TrimSpace(c.Param("deviceId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(resp), "data": resp})
}

func (s *Server) GetNode(c *gin.Context) {
	resp, err := s.nodes.GetByNodeID(c.Request.Context(), strings.TrimSpace(c.Param("nodeId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateNodeStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.nodes.UpdateStatus(
		c.Request.Context(),
		strings.TrimSpace(c.Param("nodeId")),
		strings.ToLower(strings.TrimSpace(req.Status)),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateNode(c *gin.Context) {
	var req updateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.nodes.Update(c.Request.Context(), nodedomain.UpdateRequest{
		NodeID:      strings.TrimSpace(c.Param("nodeId")),
		NodeName:    trimStringPtr(req.NodeName),
		Description: trimStringPtr(req.Description),
		Location:    trimStringPtr(req.Location),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteNode(c *gin.Context) {
	if err := s.nodes.Delete(c.Request.Context(), strings.TrimSpace(c.Param("nodeId"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
