package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
)

type registerDeviceRequest struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	Description string `json:"description"`
	IPAddress   string `json:"ipAddress"`
	Location    string `json:"location"`
}

type updateDeviceRequest struct {
	DeviceName  *string `json:"deviceName,omitempty"`
	Description *string `json:"description,omitempty"`
	IPAddress   *string `json:"ipAddress,omitempty"`
	Location    *string `json:"location,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.devices.Register(c.Request.Context(), devicedomain.RegisterRequest{
		DeviceID:    strings.TrimSpace(req.DeviceID),
		DeviceName:  strings.TrimSpace(req.DeviceName),
		Description: strings.TrimSpace(req.Description),
		IPAddress:   strings.TrimSpace(req.IPAddress),
		Location:    strings.TrimSpace(req.Location),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListDevices(c *gin.Context) {
	resp, err := s.devices.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(resp), "data": resp})
}

func (s *Server) GetDevice(c *gin.Context) {
	resp, err := s.devices.GetByDeviceID(c.Request.Context(), strings.TrimSpace(c.Param("deviceId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateDeviceStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.devices.UpdateStatus(
		c.Request.Context(),
		strings.TrimSpace(c.Param("deviceId")),
		strings.ToLower(strings.TrimSpace(req.Status)),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.devices.Update(c.Request.Context(), devicedomain.UpdateRequest{
		DeviceID:    strings.TrimSpace(c.Param("deviceId")),
		DeviceName:  trimStringPtr(req.DeviceName),
		Description: trimStringPtr(req.Description),
		IPAddress:   trimStringPtr(req.IPAddress),
		Location:    trimStringPtr(req.Location),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteDevice(c *gin.Context) {
	if err := s.devices.Delete(c.Request.Context(), strings.TrimSpace(c.Param("deviceId"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func trimStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
