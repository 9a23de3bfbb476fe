package http

import (
	nethttp "net/http"

	"github.com/dkeye/callrecap/internal/app/orch"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

type restHandler struct {
	orch    *orch.Orchestrator
	rec     Recorder
	iceURLs []string
}

func healthz(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
}

func (h *restHandler) listRooms(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *restHandler) participants(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	members := h.orch.Participants(id)
	if members == nil {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"roomId": id, "participants": members})
}

// stopRoom ends the call, disconnects both members and drops any unfinished recording.
func (h *restHandler) stopRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	n, ok := h.orch.StopRoom(id)
	if !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"roomId": id, "stopped": n})
}

func (h *restHandler) recording(c *gin.Context) {
	info, _ := h.rec.Session(domain.RoomID(c.Param("id")))
	c.JSON(nethttp.StatusOK, info)
}

func (h *restHandler) iceServers(c *gin.Context) {
	servers := []webrtc.ICEServer{}
	if len(h.iceURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: h.iceURLs})
	}
	c.JSON(nethttp.StatusOK, gin.H{"iceServers": servers})
}

type profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// getProfile returns the display name and email remembered for this browser.
func (h *restHandler) getProfile(c *gin.Context) {
	s := sessions.Default(c)
	p := profile{}
	if v, ok := s.Get("name").(string); ok {
		p.Name = v
	}
	if v, ok := s.Get("email").(string); ok {
		p.Email = v
	}
	c.JSON(nethttp.StatusOK, p)
}

func (h *restHandler) putProfile(c *gin.Context) {
	var p profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	name, err := domain.NormalizeDisplayName(p.Name)
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid_name"})
		return
	}
	email, err := domain.NormalizeContact(p.Email)
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid_email"})
		return
	}
	s := sessions.Default(c)
	s.Set("name", name)
	s.Set("email", email)
	if err := s.Save(); err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "session_save"})
		return
	}
	c.JSON(nethttp.StatusOK, profile{Name: name, Email: email})
}
