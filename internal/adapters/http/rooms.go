package http

import (
	"net/http"

	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-gonic/gin"
)

type roomHandlers struct {
	orch *orch.Orchestrator
}

// GET /api/rooms
func (h *roomHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

// GET /api/rooms/:id
func (h *roomHandlers) get(c *gin.Context) {
	room, ok := h.orch.Rooms.Get(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrRoomNotFound.Msg})
		return
	}
	c.JSON(http.StatusOK, room.Projection())
}

// GET /api/rooms/:id/messages
func (h *roomHandlers) messages(c *gin.Context) {
	room, ok := h.orch.Rooms.Get(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrRoomNotFound.Msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": room.Messages()})
}
