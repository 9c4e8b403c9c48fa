package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"catmatch/internal/app/dto"
	appsync "catmatch/internal/app/sync"
)

// PresenceHTTP exposes the online roster.
type PresenceHTTP interface {
	Online(c *gin.Context)
}

type PresenceHandler struct {
	Tracker *appsync.Tracker
}

// Online returns everyone currently visible in the presence group.
func (h *PresenceHandler) Online(c *gin.Context) {
	ids := h.Tracker.OnlineUserIDs()
	online := make([]string, 0, len(ids))
	for _, id := range ids {
		online = append(online, string(id))
	}
	c.JSON(http.StatusOK, dto.PresenceList{Online: online})
}

var _ PresenceHTTP = (*PresenceHandler)(nil)
