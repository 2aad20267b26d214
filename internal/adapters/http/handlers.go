package http

import (
	"net/http"

	"github.com/dkeye/danmaku/internal/adapters/signal"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status string `json:"status"`
	Online int    `json:"online"`
	Rooms  int    `json:"rooms"`
}

func healthHandler(ctl *signal.SignalWSController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status: "ok",
			Online: ctl.Orch.OnlineCount(),
			Rooms:  ctl.Orch.Rooms.Count(),
		})
	}
}

// roomsHandler lists public enterable rooms in the same result shape the websocket uses.
func roomsHandler(ctl *signal.SignalWSController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, core.Success(ctl.Orch.RoomList()))
	}
}
