package daemon

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/powerinfo"
	"github.com/charlie0129/tpbal/pkg/version"
)

var systemBatteries = powerinfo.SystemBatteries

func (s *Server) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.engine.Config())
}

func (s *Server) getSnapshot(c *gin.Context) {
	snap := s.engine.Snapshot()
	if snap == nil {
		err := errors.New("no snapshot taken yet")
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	c.IndentedJSON(http.StatusOK, snap)
}

func (s *Server) getDecision(c *gin.Context) {
	d := s.engine.LastDecision()
	if d == nil {
		err := errors.New("no decision made yet")
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	c.IndentedJSON(http.StatusOK, d)
}

func (s *Server) getBatteryInfo(c *gin.Context) {
	batteries, err := systemBatteries()
	if err != nil {
		logrus.Errorf("getBatteryInfo failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, batteries)
}

func (s *Server) getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
