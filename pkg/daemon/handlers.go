package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

func (s *Server) getState(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.current().collector.State())
}

func (s *Server) getReading(c *gin.Context) {
	r, err := s.current().provider.Read()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

func (s *Server) setMonitoring(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	col := s.current().collector
	if enabled {
		if err := col.Start(); err != nil {
			c.IndentedJSON(http.StatusConflict, err.Error())
			_ = c.AbortWithError(http.StatusConflict, err)
			return
		}
		logrus.Info("monitoring enabled via api")
		c.IndentedJSON(http.StatusCreated, "monitoring started")
		return
	}

	col.Stop()
	logrus.Info("monitoring disabled via api")
	c.IndentedJSON(http.StatusCreated, "monitoring stopped")
}

func (s *Server) collect(c *gin.Context) {
	err := s.current().collector.Collect()
	switch {
	case errors.Is(err, collector.ErrNotRunning), errors.Is(err, collector.ErrClosed):
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	case err != nil:
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusAccepted, "sample dispatched")
}

func (s *Server) getHistory(c *gin.Context) {
	journal := s.current().journal
	if journal == nil {
		err := errors.New("delivery history is disabled, set historyPath in the config to enable it")
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	limit := defaultHistoryLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			err := fmt.Errorf("limit must be between 1 and %d, got %q", maxHistoryLimit, q)
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		limit = n
	}

	entries, err := journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, entries)
}

func (s *Server) getHistoryStats(c *gin.Context) {
	journal := s.current().journal
	if journal == nil {
		err := errors.New("delivery history is disabled, set historyPath in the config to enable it")
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	stats, err := journal.Stats(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, stats)
}

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

// setConfig applies a partial config, saves it and rebuilds the pipeline.
// Counters carry over.
func (s *Server) setConfig(c *gin.Context) {
	var patch config.RawFileConfig
	if err := c.BindJSON(&patch); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	changed, err := config.Apply(s.conf, &patch)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if len(changed) == 0 {
		c.IndentedJSON(http.StatusOK, "nothing to change")
		return
	}

	if err := s.conf.Save(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	logrus.WithField("keys", changed).Info("config changed via api")

	if err := s.reload(); err != nil {
		err = fmt.Errorf("config saved but not applied: %w", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("updated %s", strings.Join(changed, ", ")))
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
