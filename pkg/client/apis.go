package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/history"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

func (c *Client) GetState() (*collector.State, error) {
	ret, err := c.Get("/state")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get collector state")
	}

	var st collector.State
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal collector state")
	}
	return &st, nil
}

func (c *Client) GetReading() (*powerinfo.Reading, error) {
	ret, err := c.Get("/reading")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get device reading")
	}

	var r powerinfo.Reading
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal device reading")
	}
	return &r, nil
}

// SetMonitoring starts or stops monitoring and returns the daemon's message.
func (c *Client) SetMonitoring(enabled bool) (string, error) {
	ret, err := c.Put("/monitoring", strconv.FormatBool(enabled))
	if err != nil {
		return "", err
	}
	return unquote(ret), nil
}

func (c *Client) Start() (string, error) { return c.SetMonitoring(true) }

func (c *Client) Stop() (string, error) { return c.SetMonitoring(false) }

// Collect asks for one sample outside the schedule.
func (c *Client) Collect() (string, error) {
	ret, err := c.Post("/collect", "")
	if err != nil {
		return "", err
	}
	return unquote(ret), nil
}

// GetHistory returns up to limit journal entries, newest first. limit <= 0
// uses the daemon default.
func (c *Client) GetHistory(limit int) ([]history.Entry, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get delivery history")
	}

	var entries []history.Entry
	if err := json.Unmarshal([]byte(ret), &entries); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal delivery history")
	}
	return entries, nil
}

// GetHistoryStats counts the attempts kept in the journal.
func (c *Client) GetHistoryStats() (*history.Stats, error) {
	ret, err := c.Get("/history/stats")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get delivery history stats")
	}

	var stats history.Stats
	if err := json.Unmarshal([]byte(ret), &stats); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal delivery history stats")
	}
	return &stats, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

// SetConfig sends the non-nil fields of patch. The daemon saves them and
// rebuilds its collector.
func (c *Client) SetConfig(patch *config.RawFileConfig) (string, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to marshal config")
	}
	ret, err := c.Put("/config", string(b))
	if err != nil {
		return "", err
	}
	return unquote(ret), nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}

// unquote strips the JSON quoting the daemon puts around plain messages.
func unquote(s string) string {
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}
