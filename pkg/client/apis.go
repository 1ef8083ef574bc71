package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

func getJSON[T any](c *Client, path string, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}

	return &v, nil
}

// GetSnapshot returns the daemon's latest battery snapshot.
func (c *Client) GetSnapshot() (*powerinfo.Snapshot, error) {
	return getJSON[powerinfo.Snapshot](c, "/snapshot", "snapshot")
}

// GetDecision returns the daemon's latest switch decision.
func (c *Client) GetDecision() (*powerinfo.Decision, error) {
	return getJSON[powerinfo.Decision](c, "/decision", "decision")
}

func (c *Client) GetConfig() (*config.Config, error) {
	return getJSON[config.Config](c, "/config", "config")
}

func (c *Client) GetBatteryInfo() ([]powerinfo.Battery, error) {
	bats, err := getJSON[[]powerinfo.Battery](c, "/battery-info", "battery info")
	if err != nil {
		return nil, err
	}
	return *bats, nil
}

func (c *Client) GetVersion() (string, error) {
	v, err := getJSON[string](c, "/version", "version")
	if err != nil {
		return "", err
	}
	return *v, nil
}

// StreamEvents follows the daemon's event stream and calls fn for every
// event until fn returns false, ctx is done or the daemon goes away.
func (c *Client) StreamEvents(ctx context.Context, fn func(events.Event) bool) error {
	resp, err := c.do(ctx, http.MethodGet, "/events", "")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to subscribe to events")
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("got %d while subscribing to events", resp.StatusCode)
	}

	var ev events.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = append(ev.Data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		case line == "":
			if ev.Name == "" {
				continue
			}
			if !fn(ev) {
				return nil
			}
			ev = events.Event{}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return pkgerrors.Wrapf(err, "event stream broken")
	}
	return nil
}
