package influxdb

import (
	"context"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// MeasurementBulbCommand is the measurement written for registry events.
const MeasurementBulbCommand = "bulb_command"

// HandleBulbEvent writes one bulb_command point for ev.
func (c *Client) HandleBulbEvent(_ context.Context, ev bulb.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(bulbEventPoint(ev))
}

// bulbEventPoint maps a registry event onto a bulb_command point.
func bulbEventPoint(ev bulb.Event) *write.Point {
	outcome := ev.Outcome()
	tags := map[string]string{
		"action":  ev.Action,
		"outcome": outcome,
	}
	fields := map[string]any{
		"ok": outcome == bulb.OutcomeOK,
	}

	if b := ev.Bulb; b != nil {
		tags["bulb_id"] = strconv.FormatUint(b.ID, 10)
		tags["channel"] = strconv.Itoa(b.Channel)
		fields["state_on"] = b.State == bulb.StateOn
		fields["brightness"] = b.Brightness
	}
	if ev.Frame != nil {
		fields["frame"] = ev.Frame.String()
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementBulbCommand, tags, fields, ts)
}

// WritePoint writes a custom point timestamped now.
//
//	client.WritePoint("gateway_stats",
//	    map[string]string{"site": "home"},
//	    map[string]any{"free_channels": 28})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
