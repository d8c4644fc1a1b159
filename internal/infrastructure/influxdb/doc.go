// Package influxdb records bulb activity in InfluxDB v2.
//
// Each registry operation becomes one point in the bulb_command
// measurement:
//
//	tags:   bulb_id, channel, action, outcome
//	fields: state_on (bool), brightness (int), ok (bool), frame (hex, when sent)
//
// so dashboards can chart on-time per bulb and count transmitter failures.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.Subscribe(client)
//
// Writes are batched according to batch_size and flush_interval. Write
// errors are delivered asynchronously to the SetOnError callback;
// connection and health check errors are returned directly.
package influxdb
