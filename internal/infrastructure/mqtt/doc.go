// Package mqtt connects the gateway to an MQTT broker.
//
// The broker carries three kinds of traffic:
//
//	noolite/state/{id}     retained bulb state, published after every change
//	noolite/command/{id}   JSON commands from home automation, consumed by the bridge
//	noolite/frame/{ch}     raw hex frames for a transmitter attached to another host
//
// plus noolite/system/status, which holds the gateway's online status and
// is set to offline by the broker (Last Will) when the connection drops.
// The prefix comes from mqtt.topic_prefix.
//
// The client reconnects with exponential backoff and restores its
// subscriptions afterwards. Handler panics are recovered and logged.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.PublishRetained(client.Topics().State(4), []byte(`{"state":"on"}`))
package mqtt
