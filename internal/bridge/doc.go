// Package bridge connects the bulb registry to MQTT.
//
// Two directions are handled:
//
//	MQTT ──► Bridge ──► bulb.Registry      commands on <prefix>/command/{id}
//	bulb.Registry ──► Publisher ──► MQTT   retained state on <prefix>/state/{id}
//
// A command message is JSON:
//
//	{"id": "c1", "command": "brightness", "value": 40}
//	{"command": "on", "smooth": true}
//	{"command": "color", "value": "FF8800"}
//
// Every command is acknowledged on <prefix>/ack/{id} with status accepted,
// rejected, not_found or failed. The publisher also mirrors each registry
// event onto <prefix>/event/{type} for consumers that want the history
// rather than the latest state.
//
// Both halves are optional: the gateway runs without MQTT when
// mqtt.enabled is false.
package bridge
