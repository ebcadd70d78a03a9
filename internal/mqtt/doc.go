// Package mqtt provides MQTT client connectivity for the sensor gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Manually-acknowledged message consumption, so a frame the pipeline
//     has not accepted stays unacknowledged and is redelivered rather than lost
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Devices publish telemetry to `<topic_root>/devices/{device_id}/data`.
// The gateway subscribes to the wildcard pattern and fans each message
// into the per-device ordered pipeline.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Ingest.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Root: cfg.Ingest.MQTT.TopicRoot}
//	err = client.SubscribeManualAck(topics.AllDeviceData(), 1,
//	    func(topic string, payload []byte, ack func()) {
//	        // submit every Reading to the pipeline, then ack()
//	    })
package mqtt
