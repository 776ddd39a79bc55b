// Package network bridges the indicator's mode controller to an MQTT broker.
//
// Outbound, it implements mode.Publisher: each PublishMode call queues a
// {"mode":"bright","state":1} message for the light state topic, and a
// worker publishes the queue in order. Inbound, it subscribes to the water
// level topic (decimal integer payloads) and the light command topic, and
// turns valid messages into controller calls. Invalid payloads are dropped.
//
// The bridge never blocks the controller and never feeds broker failures
// back into device state. A retained health message is published every
// 30 seconds.
package network
