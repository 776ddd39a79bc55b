// Package simulator feeds random water levels into the indicator on the
// bench, where no tank sensor publishes to the broker.
//
// Levels are formatted as decimal text and handed to the same handler the
// MQTT subscription uses, so simulated and real readings share one parse
// path.
package simulator
