// Package discovery advertises the indicator on the local network over
// mDNS and finds other indicators.
//
// The service record carries the API port and a TXT record
// "id=<device id>", so a browser panel or a phone can find the panel URL
// without configuration.
package discovery
