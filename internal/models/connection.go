package models

// ConnectionState is the lifecycle of the backend duplex channel. It is
// rebuilt on every process start, never persisted.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
)
