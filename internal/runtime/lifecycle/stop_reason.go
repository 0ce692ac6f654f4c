// Package lifecycle names the reasons a flobot process stops.
package lifecycle

// StopReason is used for structured shutdown tracing.
type StopReason string

const (
	StopUnknown      StopReason = "unknown"
	StopSignal       StopReason = "signal"
	StopFatalError   StopReason = "fatal_error"
	StopAppStop      StopReason = "app_stop"
	StopServerClosed StopReason = "server_closed"
	StopJoinTimeout  StopReason = "join_timeout"
)
