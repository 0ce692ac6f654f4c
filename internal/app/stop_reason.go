package app

import "github.com/Leryan/flobot/internal/runtime/lifecycle"

type StopReason = lifecycle.StopReason

const (
	StopUnknown      = lifecycle.StopUnknown
	StopSignal       = lifecycle.StopSignal
	StopFatalError   = lifecycle.StopFatalError
	StopAppStop      = lifecycle.StopAppStop
	StopServerClosed = lifecycle.StopServerClosed
	StopJoinTimeout  = lifecycle.StopJoinTimeout
)
