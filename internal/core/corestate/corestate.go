package corestate

import "time"

type Stage string

const (
	StageNotReady Stage = "init"
	StagePreInit  Stage = "pre-init"
	StagePostInit Stage = "post-init"
	StageReady    Stage = "stream"
)

const (
	StringsNone string = "none"
)

func NewCorestate(o *CoreState) *CoreState {
	if o.StartTimestampUnix == 0 {
		o.StartTimestampUnix = time.Now().Unix()
	}
	if o.Stage == "" {
		o.Stage = StageNotReady
	}
	return o
}

// Uptime returns the time since the client started.
func (c *CoreState) Uptime() time.Duration {
	return time.Since(time.Unix(c.StartTimestampUnix, 0))
}
