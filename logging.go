package legion

import "github.com/tuxdude/zzzlogi"

// nopLogger discards everything. Used when NewSupervisor is given a nil
// logger so every component can log unconditionally.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

var _ zzzlogi.Logger = nopLogger{}

func orNop(log zzzlogi.Logger) zzzlogi.Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}
