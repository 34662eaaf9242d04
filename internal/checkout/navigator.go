package checkout

import (
	"net/url"

	"go.uber.org/zap"
)

// LoggingNavigator records browser effects in the log. The CLI uses it to
// replay a checkout-return URL outside a browser.
type LoggingNavigator struct {
	current *url.URL
	logger  *zap.Logger
}

// NewLoggingNavigator returns a navigator positioned at current.
func NewLoggingNavigator(current *url.URL, logger *zap.Logger) *LoggingNavigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingNavigator{current: current, logger: logger}
}

// ReplaceURL implements Navigator.
func (n *LoggingNavigator) ReplaceURL(location *url.URL) {
	n.current = location
	n.logger.Info("history replaced", zap.String("url", location.String()))
}

// Assign implements Navigator.
func (n *LoggingNavigator) Assign(location *url.URL) {
	n.current = location
	n.logger.Info("navigating", zap.String("url", location.String()))
}

// Reload implements Navigator.
func (n *LoggingNavigator) Reload() {
	n.logger.Info("reloading", zap.String("url", n.current.String()))
}

// Current returns the location the navigator ended on.
func (n *LoggingNavigator) Current() *url.URL {
	return n.current
}
