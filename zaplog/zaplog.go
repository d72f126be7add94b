// Package zaplog adapts go.uber.org/zap to the handler.Logger interface.
package zaplog

import "go.uber.org/zap"

// Adapter forwards handler.Logger calls to a zap sugared logger.
type Adapter struct {
	s *zap.SugaredLogger
}

// New builds a production zap logger with the given name and wraps it.
func New(name string) (*Adapter, error) {
	cfg := zap.NewProductionConfig()
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return Wrap(logger), nil
}

// Wrap adapts an existing zap logger.
func Wrap(l *zap.Logger) *Adapter {
	return &Adapter{s: l.Sugar()}
}

func (a *Adapter) Error(msg string, keyvals ...any) {
	a.s.Errorw(msg, keyvals...)
}

// Sync flushes buffered log entries. Call on shutdown.
func (a *Adapter) Sync() error {
	return a.s.Sync()
}
