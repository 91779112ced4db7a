package service

import (
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

func NewScheduler(log *zap.SugaredLogger) (gocron.Scheduler, error) {
	return gocron.NewScheduler(gocron.WithLogger(schedulerLogger{log}))
}

// schedulerLogger adapts zap to gocron's Logger.
type schedulerLogger struct {
	log *zap.SugaredLogger
}

func (l schedulerLogger) Debug(msg string, args ...any) { l.log.Debugw(msg, args...) }
func (l schedulerLogger) Info(msg string, args ...any)  { l.log.Infow(msg, args...) }
func (l schedulerLogger) Warn(msg string, args ...any)  { l.log.Warnw(msg, args...) }
func (l schedulerLogger) Error(msg string, args ...any) { l.log.Errorw(msg, args...) }
