// Package gologger resolves one go-logger sink and hands it to the service and
// to go-job, so queued operations log next to synchronous ones.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-gateways/core"
)

// Loggers is a resolved sink seen through each library's contract. The job
// fields are nil only when the glog side is nil.
type Loggers struct {
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// Resolve picks provider, then logger, then a nop logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// New resolves name once and bridges the result into go-job.
func New(name string, provider glog.LoggerProvider, logger glog.Logger) Loggers {
	out := Loggers{}
	out.Provider, out.Logger = Resolve(name, provider, logger)
	if out.Provider != nil {
		out.JobProvider = job.GoLoggerProvider(out.Provider)
	}
	if out.Logger != nil {
		out.JobLogger = job.GoLogger(out.Logger)
	}
	return out
}

// ServiceOptions returns the core options that route service logs to l.
func (l Loggers) ServiceOptions() []core.Option {
	opts := []core.Option{core.WithLogger(l.Logger)}
	if l.Provider != nil {
		opts = append(opts, core.WithLoggerProvider(l.Provider))
	}
	return opts
}
