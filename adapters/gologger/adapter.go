package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const ServiceLoggerName = "donations"

const (
	ComponentInbound = "donations.inbound"
	ComponentAudit   = "donations.audit"
	ComponentNotify  = "donations.notify"
	ComponentWorker  = "donations.worker"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ResolveService resolves the root donations logger.
func ResolveService(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return Resolve(ServiceLoggerName, provider, logger)
}

// Component returns the named logger for one donations component, falling
// back to the given logger when the provider is nil.
func Component(provider glog.LoggerProvider, fallback glog.Logger, component string) glog.Logger {
	_, logger := Resolve(component, provider, fallback)
	return logger
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the worker logger then returns equivalent go-job adapters.
func ResolveForJob(provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(ComponentWorker, provider, logger)
	return resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
