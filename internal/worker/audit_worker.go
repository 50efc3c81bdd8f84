package worker

import (
	"github.com/spec-kit/lead-dispatch/internal/service"
)

// StartAuditWorker subscribes the audit handlers and starts the writer. The
// returned stop function flushes queued records and must run before the
// audit store is closed.
func StartAuditWorker(auditService *service.AuditService) (stop func()) {
	if auditService == nil {
		return func() {}
	}
	auditService.RegisterHandlers()
	auditService.Start()
	return auditService.Close
}
