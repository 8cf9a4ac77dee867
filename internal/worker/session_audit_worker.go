package worker

import (
	"github.com/spec-kit/astro-gateway/internal/service"
)

// StartSessionAudit registers session audit handlers.
func StartSessionAudit(auditService *service.SessionAuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
