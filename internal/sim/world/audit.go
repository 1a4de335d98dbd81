package world

import modelpkg "pkworld.ai/internal/sim/world/kernel/model"

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "DEATH_STAGE"
	Pos     [3]int         `json:"pos"`
	Zone    string         `json:"zone,omitempty"`
	Killer  string         `json:"killer,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (w *World) auditEvent(tick uint64, actor string, action string, pos modelpkg.Vec3i, reason string, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	entry := AuditEntry{
		Tick:    tick,
		Actor:   actor,
		Action:  action,
		Pos:     pos.ToArray(),
		Reason:  reason,
		Details: details,
	}
	if z, ok := details["zone"].(string); ok {
		entry.Zone = z
		delete(details, "zone")
	}
	if k, ok := details["killer"].(string); ok {
		entry.Killer = k
		delete(details, "killer")
	}
	if len(entry.Details) == 0 {
		entry.Details = nil
	}
	if err := w.auditLogger.WriteAudit(entry); err != nil {
		w.log.Printf("audit %s %s: %v", action, actor, err)
	}
}

// deathAudit adapts a death sequence audit record to the world audit log.
func (w *World) deathAudit(action string, e *modelpkg.Entity, details map[string]any) {
	w.auditEvent(w.tick.Load(), e.ID, action, e.Pos, "", details)
}

// multiAudit fans entries out to several sinks (JSONL log and SQLite index).
type multiAudit []AuditLogger

func MultiAudit(ls ...AuditLogger) AuditLogger {
	out := make(multiAudit, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiAudit) WriteAudit(entry AuditEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteAudit(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
