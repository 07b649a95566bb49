package notifier

import (
	"fmt"
	"strings"

	"github.com/aleister1102/driftwatch/internal/models"
)

// MaxErrorTextLength bounds free text copied from record attributes into a message.
const MaxErrorTextLength = 800

// FormatAlertTitle builds the one-line subject of an alert notification.
func FormatAlertTitle(prefix string, alert *models.ContentAlert) string {
	title := fmt.Sprintf("Content drift in %s/%s", alert.OrgCode, alert.ContentType)
	if prefix == "" {
		return title
	}
	return prefix + " " + title
}

// FormatAlertMessage renders the alert body.
func FormatAlertMessage(alert *models.ContentAlert) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Monitor %d (%s) needs attention.\n", alert.MonitorID, alert.Attributes[models.AttrEntity])
	fmt.Fprintf(&sb, "Reason: %s\n", alert.Reason)

	switch alert.Attributes[models.AttrTrigger] {
	case models.TriggerReview:
		fmt.Fprintf(&sb, "Trigger: review %s confirmed the change as substantive\n", alert.Attributes[models.AttrReviewID])
	default:
		if sev := alert.Attributes[models.AttrSeverity]; sev != "" {
			fmt.Fprintf(&sb, "Severity: %s\n", sev)
		}
	}

	if alert.ChangeID > 0 {
		fmt.Fprintf(&sb, "Change: #%d\n", alert.ChangeID)
	}
	fmt.Fprintf(&sb, "Session: %d\n", alert.SessionID)
	if !alert.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "Started: %s", alert.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	return truncate(strings.TrimRight(sb.String(), "\n"), MaxErrorTextLength)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
