package services

import "github.com/prometheus/client_golang/prometheus"

var (
	reportsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_reports_created_total",
			Help: "Reports created, by creator role.",
		},
		[]string{"role"},
	)
	reportStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_report_status_changes_total",
			Help: "Accepted report status changes, by new status.",
		},
		[]string{"status"},
	)
	reportLockAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_report_lock_attempts_total",
			Help: "Report lock attempts, by outcome (acquired|conflict|missing).",
		},
		[]string{"outcome"},
	)
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_notifications_created_total",
			Help: "Notifications created, by source (report|status|chat|manual).",
		},
		[]string{"source"},
	)
	chatMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_chat_messages_total",
			Help: "Chat messages stored, by route (staff_broadcast|direct|unrouted).",
		},
		[]string{"route"},
	)
	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_login_attempts_total",
			Help: "Login attempts, by result (ok|invalid).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		reportsCreated,
		reportStatusChanges,
		reportLockAttempts,
		notificationsCreated,
		chatMessagesSent,
		loginAttempts,
	)
}
