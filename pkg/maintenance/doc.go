// Package maintenance schedules background housekeeping with cron:
// expired-invitation sweeps and audit log retention purges.
package maintenance
