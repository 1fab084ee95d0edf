// Package pkgcron runs periodic maintenance work on cron expressions.
//
// It wraps github.com/robfig/cron/v3 so modules register named jobs without
// touching the cron library, and so Stop can honor a shutdown deadline.
package pkgcron
