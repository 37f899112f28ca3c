package scheduler

import (
	"github.com/robfig/cron/v3"
)

// Cron drives scheduler ticks from a cron expression instead of a fixed
// interval. Deployments that prefer cron-style scheduling over a long-lived
// ticker register the tick with an expression like "*/1 * * * *".
type Cron struct {
	cron *cron.Cron
}

// NewCron creates and starts a cron runner.
func NewCron() *Cron {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Cron{cron: c}
}

// AddTick schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (c *Cron) AddTick(expr string, task func()) error {
	_, err := c.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron runner and waits for running jobs to finish.
func (c *Cron) Stop() {
	<-c.cron.Stop().Done()
}
