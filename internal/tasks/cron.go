package tasks

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/marcus/foreman/internal/logging"
)

// CronSubmitter submits recurring tasks on cron schedules. Used for
// standing work like a nightly QA sweep or weekly security audit.
type CronSubmitter struct {
	cron   *cron.Cron
	submit func(CreateInput) *Task
	logger *logging.Logger
}

// RecurringTask pairs a cron expression with the task it submits.
type RecurringTask struct {
	Schedule string      `mapstructure:"schedule" json:"schedule"`
	Input    CreateInput `mapstructure:"task" json:"task"`
}

// NewCronSubmitter creates a submitter that feeds tasks through submit.
func NewCronSubmitter(submit func(CreateInput) *Task) *CronSubmitter {
	return &CronSubmitter{
		cron:   cron.New(),
		submit: submit,
		logger: logging.Component("cron"),
	}
}

// Add registers a recurring task. Returns an error for invalid cron
// expressions or unknown task types.
func (c *CronSubmitter) Add(rt RecurringTask) error {
	if !rt.Input.Type.Valid() {
		return fmt.Errorf("unknown task type: %s", rt.Input.Type)
	}

	_, err := c.cron.AddFunc(rt.Schedule, func() {
		t := c.submit(rt.Input)
		c.logger.InfoCtx("recurring task submitted", map[string]any{
			"task": t.ID, "type": t.Type, "schedule": rt.Schedule,
		})
	})
	if err != nil {
		return fmt.Errorf("adding cron schedule %q: %w", rt.Schedule, err)
	}
	return nil
}

// Start begins firing schedules in a background goroutine.
func (c *CronSubmitter) Start() {
	c.cron.Start()
}

// Stop halts scheduling; running submissions complete.
func (c *CronSubmitter) Stop() {
	c.cron.Stop()
}
