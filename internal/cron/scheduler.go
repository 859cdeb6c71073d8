// Package cron schedules recurring prompts. Each configured job, when it
// fires, publishes a system message onto the bus; the agent loop runs the
// prompt and routes the reply to the job's origin conversation.
package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/relay/internal/bus"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/pkg/models"
)

// cronParser supports both standard (5-field) and extended (6-field with
// seconds) cron expressions, plus descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Scheduler runs the configured cron jobs.
type Scheduler struct {
	bus  *bus.MessageBus
	jobs []config.CronJob
	log  *observability.Logger

	mu      sync.Mutex
	runner  *cron.Cron
	running bool
}

// NewScheduler validates the job list and builds a scheduler. Invalid
// schedules are rejected up front so a bad config fails at startup, not at
// fire time.
func NewScheduler(mb *bus.MessageBus, jobs []config.CronJob, log *observability.Logger) (*Scheduler, error) {
	for _, job := range jobs {
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("cron job %q: %w", job.Name, err)
		}
	}
	return &Scheduler{bus: mb, jobs: jobs, log: log}, nil
}

func validateJob(job config.CronJob) error {
	if strings.TrimSpace(job.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(job.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if _, err := cronParser.Parse(job.Schedule); err != nil {
		return fmt.Errorf("parse schedule %q: %w", job.Schedule, err)
	}
	return nil
}

// Start registers all jobs and begins firing them. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runner := cron.New(cron.WithParser(cronParser))
	for _, job := range s.jobs {
		job := job
		if _, err := runner.AddFunc(job.Schedule, func() { s.fire(ctx, job) }); err != nil {
			return fmt.Errorf("register cron job %q: %w", job.Name, err)
		}
	}
	runner.Start()
	s.runner = runner
	s.running = true

	if s.log != nil {
		s.log.Info(ctx, "cron scheduler started", "jobs", len(s.jobs))
	}
	return nil
}

// Stop halts the scheduler and waits for in-flight fires to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.runner.Stop().Done()
	s.running = false
}

// Jobs returns the configured job list.
func (s *Scheduler) Jobs() []config.CronJob {
	return s.jobs
}

// fire publishes one job as a system message. The ChatID carries the
// origin conversation as "channel:chatId" so the agent loop can route the
// reply back.
func (s *Scheduler) fire(ctx context.Context, job config.CronJob) {
	origin := OriginChatID(job)

	if s.log != nil {
		s.log.Info(ctx, "cron job fired", "job", job.Name, "origin", origin)
	}

	s.bus.PublishInbound(models.InboundMessage{
		Channel:  models.ChannelSystem,
		SenderID: "cron:" + job.Name,
		ChatID:   origin,
		Content:  job.Message,
	})
}

// OriginChatID returns the "channel:chatId" pair a job's reply is routed
// to. Jobs without a channel report to the CLI session.
func OriginChatID(job config.CronJob) string {
	channel := job.Channel
	if channel == "" {
		channel = string(models.ChannelCLI)
	}
	chatID := job.ChatID
	if chatID == "" {
		chatID = "direct"
	}
	return channel + ":" + chatID
}
