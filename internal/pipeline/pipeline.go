// Package pipeline runs the post-run reporting steps: merge the result
// artifacts, render the HTML report and mail it.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/robotomize/loginsuite/internal/config"
	"github.com/robotomize/loginsuite/internal/mailer"
	"github.com/robotomize/loginsuite/internal/merge"
	"github.com/robotomize/loginsuite/internal/render"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg mailer.Message) error
}

type MailOptions struct {
	Enabled bool
	From    string
	To      []string
	Subject string
	Body    string
}

type Options struct {
	ArtifactDir string
	Pattern     string
	MergedPath  string
	Render      render.Options
	Mail        MailOptions
	// Strict turns a failed mail dispatch into a pipeline error.
	Strict bool
}

// Result describes what a run produced. MailErr holds a swallowed dispatch
// error in non-strict mode.
type Result struct {
	Report     merge.Report
	MergedPath string
	HTMLPath   string
	Mailed     bool
	MailErr    error
}

type Pipeline struct {
	opts       Options
	dispatcher Dispatcher
	logger     *zap.Logger
}

// New returns a pipeline. A nil dispatcher disables the mail step.
func New(opts Options, dispatcher Dispatcher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{opts: opts, dispatcher: dispatcher, logger: logger}
}

// FromConfig wires the SMTP dispatcher described by cfg.Mail.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	opts := Options{
		ArtifactDir: cfg.Report.ArtifactDir,
		Pattern:     cfg.Report.Pattern,
		MergedPath:  cfg.Report.MergedPath,
		Render: render.Options{
			ReportDir:      cfg.Report.HTMLDir,
			ReportFilename: cfg.Report.HTMLFilename,
			Title:          cfg.Report.Title,
		},
		Mail: MailOptions{
			Enabled: cfg.Mail.Enabled,
			From:    cfg.Mail.Sender(),
			To:      cfg.Mail.To,
			Subject: cfg.Mail.Subject,
			Body:    cfg.Mail.Body,
		},
		Strict: cfg.Report.Strict,
	}

	if !cfg.Mail.Enabled {
		return New(opts, nil, logger), nil
	}

	ep, err := mailer.ResolveService(cfg.Mail.Service, cfg.Mail.Host, cfg.Mail.Port)
	if err != nil {
		return nil, fmt.Errorf("mailer.ResolveService: %w", err)
	}

	sender := mailer.NewSMTPSender(
		mailer.SMTPConfig{
			Endpoint:    ep,
			ImplicitTLS: cfg.Mail.ImplicitTLS,
			Username:    cfg.Mail.Username,
			Password:    cfg.Mail.Password,
			DialTimeout: cfg.Mail.Timeout,
		},
	)

	return New(opts, mailer.NewDispatcher(sender, cfg.Mail.Timeout, logger), logger), nil
}

// Run executes merge, render and dispatch in order. Merge and render errors
// abort the run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result

	report, err := merge.MergeDir(ctx, p.opts.ArtifactDir, p.opts.Pattern)
	if err != nil {
		return res, fmt.Errorf("merge artifacts: %w", err)
	}
	res.Report = report

	p.logger.Info(
		"artifacts merged",
		zap.String("dir", p.opts.ArtifactDir),
		zap.Int("tests", report.Stats.Tests),
		zap.Int("passed", report.Stats.Passed),
		zap.Int("failed", report.Stats.Failed),
		zap.Int("broken", report.Stats.Broken),
	)

	if err = merge.Write(p.opts.MergedPath, report); err != nil {
		return res, fmt.Errorf("write merged report: %w", err)
	}
	res.MergedPath = p.opts.MergedPath

	htmlPath, err := render.Render(report, p.opts.Render)
	if err != nil {
		return res, fmt.Errorf("render report: %w", err)
	}
	res.HTMLPath = htmlPath

	p.logger.Info("report rendered", zap.String("merged", res.MergedPath), zap.String("html", htmlPath))

	if !p.opts.Mail.Enabled || p.dispatcher == nil {
		p.logger.Info("mail disabled, skipping dispatch")
		return res, nil
	}

	if err = p.dispatch(ctx, htmlPath); err != nil {
		if p.opts.Strict {
			return res, fmt.Errorf("dispatch report: %w", err)
		}

		res.MailErr = err
		p.logger.Error("report mail not sent", zap.Error(err))

		return res, nil
	}
	res.Mailed = true

	return res, nil
}

func (p *Pipeline) dispatch(ctx context.Context, htmlPath string) error {
	attachment, err := mailer.LoadAttachment(htmlPath)
	if err != nil {
		return err
	}

	msg := mailer.Message{
		From:        p.opts.Mail.From,
		To:          p.opts.Mail.To,
		Subject:     p.opts.Mail.Subject,
		Body:        p.opts.Mail.Body,
		Attachments: []mailer.Attachment{attachment},
	}

	return p.dispatcher.Dispatch(ctx, msg)
}
