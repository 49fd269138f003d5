// Package notify publishes build events to external subscribers.
package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/config"
	eperr "git.home.luguber.info/inful/easepack/internal/errors"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// BuildEvent is the wire format published after each run.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	App        string    `json:"app"`
	Outcome    string    `json:"outcome"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMS int64     `json:"duration_ms"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	Packaged   bool      `json:"packaged"`
	OutputPath string    `json:"output_path,omitempty"`
	GitCommit  string    `json:"git_commit,omitempty"`
}

// EventFromReport flattens a finished report into its published form.
func EventFromReport(r *models.BuildReport) BuildEvent {
	return BuildEvent{
		BuildID:    r.BuildID,
		App:        r.App,
		Outcome:    string(r.Outcome),
		Start:      r.Start,
		End:        r.End,
		DurationMS: r.End.Sub(r.Start).Milliseconds(),
		Errors:     len(r.Errors),
		Warnings:   len(r.Warnings),
		Packaged:   r.Packaged,
		OutputPath: r.OutputPath,
		GitCommit:  r.GitCommit,
	}
}

// Publisher sends build events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the configured NATS server. Returns nil (no publisher, no
// error) when notifications are disabled.
func Connect(cfg config.NATSConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("easepack"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(2))
	if err != nil {
		return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityWarning, "connect to nats")
	}
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

// Publish sends the event. Safe on a nil Publisher (notifications disabled).
func (p *Publisher) Publish(ev BuildEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityWarning, "marshal build event")
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityWarning, "publish build event")
	}
	if err := p.conn.Flush(); err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityWarning, "flush build event")
	}
	slog.Debug("Build event published", logfields.Subject(p.subject), logfields.BuildID(ev.BuildID))
	return nil
}

// Close drains the connection. Safe on a nil Publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
