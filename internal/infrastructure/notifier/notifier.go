// Package notifier renders one of three incident templates and sends it by
// e-mail through a shared, pooled SMTP transport, the way mail.rs does in
// the original daemon.
package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/config"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

const (
	dateFormat      = "2006-01-02 15:04:05"
	dateSmallFormat = "02 Jan 2006 at 15:04"
)

// Event identifies which of the three incident notifications to send.
type Event int

// Notification events.
const (
	EventOpened Event = iota
	EventEscalated
	EventResolved
)

const fallbackBody = "There's a new error being reported by the alerting daemon.\n" +
	"Allow this mail to be displayed as HTML or go to your dashboard."

// Notifier renders and sends incident notifications over a shared, pooled
// SMTP transport: up to poolSize persistent connections are kept open and
// reused across sends rather than dialing fresh for every message.
type Notifier struct {
	dialer    *gomail.Dialer
	sender    string
	receiver  string
	templates *template.Template

	conns    chan gomail.SendCloser
	outstand chan struct{} // one token per connection not yet dialed
}

// New builds a Notifier from SMTP configuration. It does not itself verify
// connectivity; call TestConnection for that (the bootstrap/dry-run path's
// fatal preflight check).
func New(cfg *config.SMTPConfig) (*Notifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("notifier: failed to parse templates: %w", err)
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	dialer.SSL = cfg.TLS

	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 16
	}

	outstand := make(chan struct{}, poolSize)
	for i := 0; i < poolSize; i++ {
		outstand <- struct{}{}
	}

	return &Notifier{
		dialer:    dialer,
		sender:    cfg.EmailSender,
		receiver:  cfg.EmailReceiver,
		templates: tmpl,
		conns:     make(chan gomail.SendCloser, poolSize),
		outstand:  outstand,
	}, nil
}

// acquire returns a ready-to-use connection from the pool, dialing a fresh
// one if the pool has spare capacity and nothing idle is available.
func (n *Notifier) acquire() (gomail.SendCloser, error) {
	select {
	case conn := <-n.conns:
		return conn, nil
	default:
	}

	select {
	case conn := <-n.conns:
		return conn, nil
	case <-n.outstand:
		conn, err := n.dialer.Dial()
		if err != nil {
			n.outstand <- struct{}{}
			return nil, err
		}
		return conn, nil
	}
}

// release returns a connection to the pool for reuse by the next send, or,
// if it is no longer usable, closes it and frees its slot so the next
// acquire dials a replacement instead of reusing a broken connection.
func (n *Notifier) release(conn gomail.SendCloser, healthy bool) {
	if healthy {
		select {
		case n.conns <- conn:
			return
		default:
			// pool buffer unexpectedly full; fall through and close instead.
		}
	}
	_ = conn.Close()
	n.outstand <- struct{}{}
}

// TestConnection verifies SMTP connectivity, the way test_smtp_transport
// does at bootstrap: a failure here is fatal to the process.
func (n *Notifier) TestConnection() error {
	closer, err := n.dialer.Dial()
	if err != nil {
		return fmt.Errorf("notifier: smtp connection test failed: %w", err)
	}
	return closer.Close()
}

type incidentView struct {
	AlertName string
	Hostname  string
	Severity  string
	StartedAt string
	Lookup    string
	Result    string
	Warn      string
	Crit      string
}

type escalateView struct {
	Hostname  string
	Severity  string
	UpdatedAt string
	Lookup    string
	Result    string
	Warn      string
	Crit      string
}

type resolvedView struct {
	AlertName  string
	Hostname   string
	ResolvedAt string
	Lookup     string
	Result     string
	Warn       string
	Crit       string
}

// Send renders the template for event and delivers it as a multipart
// text/html + text/plain e-mail. A send failure is logged, never retried:
// the incident record already committed is the durable source of truth.
func (n *Notifier) Send(event Event, incident *entity.Incident) {
	body, subject, err := n.render(event, incident)
	if err != nil {
		log.Error().Err(err).Str("alert_name", incident.AlertName).Msg("notifier: failed to render template")
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.sender)
	msg.SetHeader("To", n.receiver)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", fallbackBody)
	msg.AddAlternative("text/html", body)

	conn, err := n.acquire()
	if err != nil {
		log.Error().Err(err).
			Str("alert_name", incident.AlertName).
			Str("host_uuid", incident.HostUUID).
			Msg("notifier: could not acquire smtp connection")
		return
	}

	sendErr := gomail.Send(conn, msg)
	n.release(conn, sendErr == nil)
	if sendErr != nil {
		log.Error().Err(sendErr).
			Str("alert_name", incident.AlertName).
			Str("host_uuid", incident.HostUUID).
			Msg("notifier: could not send email")
		return
	}

	log.Info().
		Str("alert_name", incident.AlertName).
		Str("host_uuid", incident.HostUUID).
		Msg("notifier: email sent successfully")
}

func (n *Notifier) render(event Event, incident *entity.Incident) (body, subject string, err error) {
	var buf bytes.Buffer

	switch event {
	case EventEscalated:
		err = n.templates.ExecuteTemplate(&buf, "escalate.html.tmpl", escalateView{
			Hostname:  incident.Hostname,
			Severity:  incident.Severity.String(),
			UpdatedAt: incident.UpdatedAt.Format(dateFormat),
			Lookup:    incident.Lookup,
			Result:    incident.Result,
			Warn:      incident.Warn,
			Crit:      incident.Crit,
		})
	case EventResolved:
		err = n.templates.ExecuteTemplate(&buf, "resolved.html.tmpl", resolvedView{
			AlertName:  incident.AlertName,
			Hostname:   incident.Hostname,
			ResolvedAt: incident.UpdatedAt.Format(dateFormat),
			Lookup:     incident.Lookup,
			Result:     incident.Result,
			Warn:       incident.Warn,
			Crit:       incident.Crit,
		})
	default: // EventOpened
		err = n.templates.ExecuteTemplate(&buf, "incident.html.tmpl", incidentView{
			AlertName: incident.AlertName,
			Hostname:  incident.Hostname,
			Severity:  incident.Severity.String(),
			StartedAt: incident.StartedAt.Format(dateFormat),
			Lookup:    incident.Lookup,
			Result:    incident.Result,
			Warn:      incident.Warn,
			Crit:      incident.Crit,
		})
	}
	if err != nil {
		return "", "", err
	}

	subject = fmt.Sprintf("%s [%s] - %s", incident.Hostname, incident.AlertName, incident.StartedAt.Format(dateSmallFormat))
	return buf.String(), subject, nil
}
