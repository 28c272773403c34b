package mail

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"medwatch/internal/config"
	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

// AttachAll and AttachFirstOnly are the supported attachment policies. Some
// deployments want the workbook only on the primary recipient, with the rest
// getting the HTML body alone.
const (
	AttachAll       = "all"
	AttachFirstOnly = "first-only"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers reports over SMTP, one message per recipient, collecting
// per-recipient failures instead of aborting on the first one.
type Mailer struct {
	from       string
	recipients []string
	attachTo   string
	dialer     dialer
	logger     *slog.Logger
}

var _ ports.Mailer = (*Mailer)(nil)

// NewMailer builds a mailer from configuration.
func NewMailer(cfg config.MailConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}
	recipients := ParseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("mail: at least one recipient is required")
	}

	attachTo := cfg.AttachTo
	if attachTo == "" {
		attachTo = AttachFirstOnly
	}

	return &Mailer{
		from:       cfg.From,
		recipients: recipients,
		attachTo:   attachTo,
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password),
		logger:     logger,
	}, nil
}

// ParseRecipients splits a comma/semicolon/space-delimited address string
// into a normalized list.
func ParseRecipients(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})

	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			recipients = append(recipients, part)
		}
	}
	return recipients
}

// SendReport mails the digest to every recipient, attaching the workbook per
// the configured policy. It returns how many recipients were reached; the
// error aggregates every per-recipient failure.
func (m *Mailer) SendReport(articles []domain.Article, day time.Time, attachmentPath string) (int, error) {
	subject := fmt.Sprintf("医疗器械与医美新闻日报 %s（%d条）", day.Format("2006-01-02"), len(articles))
	body := buildReportBody(articles, day)

	sent := 0
	var failures []error
	for i, recipient := range m.recipients {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.from)
		msg.SetHeader("To", recipient)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/html", body)
		if attachmentPath != "" && shouldAttach(m.attachTo, i) {
			msg.Attach(attachmentPath)
		}

		if err := m.dialer.DialAndSend(msg); err != nil {
			failures = append(failures, fmt.Errorf("send to %s: %w", recipient, err))
			continue
		}
		sent++
	}

	if len(failures) > 0 && m.logger != nil {
		m.logger.Warn("report delivery incomplete", "sent", sent, "failed", len(failures))
	}
	return sent, errors.Join(failures...)
}

// SendNoNews mails the "nothing today" notification to all recipients.
func (m *Mailer) SendNoNews(day time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("医疗器械与医美新闻日报 %s", day.Format("2006-01-02")))
	msg.SetBody("text/html", fmt.Sprintf("<p>%s 没有新的医疗器械或医美新闻。</p>", day.Format("2006-01-02")))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send no-news notification: %w", err)
	}
	return nil
}

func shouldAttach(policy string, recipientIndex int) bool {
	switch policy {
	case AttachAll:
		return true
	case AttachFirstOnly:
		return recipientIndex == 0
	default:
		return false
	}
}

func buildReportBody(articles []domain.Article, day time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h2>医疗器械与医美新闻日报 %s</h2>", day.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("<p>共 %d 条新闻。</p>", len(articles)))
	sb.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	sb.WriteString("<tr><th>标题</th><th>日期</th><th>来源</th><th>关键词</th></tr>")
	for _, article := range articles {
		sb.WriteString("<tr>")
		sb.WriteString(fmt.Sprintf("<td><a href=%q>%s</a></td>", article.URL, htmlEscape(article.Title)))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", article.PublishDate))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", htmlEscape(article.Source)))
		sb.WriteString(fmt.Sprintf("<td>%s</td>", htmlEscape(strings.Join(article.Keywords, ", "))))
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
