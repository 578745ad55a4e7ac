package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Service renders templates and sends them from a background queue.
type Service struct {
	client       Sender
	templates    map[string]*template.Template
	baseTemplate *template.Template
	queue        chan *QueuedEmail
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// QueuedEmail represents an email in the send queue
type QueuedEmail struct {
	To           string
	ToName       string
	Subject      string
	TemplateName string
	Data         interface{}
	Attachments  []Attachment
}

// NewService creates email service backed by SendGrid.
func NewService(config SendGridConfig) *Service {
	return NewServiceWithSender(NewSendGridClient(config), 100)
}

// NewServiceWithSender creates an email service around any Sender.
func NewServiceWithSender(sender Sender, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 100
	}
	s := &Service{
		client:    sender,
		templates: make(map[string]*template.Template),
		queue:     make(chan *QueuedEmail, queueSize),
	}
	s.baseTemplate = template.Must(template.New("base").Parse(BaseTemplate))
	s.loadTemplates()

	s.wg.Add(1)
	go s.worker()

	return s
}

func (s *Service) loadTemplates() {
	templates := map[string]string{
		TemplatePurchasePaid:      PurchasePaidTemplate,
		TemplateNewSale:           NewSaleTemplate,
		TemplateDeliverySubmitted: DeliverySubmittedTemplate,
		TemplatePurchaseCompleted: PurchaseCompletedTemplate,
		TemplatePurchaseCancelled: PurchaseCancelledTemplate,
		TemplatePurchaseRefunded:  PurchaseRefundedTemplate,
	}

	for name, content := range templates {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

// worker processes queued emails asynchronously
func (s *Service) worker() {
	defer s.wg.Done()

	for email := range s.queue {
		if err := s.send(context.Background(), email); err != nil {
			log.Error().Err(err).
				Str("to", email.To).
				Str("template", email.TemplateName).
				Msg("Failed to send email")
		}
	}
}

// Render produces the full HTML body for a template.
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("email template %q not found", templateName)
	}

	var contentBuf bytes.Buffer
	if err := tmpl.Execute(&contentBuf, data); err != nil {
		return "", err
	}

	var htmlBuf bytes.Buffer
	if err := s.baseTemplate.Execute(&htmlBuf, map[string]interface{}{
		"Content": template.HTML(contentBuf.String()),
	}); err != nil {
		return "", err
	}
	return htmlBuf.String(), nil
}

func (s *Service) send(ctx context.Context, email *QueuedEmail) error {
	html, err := s.Render(email.TemplateName, email.Data)
	if err != nil {
		return err
	}
	return s.client.Send(ctx, &EmailMessage{
		To:          email.To,
		ToName:      email.ToName,
		Subject:     email.Subject,
		HTMLContent: html,
		Attachments: email.Attachments,
	})
}

// Enqueue adds an email to the async send queue. It never blocks; a full
// queue drops the email with a warning.
func (s *Service) Enqueue(email *QueuedEmail) {
	select {
	case s.queue <- email:
	default:
		log.Warn().Str("to", email.To).Str("template", email.TemplateName).Msg("Email queue full, dropping email")
	}
}

// Queue adds an email to the async send queue
func (s *Service) Queue(to, toName, templateName, subject string, data interface{}) {
	s.Enqueue(&QueuedEmail{
		To:           to,
		ToName:       toName,
		Subject:      subject,
		TemplateName: templateName,
		Data:         data,
	})
}

// Close drains the queue and stops the worker.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.queue) })
	s.wg.Wait()
}
