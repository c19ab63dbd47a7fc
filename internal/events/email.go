package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the subset of the SES v2 client the sink uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// RecipientLookup returns the addresses to notify about a project.
type RecipientLookup func(ctx context.Context, projectID string) ([]string, error)

// EmailSink mails project stakeholders when a verification is decided or
// credits are issued. Other events are ignored.
type EmailSink struct {
	client     SESAPI
	from       string
	recipients RecipientLookup
}

func NewEmailSink(client SESAPI, from string, recipients RecipientLookup) *EmailSink {
	return &EmailSink{client: client, from: from, recipients: recipients}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, e Event) error {
	subject, body, ok := renderEmail(e)
	if !ok || e.ProjectID == "" {
		return nil
	}
	to, err := s.recipients(ctx, e.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(to) == 0 {
		return nil
	}

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{BccAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func renderEmail(e Event) (subject, body string, ok bool) {
	var b strings.Builder
	switch e.Type {
	case VerificationDecided:
		status, _ := e.Data["status"].(string)
		subject = fmt.Sprintf("Verification %s: %s", e.EntityID, strings.ReplaceAll(status, "_", " "))
		fmt.Fprintf(&b, "Verification %s for project %s is now %s.\n", e.EntityID, e.ProjectID, status)
		if reason, _ := e.Data["reason"].(string); reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", reason)
		}
		if comments, _ := e.Data["comments"].(string); comments != "" {
			fmt.Fprintf(&b, "Reviewer comments: %s\n", comments)
		}
	case CreditIssued:
		serial, _ := e.Data["serial_number"].(string)
		subject = "Carbon credits issued: " + serial
		fmt.Fprintf(&b, "Credits %s were issued to project %s.\n", serial, e.ProjectID)
		if amount, ok := e.Data["credits_amount"].(float64); ok {
			fmt.Fprintf(&b, "Amount: %.2f tCO2e\n", amount)
		}
	default:
		return "", "", false
	}
	return subject, b.String(), true
}
