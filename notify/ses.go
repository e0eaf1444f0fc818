// Package notify delivers lead emails through Amazon SES and forwards leads
// to an optional CRM webhook.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
)

// EmailSender is the part of the SES v2 client the notifier uses.
type EmailSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures the SES notifier.
type SESConfig struct {
	Region string
	// From is the verified sender identity.
	From string
	// BusinessTo receives new-lead emails.
	BusinessTo []string
	// BusinessName is used in customer-facing copy.
	BusinessName string
	// ConfigurationSet is optional.
	ConfigurationSet string
}

// SESNotifier implements lead.Notifier over SES.
type SESNotifier struct {
	client EmailSender
	cfg    SESConfig
}

// NewSESNotifier loads AWS credentials from the default chain.
func NewSESNotifier(ctx context.Context, cfg SESConfig) (*SESNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewSESNotifierWithClient uses an existing client.
func NewSESNotifierWithClient(client EmailSender, cfg SESConfig) *SESNotifier {
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Greenline Lawn Care"
	}
	return &SESNotifier{client: client, cfg: cfg}
}

// NotifyBusiness emails the new lead to the business inbox. The customer is
// set as Reply-To.
func (n *SESNotifier) NotifyBusiness(ctx context.Context, l *lead.Lead, q *quote.Quote) error {
	if len(n.cfg.BusinessTo) == 0 {
		return nil
	}
	msg, err := RenderBusiness(l, q, n.cfg.BusinessName)
	if err != nil {
		return err
	}
	return n.send(ctx, n.cfg.BusinessTo, []string{l.Contact.Email}, msg)
}

// NotifyCustomer sends the quote confirmation to the customer.
func (n *SESNotifier) NotifyCustomer(ctx context.Context, l *lead.Lead, q *quote.Quote) error {
	msg, err := RenderCustomer(l, q, n.cfg.BusinessName)
	if err != nil {
		return err
	}
	return n.send(ctx, []string{l.Contact.Email}, n.cfg.BusinessTo, msg)
}

func (n *SESNotifier) send(ctx context.Context, to, replyTo []string, msg Message) error {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.cfg.From),
		Destination:      &types.Destination{ToAddresses: to},
		ReplyToAddresses: replyTo,
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if n.cfg.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(n.cfg.ConfigurationSet)
	}

	if _, err := n.client.SendEmail(ctx, in); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

var _ lead.Notifier = (*SESNotifier)(nil)
