package mail

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers through Amazon SES.
type SESSender struct {
	client sesAPI
	source string
}

// NewSESSender loads the default AWS configuration for region.
func NewSESSender(ctx context.Context, region, fromName, fromEmail string) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("mail: load aws config: %w", err)
	}
	return newSESSender(ses.NewFromConfig(cfg), fromName, fromEmail), nil
}

func newSESSender(client sesAPI, fromName, fromEmail string) *SESSender {
	source := (&netmail.Address{Name: fromName, Address: fromEmail}).String()
	return &SESSender{client: client, source: source}
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	to := (&netmail.Address{Name: msg.ToName, Address: msg.To}).String()
	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charsetUTF8)}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charsetUTF8)}
	}
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
			Body:    body,
		},
	})
	if err != nil {
		return fmt.Errorf("mail: ses: %w", err)
	}
	return nil
}
