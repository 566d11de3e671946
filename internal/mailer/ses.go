package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rotisserie/eris"
)

const charsetUTF8 = "UTF-8"

// credentialTimeout bounds the startup credential lookup, which may reach
// the instance metadata endpoint.
const credentialTimeout = 5 * time.Second

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends mail through Amazon SES.
type SES struct {
	client  SESAPI
	region  string
	credErr error
}

// NewSES loads the default AWS credential chain for region. A chain that
// resolves no credentials is reported by Ready rather than here.
func NewSES(ctx context.Context, region string) (*SES, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "ses: load aws config")
	}
	return newSESFromConfig(ctx, cfg), nil
}

func newSESFromConfig(ctx context.Context, cfg aws.Config) *SES {
	return &SES{
		client:  ses.NewFromConfig(cfg),
		region:  cfg.Region,
		credErr: checkCredentials(ctx, cfg.Credentials),
	}
}

func checkCredentials(ctx context.Context, provider aws.CredentialsProvider) error {
	if provider == nil {
		return errors.New("AWS credentials are not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, credentialTimeout)
	defer cancel()
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return eris.Wrap(err, "AWS credentials are not available")
	}
	if !creds.HasKeys() {
		return errors.New("AWS credentials are not configured")
	}
	return nil
}

// NewSESWithClient wraps an existing client.
func NewSESWithClient(client SESAPI, region string) *SES {
	return &SES{client: client, region: region}
}

func (s *SES) Name() string { return "ses" }

func (s *SES) Ready() error {
	if s.region == "" {
		return errors.New("AWS_REGION is not set")
	}
	return s.credErr
}

func (s *SES) Send(ctx context.Context, msg *Message) (string, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses:  msg.To,
			CcAddresses:  msg.CC,
			BccAddresses: msg.BCC,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charsetUTF8)},
				Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charsetUTF8)},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return "", &DeliveryError{Provider: s.Name(), StatusCode: respErr.HTTPStatusCode(), Body: respErr.Error()}
		}
		return "", eris.Wrap(err, "ses: send email")
	}
	return aws.ToString(out.MessageId), nil
}
