package mailer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/homebuild/internal/config"
)

type mockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *mockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func TestSESSend(t *testing.T) {
	var got *ses.SendEmailInput
	client := NewSESWithClient(&mockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
		},
	}, "us-east-1")
	require.NoError(t, client.Ready())

	id, err := client.Send(context.Background(), &Message{
		From:    "estimates@example.com",
		To:      []string{"office@example.com"},
		CC:      []string{"pm@example.com"},
		ReplyTo: "jane@example.com",
		Subject: "New estimate",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "ses-1", id)
	assert.Equal(t, "estimates@example.com", aws.ToString(got.Source))
	assert.Equal(t, []string{"office@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, []string{"pm@example.com"}, got.Destination.CcAddresses)
	assert.Equal(t, []string{"jane@example.com"}, got.ReplyToAddresses)
	assert.Equal(t, "New estimate", aws.ToString(got.Message.Subject.Data))
	assert.Equal(t, "hi", aws.ToString(got.Message.Body.Text.Data))
}

func TestSESResponseErrorBecomesDeliveryError(t *testing.T) {
	client := NewSESWithClient(&mockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, &awshttp.ResponseError{
				ResponseError: &smithyhttp.ResponseError{
					Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadRequest}},
					Err:      errors.New("MessageRejected: Email address is not verified"),
				},
			}
		},
	}, "us-east-1")

	_, err := client.Send(context.Background(), &Message{To: []string{"a@b.co"}})

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "ses", de.Provider)
	assert.Equal(t, http.StatusBadRequest, de.StatusCode)
	assert.Contains(t, de.Body, "not verified")
}

func TestSESTransportError(t *testing.T) {
	client := NewSESWithClient(&mockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("SES service unavailable")
		},
	}, "us-east-1")

	_, err := client.Send(context.Background(), &Message{To: []string{"a@b.co"}})
	require.Error(t, err)

	var de *DeliveryError
	assert.False(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "SES service unavailable")
}

func TestSESReadyRequiresCredentials(t *testing.T) {
	ctx := context.Background()
	staticCreds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret", Source: "test"}, nil
	})
	emptyChain := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, errors.New("failed to refresh cached credentials, no EC2 IMDS role found")
	})

	tests := []struct {
		name    string
		cfg     aws.Config
		wantErr string
	}{
		{"resolved credentials", aws.Config{Region: "us-east-1", Credentials: staticCreds}, ""},
		{"empty credential chain", aws.Config{Region: "us-east-1", Credentials: emptyChain}, "AWS credentials are not available"},
		{"no provider", aws.Config{Region: "us-east-1"}, "AWS credentials are not configured"},
		{"anonymous", aws.Config{Region: "us-east-1", Credentials: aws.AnonymousCredentials{}}, "AWS credentials are not available"},
		{"missing region", aws.Config{Credentials: staticCreds}, "AWS_REGION is not set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newSESFromConfig(ctx, tt.cfg).Ready()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(context.Background(), config.EmailConfig{Provider: "resend", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "resend", s.Name())

	_, err = New(context.Background(), config.EmailConfig{Provider: "pigeon"})
	assert.Error(t, err)
}
