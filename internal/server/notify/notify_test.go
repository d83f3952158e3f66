package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func TestLogNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.NewJSONLogger(&buf, slog.LevelInfo))

	require.NoError(t, n.Send(context.Background(), "a@b.com", "hi", "link"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "outgoing mail", rec["msg"])
	assert.Equal(t, "notify", rec["module"])
	assert.Equal(t, "a@b.com", rec["to"])
	assert.Equal(t, "hi", rec["subject"])
	assert.Equal(t, "link", rec["body"])
}

func TestVerificationBody_ContainsLink(t *testing.T) {
	body := VerificationBody("https://app/api/auth/verify?token=abc")
	assert.Contains(t, body, "https://app/api/auth/verify?token=abc")
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Maildrop_Send(t *testing.T) {
	put := &fakePutter{}
	m := &S3Maildrop{client: put, bucket: "mail", from: "noreply@example.com", clock: timex.NewFixedClock(now)}

	require.NoError(t, m.Send(context.Background(), "a@b.com", "Vérifiez", "line1\nline2"))

	require.NotNil(t, put.in)
	assert.Equal(t, "mail", aws.ToString(put.in.Bucket))
	assert.Regexp(t, `^outbox/2025/02/03/[0-9a-f-]{36}\.eml$`, aws.ToString(put.in.Key))
	assert.Equal(t, "message/rfc822", aws.ToString(put.in.ContentType))

	msg := string(put.body)
	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: noreply@example.com\r\n")
	assert.Contains(t, head, "To: a@b.com\r\n")
	assert.Contains(t, head, "Subject: =?utf-8?q?V=C3=A9rifiez?=\r\n")
	assert.Contains(t, head, "Date: Mon, 03 Feb 2025 04:05:06 +0000")
	assert.Contains(t, head, "@example.com>")
	assert.Equal(t, "line1\r\nline2", body)
}

func TestS3Maildrop_SendError(t *testing.T) {
	boom := errors.New("denied")
	m := &S3Maildrop{client: &fakePutter{err: boom}, bucket: "mail", from: "x@y", clock: timex.NewFixedClock(now)}

	err := m.Send(context.Background(), "a@b.com", "s", "b")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "outbox/2025/02/03/")
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	assert.Equal(t, "outbox/2025/02/03/7d444840-9dc0-11d1-b245-5ffdce74fad2.eml", ObjectKey(now, id))
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", domainOf("noreply@example.com"))
	assert.Equal(t, "example.com", domainOf("App <noreply@example.com>"))
	assert.Equal(t, "localhost", domainOf("noreply"))
	assert.Equal(t, "localhost", domainOf("noreply@"))
}

func TestNewS3Maildrop_AppliesSettings(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-north-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "key", creds.AccessKeyID)
		assert.Equal(t, "secret", creds.SecretAccessKey)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	m, err := NewS3Maildrop(context.Background(), S3Settings{
		AccessKey: "key", SecretKey: "secret", Bucket: "mail", Region: "eu-north-1", BaseEndpoint: "http://minio:9000",
	}, "noreply@example.com", timex.SystemClock{})
	require.NoError(t, err)
	assert.Equal(t, "mail", m.bucket)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Maildrop_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := NewS3Maildrop(context.Background(), S3Settings{}, "x@y", timex.SystemClock{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}
