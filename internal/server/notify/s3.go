package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectPutter is the part of *s3.Client the maildrop uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Settings locate the maildrop bucket on an S3-compatible backend.
type S3Settings struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Maildrop stores every message as an RFC 5322 .eml object under
// outbox/YYYY/MM/DD/ in the bucket; a mail relay picks them up from there.
type S3Maildrop struct {
	client objectPutter
	bucket string
	from   string
	clock  timex.Clock
}

// NewS3Maildrop builds the S3 client with static credentials and path-style
// addressing so MinIO endpoints work.
func NewS3Maildrop(ctx context.Context, s S3Settings, from string, clock timex.Clock) (*S3Maildrop, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading s3 config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Maildrop{client: client, bucket: s.Bucket, from: from, clock: clock}, nil
}

func (m *S3Maildrop) Send(ctx context.Context, to, subject, body string) error {
	now := m.clock.Now().UTC()
	id := uuid.New()

	key := ObjectKey(now, id)
	msg := formatMessage(m.from, to, subject, body, now, id)

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(msg),
		ContentType: aws.String("message/rfc822"),
	})
	if err != nil {
		return fmt.Errorf("error storing mail %s: %w", key, err)
	}
	return nil
}

// ObjectKey is outbox/YYYY/MM/DD/<id>.eml for the given instant.
func ObjectKey(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("outbox/%04d/%02d/%02d/%s.eml", at.Year(), int(at.Month()), at.Day(), id)
}

func formatMessage(from, to, subject, body string, at time.Time, id uuid.UUID) []byte {
	var b bytes.Buffer

	header := func(name, value string) {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", at.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", id, domainOf(from)))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))

	return b.Bytes()
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return strings.TrimSuffix(addr[i+1:], ">")
	}
	return "localhost"
}
