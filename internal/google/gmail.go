package google

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"google.golang.org/api/gmail/v1"
)

// ErrMissingMessageID marks an upstream message payload without a usable id.
var ErrMissingMessageID = errors.New("google: message missing id")

// MessageRecord is the typed result of parsing a Gmail message payload.
// Received is the parsed Date header; zero when the header is missing or
// malformed.
type MessageRecord struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	To       string
	Date     string
	Received time.Time
	Snippet  string
}

// GmailClient lists and fetches messages for the authenticated user.
type GmailClient struct {
	limiter *RateLimiter
}

// NewGmailClient constructs a GmailClient.
func NewGmailClient() *GmailClient {
	return &GmailClient{limiter: NewRateLimiter(ServiceGmail)}
}

// ListMessageIDs returns the ids of the most recent messages, one page,
// capped at maxResults.
func (c *GmailClient) ListMessageIDs(ctx context.Context, accessToken string, maxResults int64) ([]string, error) {
	service, err := NewGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	response, err := service.Users.Messages.List("me").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, WrapError(err)
	}

	ids := make([]string, 0, len(response.Messages))
	for _, message := range response.Messages {
		if message.Id != "" {
			ids = append(ids, message.Id)
		}
	}
	return ids, nil
}

// GetMessage fetches one message's full payload and parses its headers.
func (c *GmailClient) GetMessage(ctx context.Context, accessToken, messageID string) (MessageRecord, error) {
	service, err := NewGmailService(ctx, accessToken)
	if err != nil {
		return MessageRecord{}, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return MessageRecord{}, err
	}

	message, err := service.Users.Messages.Get("me", messageID).Context(ctx).Do()
	if err != nil {
		return MessageRecord{}, WrapError(err)
	}

	return ParseMessage(message)
}

// ParseMessage converts a Gmail message into a typed record, extracting the
// Subject/From/To/Date headers and the snippet. Messages without an id fail
// closed with ErrMissingMessageID.
func ParseMessage(message *gmail.Message) (MessageRecord, error) {
	if message == nil || message.Id == "" {
		return MessageRecord{}, ErrMissingMessageID
	}

	record := MessageRecord{
		ID:       message.Id,
		ThreadID: message.ThreadId,
		Snippet:  message.Snippet,
	}

	if message.Payload != nil {
		for _, header := range message.Payload.Headers {
			if header == nil {
				continue
			}
			switch header.Name {
			case "Subject":
				record.Subject = header.Value
			case "From":
				record.From = header.Value
			case "To":
				record.To = header.Value
			case "Date":
				record.Date = header.Value
				if received, parseErr := mail.ParseDate(header.Value); parseErr == nil {
					record.Received = received.UTC()
				}
			}
		}
	}

	return record, nil
}
