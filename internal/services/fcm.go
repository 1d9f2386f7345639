package services

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxMulticastTokens is the FCM limit per multicast call
const maxMulticastTokens = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMService handles Firebase Cloud Messaging
type FCMService struct {
	client multicastSender
	logger *zap.Logger
}

// NewFCMService creates an FCM service from service account JSON
func NewFCMService(ctx context.Context, credentialsJSON []byte, logger *zap.Logger) (*FCMService, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return newFCMService(client, logger), nil
}

func newFCMService(client multicastSender, logger *zap.Logger) *FCMService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FCMService{client: client, logger: logger}
}

// PushResult counts per-token outcomes of a send
type PushResult struct {
	SuccessCount int
	FailureCount int
}

// SendRoutesReady tells drivers that routes for a delivery date are available
func (s *FCMService) SendRoutesReady(ctx context.Context, tokens []string, runID, date string, routes int) (PushResult, error) {
	body := fmt.Sprintf("%d delivery routes are ready for %s. Open the app to see your stops.", routes, date)
	if routes == 1 {
		body = fmt.Sprintf("1 delivery route is ready for %s. Open the app to see your stops.", date)
	}
	return s.SendMulticast(ctx, tokens, "Routes Ready", body, map[string]string{
		"type":   "routes_ready",
		"run_id": runID,
		"date":   date,
		"routes": strconv.Itoa(routes),
	})
}

// SendMulticast sends the same message to multiple tokens, batching at the
// FCM per-call limit
func (s *FCMService) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	var result PushResult
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))

		message := &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						ContentAvailable: true,
						Sound:            "default",
					},
				},
			},
		}

		response, err := s.client.SendEachForMulticast(ctx, message)
		if err != nil {
			return result, fmt.Errorf("error sending multicast message: %w", err)
		}
		result.SuccessCount += response.SuccessCount
		result.FailureCount += response.FailureCount
	}

	s.logger.Info("multicast sent",
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount))
	return result, nil
}
