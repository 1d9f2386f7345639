package handlers

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
	"github.com/werawoot/Krua-Thai1-sub006/internal/services"
)

// RoutesReadyNotifier tells drivers that a run produced routes
type RoutesReadyNotifier interface {
	NotifyRoutesReady(ctx context.Context, outcome *routing.Outcome) error
}

// PushNotifier sends the notification over FCM to every registered driver device
type PushNotifier struct {
	db  *sqlx.DB
	fcm *services.FCMService
}

func NewPushNotifier(db *sqlx.DB, fcm *services.FCMService) *PushNotifier {
	return &PushNotifier{db: db, fcm: fcm}
}

func (n *PushNotifier) NotifyRoutesReady(ctx context.Context, outcome *routing.Outcome) error {
	tokens, err := database.DriverTokens(ctx, n.db)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	res, err := n.fcm.SendRoutesReady(ctx, tokens, outcome.RunID, outcome.Date, len(outcome.Routes))
	if err != nil {
		return err
	}
	if res.SuccessCount == 0 && res.FailureCount > 0 {
		return fmt.Errorf("all %d driver devices rejected the notification", res.FailureCount)
	}
	return nil
}
