package notifier

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/google/uuid"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

// sender is the part of the shoutrrr service router the notifier uses.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Shoutrrr delivers alerts to every configured shoutrrr service URL.
type Shoutrrr struct {
	sender      sender
	titlePrefix string
	logger      zerolog.Logger
}

// NewShoutrrr builds the service router for cfg.URLs. Invalid URLs fail here
// rather than on the first alert.
func NewShoutrrr(cfg config.NotificationConfig, logger zerolog.Logger) (*Shoutrrr, error) {
	if len(cfg.URLs) == 0 {
		return nil, common.NewConfigurationError("notification_config", "urls", "at least one URL is required")
	}

	router, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		// the raw error may contain tokens from the URL
		return nil, common.NewError("failed to create notification sender: %s", redact(err))
	}
	router.Timeout = cfg.Timeout()
	router.SetLogger(log.New(io.Discard, "", 0))

	return newShoutrrr(router, cfg.TitlePrefix, logger), nil
}

func newShoutrrr(s sender, titlePrefix string, logger zerolog.Logger) *Shoutrrr {
	return &Shoutrrr{
		sender:      s,
		titlePrefix: titlePrefix,
		logger:      logger.With().Str("component", "Notifier").Logger(),
	}
}

// Notify sends the alert. Delivery is best effort: the caller records the
// returned id and otherwise only logs failures.
func (s *Shoutrrr) Notify(ctx context.Context, alert *models.ContentAlert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := stypes.Params{}
	params.SetTitle(FormatAlertTitle(s.titlePrefix, alert))

	var sendErrs []error
	for _, err := range s.sender.Send(FormatAlertMessage(alert), &params) {
		if err != nil {
			sendErrs = append(sendErrs, err)
		}
	}
	if len(sendErrs) > 0 {
		s.logger.Warn().Int64("alert_id", alert.ID).Int("failed_services", len(sendErrs)).Msg("Alert notification failed")
		return "", common.NewError("alert %d notification failed: %s", alert.ID, redact(errors.Join(sendErrs...)))
	}

	deliveryID := uuid.NewString()
	s.logger.Info().Int64("alert_id", alert.ID).Str("delivery_id", deliveryID).Msg("Alert notification sent")
	return deliveryID, nil
}
