package monitor

import (
	"context"
	"time"

	"tickle-go/internal/browser"
	"tickle-go/internal/helper"
	"tickle-go/internal/models"

	"github.com/rs/zerolog"
)

// WakeControlSelectors are the wake-up buttons Streamlit shows on a sleeping
// app. App owners and viewers get different buttons.
var WakeControlSelectors = []string{
	`button[data-testid="wakeup-button-owner"]`,
	`button[data-testid="wakeup-button-viewer"]`,
}

// Actuator clicks the wake-up control of a sleeping Streamlit app.
type Actuator struct {
	WakeTimeout time.Duration
	Logger      zerolog.Logger
}

// Wake returns restarted when a wake-up control was clicked and down
// otherwise. It never clicks when dryRun is set or the site is not hosted on
// Streamlit. The result is not verified; callers re-probe for that.
func (a *Actuator) Wake(ctx context.Context, page browser.Page, site models.Site, dryRun bool) models.Status {
	logger := a.Logger.With().Str("site", site.Name()).Logger()

	if !site.IsStreamlit() {
		logger.Info().Msg("No restart logic defined for platform.")
		return models.StatusDown
	}

	if dryRun {
		logger.Info().Msg("Dry run enabled - skipping wake-up.")
		return models.StatusDown
	}

	selector, ok, err := page.WaitForAny(ctx, WakeControlSelectors, a.WakeTimeout)
	if err != nil {
		logger.Error().Msgf("wake-up control lookup failed: %s", helper.FirstLine(err))
		return models.StatusDown
	}
	if !ok {
		logger.Error().Msg("Wake-up button not found after timeout.")
		return models.StatusDown
	}

	logger.Warn().Str("control", selector).Msg("Wake-up button found. Clicking.")
	if err := page.Click(ctx, selector); err != nil {
		logger.Error().Msgf("wake-up click failed: %s", helper.FirstLine(err))
		return models.StatusDown
	}

	return models.StatusRestarted
}
