package character

import (
	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/logger"
)

// Timer names.
const (
	timerClothing  = "clothing"
	timerVisible   = "visible"
	timerReload    = "reload"
	timerRemeasure = "remeasure"
)

// OnClothingChanged is called by the host when the garment in slot changes.
// Bursts of changes re-inflate once, after the clothing delay.
func (c *Controller) OnClothingChanged(slot string) {
	if c.profile.IsIgnoredSlot(slot) {
		logger.Debug("ignoring clothing slot", zap.String("character", c.chara.ID()), zap.String("slot", slot))
		return
	}
	c.timers.Schedule(timerClothing, c.opts.Timing.ClothingDelay, func() {
		c.Inflate(Flags{})
	})
}

// OnVisibilityChanged is called when the character is shown or hidden. A
// character that becomes visible is re-inflated after the reload delay.
func (c *Controller) OnVisibilityChanged(visible bool) {
	was := c.visible
	c.visible = visible
	if !visible {
		c.timers.Cancel(timerVisible)
		return
	}
	if !was {
		c.timers.Schedule(timerVisible, c.opts.Timing.ReloadDelay, func() {
			c.Inflate(Flags{})
		})
	}
}

// OnReload is called after the host reloads the character, e.g. from a
// character card. Cached state is dropped at once; the character is rebuilt
// after the reload delay and measured again after the remeasure delay, once
// the host has settled its scale.
func (c *Controller) OnReload() {
	c.CleanSlate()
	c.timers.Cancel(timerClothing)
	c.timers.Cancel(timerVisible)
	c.timers.Schedule(timerReload, c.opts.Timing.ReloadDelay, func() {
		c.Inflate(Flags{FreshStart: true})
	})
	c.timers.Schedule(timerRemeasure, c.opts.Timing.RemeasureDelay, func() {
		c.Inflate(Flags{Remeasure: true})
	})
}

// OnSceneEnd is called when the scene that deformed the character ends. It
// cancels pending events and writes the base geometry back.
func (c *Controller) OnSceneEnd() {
	for _, name := range []string{timerClothing, timerVisible, timerReload, timerRemeasure} {
		c.timers.Cancel(name)
	}
	c.CleanSlate()
	c.measurer.Invalidate()
}
