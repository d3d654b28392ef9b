package handler

import (
	"time"
)

// progressMessage edits one status message as a long job advances. Updates
// closer together than the interval are dropped; finish always edits.
type progressMessage struct {
	h         *Handler
	chatID    int64
	messageID int
	interval  time.Duration
	last      time.Time
	now       func() time.Time
}

func (h *Handler) newProgressMessage(chatID int64, messageID int) *progressMessage {
	return &progressMessage{
		h:         h,
		chatID:    chatID,
		messageID: messageID,
		interval:  h.progressInterval,
		now:       time.Now,
	}
}

func (p *progressMessage) update(text string) {
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	p.h.edit(p.h.base, p.chatID, p.messageID, text, nil)
}

func (p *progressMessage) finish(text string) {
	p.h.edit(p.h.base, p.chatID, p.messageID, text, nil)
}
