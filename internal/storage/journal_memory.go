package storage

import (
	"context"
	"slices"
	"sync"

	"chat-purge/internal/models"
)

// MemoryJournal is the Journal used when the database is disabled. Its
// contents are lost on restart.
type MemoryJournal struct {
	mu     sync.RWMutex
	nextID uint
	chats  map[int64][]models.JournalMessage
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{chats: make(map[int64][]models.JournalMessage)}
}

func (j *MemoryJournal) Record(_ context.Context, msg *models.JournalMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows := j.chats[msg.ChatID]
	for i := range rows {
		if rows[i].MessageID == msg.MessageID {
			rows[i].Text = msg.Text
			return nil
		}
	}

	j.nextID++
	stored := *msg
	stored.ID = j.nextID
	j.chats[msg.ChatID] = append(rows, stored)
	msg.ID = stored.ID
	return nil
}

func (j *MemoryJournal) Chats(context.Context) ([]int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ids := make([]int64, 0, len(j.chats))
	for id, rows := range j.chats {
		if len(rows) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Each iterates over a copy, so fn may call back into the journal
func (j *MemoryJournal) Each(ctx context.Context, chatID int64, fn func(models.JournalMessage) error) error {
	j.mu.RLock()
	rows := slices.Clone(j.chats[chatID])
	j.mu.RUnlock()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (j *MemoryJournal) Remove(_ context.Context, chatID int64, messageIDs []int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.chats[chatID] = slices.DeleteFunc(j.chats[chatID], func(m models.JournalMessage) bool {
		return slices.Contains(messageIDs, m.MessageID)
	})
	if len(j.chats[chatID]) == 0 {
		delete(j.chats, chatID)
	}
	return nil
}

func (j *MemoryJournal) Count(context.Context) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var n int64
	for _, rows := range j.chats {
		n += int64(len(rows))
	}
	return n, nil
}
