package handlers

import (
	"log"
	"time"

	"polling-system-backend/database"
	"polling-system-backend/models"
	"polling-system-backend/realtime"

	"gorm.io/gorm"
)

// CloseExpiredPolls marks polls whose closing time has passed as closed and
// broadcasts the final results for each. The router runs it on a timer under
// a distributed lock so that only one process sweeps at a time.
func CloseExpiredPolls(db *gorm.DB, rt *realtime.Service) error {
	var expired []models.Poll
	err := db.Scopes(database.ActivePolls).
		Where("is_closed = ? AND closes_at IS NOT NULL AND closes_at <= ?", false, time.Now()).
		Find(&expired).Error
	if err != nil {
		return err
	}

	for i := range expired {
		poll := &expired[i]
		if err := db.Model(poll).UpdateColumn("is_closed", true).Error; err != nil {
			log.Printf("sweep: closing poll %d failed: %v", poll.ID, err)
			continue
		}
		poll.IsClosed = true

		// Reload with options so the closing broadcast carries the final
		// tallies.
		full, err := database.FindActivePoll(db, poll.ID)
		if err != nil {
			log.Printf("sweep: reload of poll %d failed: %v", poll.ID, err)
			continue
		}
		rt.PollClosed(full)
		log.Printf("sweep: poll %d closed at its scheduled time", poll.ID)
	}
	return nil
}
