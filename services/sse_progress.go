package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"progression-service/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamLevelUps streams level-transition events for the authenticated user.
// Delivery is at-least-once — after a reconnect the latest transition can be
// replayed — so consumers must dedupe on (user_id, level).
func (s *AccrualService) StreamLevelUps(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	db := s.DB
	levels := s.Levels

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor time.Time

		// Initialize cursor past the last recorded transition
		var prog models.UserProgress
		if err := db.Where("external_user_id = ?", userID).First(&prog).Error; err == nil {
			if prog.LastLevelUpAt != nil {
				cursor = *prog.LastLevelUpAt
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var cur models.UserProgress
				err := db.Where("external_user_id = ?", userID).First(&cur).Error
				if err != nil {
					if !errors.Is(err, gorm.ErrRecordNotFound) {
						log.Printf("SSE query error for user %s: %v", userID, err)
					}
					continue
				}
				if cur.LastLevelUpAt == nil || !cur.LastLevelUpAt.After(cursor) {
					continue
				}
				cursor = *cur.LastLevelUpAt

				event := fiber.Map{
					"user_id":     userID,
					"level":       cur.Level,
					"total_xp":    cur.TotalXP,
					"occurred_at": cur.LastLevelUpAt,
				}
				if def, err := levels.ResolveLevel(cur.TotalXP); err == nil {
					event["rewards"] = models.LevelRewards{
						Level:          def.Level,
						Currency:       def.RewardCurrency,
						TitleRef:       def.RewardTitleRef,
						CosmeticUnlock: def.CosmeticUnlock,
					}
				}

				payload, _ := json.Marshal(event)
				fmt.Fprintf(w, "event: levelup\ndata: %s\n\n", payload)

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
