package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"polling-system-backend/config"
	"polling-system-backend/errs"
	"polling-system-backend/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the MySQL connection and runs migrations.
func Init(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema, including the unique (user_id, poll_id) index
// on votes that enforces one ballot per voter per poll.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Poll{},
		&models.PollOption{},
		&models.Vote{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("failed to get database handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("failed to close database: %v", err)
	}
}

// ActivePolls is the soft-delete boundary: every poll read path goes through
// this scope so no caller can forget the is_active filter.
func ActivePolls(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// OrderedOptions preloads a poll's options in position order.
func OrderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindActivePoll loads a live poll with its options ordered by position.
// Soft-deleted and absent polls are both reported as NotFound.
func FindActivePoll(db *gorm.DB, id uint) (*models.Poll, error) {
	var poll models.Poll
	err := db.Scopes(ActivePolls).
		Preload("Options", OrderedOptions).
		First(&poll, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New(errs.NotFound, "poll not found")
		}
		return nil, err
	}
	return &poll, nil
}

// FindUserVote returns the caller's ballot for a poll, or NotFound.
func FindUserVote(db *gorm.DB, userID, pollID uint) (*models.Vote, error) {
	var vote models.Vote
	err := db.Where("user_id = ? AND poll_id = ?", userID, pollID).First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New(errs.NotFound, "you have not voted in this poll")
		}
		return nil, err
	}
	return &vote, nil
}
