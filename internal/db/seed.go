package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedTags = []string{"music", "hiking", "cooking", "gaming", "travel", "cinema", "yoga", "books", "wine", "running"}

// SeedTestData resets the database and populates it with demo profiles.
//
// Behavior:
//  1. Clears the user and relationship tables.
//  2. Creates 20 verified users (10 male, 10 female) around Paris with
//     random coordinates, tags and bios.
//  3. Generates likes with ~70% probability; every 3rd pair gets a
//     guaranteed reciprocal like plus the canonical match row.
//  4. Sprinkles profile views so fame scores are not all zero.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	tables := []string{"profile_views", "messages", "notifications", "matches", "blocks", "reports", "likes", "users"}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	for i := 1; i <= 20; i++ {
		gender, preference := "male", "female"
		if i > 10 {
			gender, preference = "female", "male"
		}

		tags := make([]string, 0, 3)
		for _, idx := range r.Perm(len(seedTags))[:3] {
			tags = append(tags, seedTags[idx])
		}

		user := User{
			Username:         fmt.Sprintf("user%d", i),
			Email:            fmt.Sprintf("user%d@example.com", i),
			PasswordHash:     string(hash),
			FirstName:        fmt.Sprintf("First%d", i),
			LastName:         fmt.Sprintf("Last%d", i),
			BirthDate:        now.AddDate(-(20 + r.Intn(20)), 0, 0),
			Gender:           gender,
			SexualPreference: preference,
			Biography:        fmt.Sprintf("Hi, I'm user%d. I enjoy %s and I am looking for someone to share it with.", i, tags[0]),
			InterestTags:     tags,
			ProfilePhotoURL:  fmt.Sprintf("/images/seed/user%d.jpg", i),
			// scatter around Paris
			Latitude:        48.8566 + (r.Float64()-0.5)*0.5,
			Longitude:       2.3522 + (r.Float64()-0.5)*0.5,
			IsEmailVerified: true,
			Active:          true,
			LastSeen:        now.Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	counter := 0
	for likerID := uint64(1); likerID <= 20; likerID++ {
		for j := 0; j < 8; j++ {
			likedID := uint64(r.Intn(20) + 1)
			if likerID == likedID {
				continue
			}
			// keep the seed data straight-matched like the gender split
			if (likerID <= 10) == (likedID <= 10) {
				continue
			}
			if r.Intn(100) >= 70 && counter%3 != 0 {
				counter++
				continue
			}

			like := Like{LikerID: likerID, LikedID: likedID}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			// every 3rd pair becomes a mutual like and a match
			if counter%3 == 0 {
				reciprocal := Like{LikerID: likedID, LikedID: likerID}
				db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reciprocal)

				a, b := likerID, likedID
				if b < a {
					a, b = b, a
				}
				match := Match{UserAID: a, UserBID: b}
				db.Clauses(clause.OnConflict{DoNothing: true}).Create(&match)
			}
			counter++
		}
	}
	log.Println("Seeded likes and matches.")

	for i := 0; i < 120; i++ {
		viewerID := uint64(r.Intn(20) + 1)
		viewedID := uint64(r.Intn(20) + 1)
		if viewerID == viewedID {
			continue
		}
		view := ProfileView{
			ViewerID: viewerID,
			ViewedID: viewedID,
			ViewedAt: now.Add(-time.Duration(r.Intn(72)) * time.Hour),
		}
		db.Create(&view)
	}
	log.Println("Seeded profile views.")

	return nil
}

// SeedMinimalTestData loads a tiny fixed dataset: one mutual pair, one
// one-way like.
func SeedMinimalTestData(db *gorm.DB) error {
	tables := []string{"matches", "likes", "users"}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	users := []User{
		{ID: 1, Username: "user1", Email: "u1@test.com", PasswordHash: "x", Gender: "male", IsEmailVerified: true, Active: true},
		{ID: 2, Username: "user2", Email: "u2@test.com", PasswordHash: "x", Gender: "female", IsEmailVerified: true, Active: true},
		{ID: 3, Username: "user3", Email: "u3@test.com", PasswordHash: "x", Gender: "female", IsEmailVerified: true, Active: true},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	likes := []Like{
		{LikerID: 1, LikedID: 2}, // user1 -> user2
		{LikerID: 2, LikedID: 1}, // user2 -> user1, mutual
		{LikerID: 3, LikedID: 1}, // user3 -> user1, one-way
	}
	if err := db.Create(&likes).Error; err != nil {
		return err
	}

	return db.Create(&Match{UserAID: 1, UserBID: 2}).Error
}
