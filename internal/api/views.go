package api

import (
	"time"

	"github.com/webmatcha/matcha-go/internal/db"
)

// publicUser is the profile shape returned to other users. Credentials
// and the email address stay private.
type publicUser struct {
	ID              uint64    `json:"id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Gender          string    `json:"gender"`
	Biography       string    `json:"biography"`
	InterestTags    []string  `json:"interest_tags"`
	ProfilePhotoURL string    `json:"profile_photo_url"`
	PhotoURLs       []string  `json:"photo_urls"`
	FameRating      int       `json:"fame_rating"`
	IsOnline        bool      `json:"is_online"`
	LastSeen        time.Time `json:"last_seen"`
}

// ownUser adds the private fields the account owner may see.
type ownUser struct {
	publicUser
	Email            string    `json:"email"`
	SexualPreference string    `json:"sexual_preference"`
	BirthDate        time.Time `json:"birth_date"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	IsEmailVerified  bool      `json:"is_email_verified"`
}

func toPublicUser(u db.User) publicUser {
	return publicUser{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Gender:          u.Gender,
		Biography:       u.Biography,
		InterestTags:    u.InterestTags,
		ProfilePhotoURL: u.ProfilePhotoURL,
		PhotoURLs:       u.PhotoURLs,
		FameRating:      u.FameRating,
		IsOnline:        u.IsOnline,
		LastSeen:        u.LastSeen,
	}
}

func toOwnUser(u db.User) ownUser {
	return ownUser{
		publicUser:       toPublicUser(u),
		Email:            u.Email,
		SexualPreference: u.SexualPreference,
		BirthDate:        u.BirthDate,
		Latitude:         u.Latitude,
		Longitude:        u.Longitude,
		IsEmailVerified:  u.IsEmailVerified,
	}
}

func toPublicUsers(users []db.User) []publicUser {
	out := make([]publicUser, 0, len(users))
	for _, u := range users {
		out = append(out, toPublicUser(u))
	}
	return out
}
