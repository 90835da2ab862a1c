package domain

import (
	"strings"
	"time"
)

// ArtStyles lists the styles offered for characters and image prompts.
var ArtStyles = []string{
	"realistic",
	"anime",
	"cartoon",
	"artistic",
	"cyberpunk",
	"fantasy",
	"3d render",
	"oil painting",
}

// IsKnownStyle reports whether s names one of ArtStyles (case-insensitive).
func IsKnownStyle(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, style := range ArtStyles {
		if style == s {
			return true
		}
	}
	return false
}

// Character is an AI influencer profile. The core only reads it; generations
// hold a weak reference to it by id.
type Character struct {
	ID          string    `json:"id" bson:"_id"`
	OwnerID     string    `json:"owner_id" bson:"owner_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Gender      string    `json:"gender,omitempty" bson:"gender,omitempty"`
	Age         int       `json:"age,omitempty" bson:"age,omitempty"`
	Ethnicity   string    `json:"ethnicity,omitempty" bson:"ethnicity,omitempty"`
	HairColor   string    `json:"hair_color,omitempty" bson:"hair_color,omitempty"`
	HairStyle   string    `json:"hair_style,omitempty" bson:"hair_style,omitempty"`
	EyeColor    string    `json:"eye_color,omitempty" bson:"eye_color,omitempty"`
	BodyType    string    `json:"body_type,omitempty" bson:"body_type,omitempty"`
	ArtStyle    string    `json:"art_style" bson:"art_style"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
