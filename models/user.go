package models

import "time"

// User is the account a payment belongs to. The ledger only reads it.
type User struct {
	ID          string    `bson:"id" json:"id"`
	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	FullName    string    `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Email       string    `bson:"email" json:"email"`
	PhoneNumber string    `bson:"phoneNumber" json:"phoneNumber"`
	FCMToken    string    `bson:"fcmToken,omitempty" json:"-"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DisplayName prefers Name and falls back to FullName.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.FullName
}
