package model

import "time"

// Family is the tenant boundary: one parent account owns one family.
type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerUID  string    `json:"owner_uid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Kid struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	DisplayName string    `json:"display_name"`
	Age         *int      `json:"age"`
	ColorHex    string    `json:"color_hex"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
