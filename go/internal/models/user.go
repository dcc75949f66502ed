package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserRef is a reference to a user profile as embedded in room payloads.
// The server sends either a bare id string or a populated profile object.
type UserRef struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts "id" as well as {"_id": ..., "username": ..., "avatar": ...}.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("failed to decode user id: %w", err)
		}
		*u = UserRef{ID: id}
		return nil
	}

	var raw struct {
		MongoID  string `json:"_id"`
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
		Picture  string `json:"profilePicture"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode user: %w", err)
	}

	u.ID = raw.MongoID
	if u.ID == "" {
		u.ID = raw.ID
	}
	u.Username = raw.Username
	u.Avatar = raw.Avatar
	if u.Avatar == "" {
		u.Avatar = raw.Picture
	}
	return nil
}

// DisplayName falls back to the id when no username was populated
func (u UserRef) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
