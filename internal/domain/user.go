// Package domain contains core domain types for the chat2test application.
package domain

import (
	"time"
)

// User represents an account owning projects and chats, with optional
// issue-tracker credentials.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	HashedPassword string    `json:"-"`
	JiraEmail      string    `json:"jira_email,omitempty"`
	JiraAPIToken   string    `json:"-"`
	JiraAPIURL     string    `json:"jira_api_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasJiraToken reports whether an issue-tracker API token is stored.
func (u *User) HasJiraToken() bool {
	return u.JiraAPIToken != ""
}

// UserUpdate carries optional profile changes. Nil fields are left untouched.
type UserUpdate struct {
	Name         *string `json:"name"`
	JiraEmail    *string `json:"jira_email"`
	JiraAPIToken *string `json:"jira_api_token"`
	JiraAPIURL   *string `json:"jira_api_url"`
}

// Apply copies the non-nil fields of the update onto the user.
func (p UserUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.JiraEmail != nil {
		u.JiraEmail = *p.JiraEmail
	}
	if p.JiraAPIToken != nil {
		u.JiraAPIToken = *p.JiraAPIToken
	}
	if p.JiraAPIURL != nil {
		u.JiraAPIURL = *p.JiraAPIURL
	}
}
