package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type PasswordReset struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type RefreshSession struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Project struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreditBalance int       `json:"creditBalance"`
	CurrentStep   int       `json:"currentStep"`
	ProgressRate  int       `json:"progressRate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ProjectMember struct {
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	AddedAt   time.Time `json:"addedAt"`

	// Joined from users for listing.
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// StepDocument is one step's stored state. Payload holds the raw JSON body;
// IsSubmitted and Progress live beside it in the step_data envelope.
type StepDocument struct {
	ProjectID   string          `json:"projectId"`
	StepNumber  int             `json:"stepNumber"`
	Payload     json.RawMessage `json:"payload"`
	IsSubmitted bool            `json:"isSubmitted"`
	Progress    int             `json:"progress"`
	UpdatedBy   string          `json:"updatedBy"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// stepEnvelope is the JSONB shape of project_steps.step_data.
type stepEnvelope struct {
	Payload     json.RawMessage `json:"payload"`
	IsSubmitted bool            `json:"isSubmitted"`
	Progress    int             `json:"progress"`
}

type CreditCharge struct {
	ProjectID  string    `json:"projectId"`
	StepNumber int       `json:"stepNumber"`
	Amount     int       `json:"amount"`
	ChargedAt  time.Time `json:"chargedAt"`
}
