package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	stakeholderEmailMaxLength = 320
	stakeholderNameMaxLength  = 100
)

var (
	ErrInvalidStakeholderEmail = errors.New("invalid_stakeholder_email")
	ErrInvalidStakeholderName  = errors.New("invalid_stakeholder_name")
)

// Stakeholder is an external reviewer identified on a share link.
type Stakeholder struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"not null;size:100"`
	Surname   string    `gorm:"size:100"`
	Email     string    `gorm:"not null;size:320;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// StakeholderInput holds the raw values used to construct a Stakeholder.
type StakeholderInput struct {
	Name    string
	Surname string
	Email   string
}

// NewStakeholder constructs a Stakeholder with validated, normalized fields.
func NewStakeholder(input StakeholderInput) (Stakeholder, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStakeholderEmail(email); err != nil {
		return Stakeholder{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > stakeholderNameMaxLength {
		return Stakeholder{}, fmt.Errorf("%w: empty or too long", ErrInvalidStakeholderName)
	}

	surname := strings.TrimSpace(input.Surname)
	if len(surname) > stakeholderNameMaxLength {
		return Stakeholder{}, fmt.Errorf("%w: surname too long", ErrInvalidStakeholderName)
	}

	return Stakeholder{
		ID:      uuid.NewString(),
		Name:    name,
		Surname: surname,
		Email:   email,
	}, nil
}

// DisplayName joins name and surname the way comments attribute their author.
func (stakeholder Stakeholder) DisplayName() string {
	return strings.TrimSpace(stakeholder.Name + " " + stakeholder.Surname)
}

func validateStakeholderEmail(email string) error {
	if email == "" || len(email) > stakeholderEmailMaxLength {
		return fmt.Errorf("%w: empty or too long", ErrInvalidStakeholderEmail)
	}
	_, parseErr := mail.ParseAddress(email)
	if parseErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStakeholderEmail, parseErr)
	}
	return nil
}
