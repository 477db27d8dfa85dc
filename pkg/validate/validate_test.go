package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"plain address", "owner@example.com", true},
		{"subdomain", "a@mail.example.co", true},
		{"plus tag", "owner+tag@example.com", true},
		{"empty", "", false},
		{"missing at", "example.com", false},
		{"missing domain dot", "owner@localhost", false},
		{"display name", "Owner <owner@example.com>", false},
		{"spaces", "owner @example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.email))
		})
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"letters and digits", "correcth0rse", true},
		{"exactly minimum", "abcdefg1", true},
		{"too short", "abc1", false},
		{"digits only", "12345678", false},
		{"letters only", "abcdefgh", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordStrength(tt.password))
		})
	}
}

func TestNonEmpty(t *testing.T) {
	assert.True(t, NonEmpty("x"))
	assert.False(t, NonEmpty(""))
	assert.False(t, NonEmpty("   \t"))
}
