package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func TestResetTokenState(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		token    db.ResetToken
		wantCode string
		wantOK   bool
	}{
		{
			name:   "valid token",
			token:  db.ResetToken{ExpiresAt: now.Add(time.Hour)},
			wantOK: true,
		},
		{
			name:     "already used",
			token:    db.ResetToken{Used: true, ExpiresAt: now.Add(time.Hour)},
			wantCode: "token_already_used",
		},
		{
			name:     "expired",
			token:    db.ResetToken{ExpiresAt: now.Add(-time.Minute)},
			wantCode: "invalid_token",
		},
		{
			name:     "used wins over expired",
			token:    db.ResetToken{Used: true, ExpiresAt: now.Add(-time.Minute)},
			wantCode: "token_already_used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message, ok := resetTokenState(&tt.token, now)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)

			if !tt.wantOK {
				assert.NotEmpty(t, message)
			}
		})
	}
}
