package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rejection", err: apperrors.New(apperrors.CodeRoomFull, "room is full"), want: true},
		{name: "wrapped rejection", err: fmt.Errorf("join: %w", apperrors.New(apperrors.CodeNotHost, "only the host")), want: true},
		{name: "internal", err: apperrors.Wrap(apperrors.CodeInternal, "save room", fmt.Errorf("boom")), want: false},
		{name: "circuit open", err: apperrors.New(apperrors.CodeCircuitOpen, "try later"), want: false},
		{name: "plain error", err: fmt.Errorf("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.IsRejection(tt.err))
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("start: %w", apperrors.New(apperrors.CodePlayersNotReady, "not everyone is ready"))

	assert.ErrorIs(t, err, apperrors.New(apperrors.CodePlayersNotReady, ""))
	assert.NotErrorIs(t, err, apperrors.New(apperrors.CodeRoomFull, ""))
	assert.Equal(t, apperrors.CodePlayersNotReady, apperrors.CodeOf(err))
}
