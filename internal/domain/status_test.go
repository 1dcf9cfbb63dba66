package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition_HappyPath(t *testing.T) {
	require.NoError(t, ValidateTransition(StatusAvailable, StatusReserved))
	require.NoError(t, ValidateTransition(StatusReserved, StatusPendingConfirmation))
	require.NoError(t, ValidateTransition(StatusPendingConfirmation, StatusSold))
}

func TestValidateTransition_ComplimentaryFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusAvailable, StatusReserved, StatusPendingConfirmation} {
		assert.NoError(t, ValidateTransition(from, StatusComplimentary), "from %s", from)
	}
}

func TestValidateTransition_TerminalNeverLeft(t *testing.T) {
	for _, terminal := range []Status{StatusSold, StatusComplimentary} {
		for _, to := range []Status{StatusAvailable, StatusReserved, StatusPendingConfirmation, StatusSold, StatusComplimentary, StatusCancelled} {
			err := ValidateTransition(terminal, to)
			require.Error(t, err, "terminal %s -> %s should fail", terminal, to)
			assert.True(t, Is(err, "InvalidStateTransition"))
		}
	}
}

func TestValidateTransition_RejectsOutOfOrder(t *testing.T) {
	err := ValidateTransition(StatusAvailable, StatusPendingConfirmation)
	require.Error(t, err)
	assert.True(t, Is(err, "InvalidStateTransition"))

	err = ValidateTransition(StatusAvailable, StatusSold)
	require.Error(t, err)
}
