package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestKindFromCode(t *testing.T) {
	tests := []struct {
		code string
		want autherrors.Kind
	}{
		{"invalid_request", autherrors.KindInvalidRequest},
		{"INVALID_GRANT", autherrors.KindInvalidCredentials},
		{" inactive_account ", autherrors.KindInactiveAccount},
		{"account_inactive", autherrors.KindInactiveAccount},
		{"something_new", autherrors.KindUnknown},
		{"", autherrors.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.Equal(t, tt.want, autherrors.KindFromCode(tt.code))
		})
	}
}

func TestError_KindChecks(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")

	t.Run("network failure unwraps cause", func(t *testing.T) {
		err := fmt.Errorf("refresh: %w", autherrors.NetworkFailure(cause))
		require.ErrorIs(t, err, cause)
		require.Equal(t, autherrors.KindNetworkFailure, autherrors.KindOf(err))
		require.True(t, autherrors.IsRetryable(err))
		require.False(t, autherrors.IsReauthenticationRequired(err))
	})

	t.Run("reauthentication carries account context", func(t *testing.T) {
		err := autherrors.ReauthenticationRequired("john@example.com", "full_access", nil)
		require.True(t, autherrors.IsReauthenticationRequired(err))
		require.False(t, autherrors.IsRetryable(err))
		require.Contains(t, err.Error(), "john@example.com")

		var target *autherrors.Error
		require.ErrorAs(t, err, &target)
		require.Equal(t, "full_access", target.TokenType)
	})

	t.Run("errors.Is matches by kind", func(t *testing.T) {
		err := autherrors.ServerError("invalid_grant", "bad password", "", nil)
		require.ErrorIs(t, err, &autherrors.Error{Kind: autherrors.KindInvalidCredentials})
		require.NotErrorIs(t, err, &autherrors.Error{Kind: autherrors.KindInvalidRequest})
		require.True(t, err.Kind.ServerRejected())
		require.Equal(t, "invalid_credentials (invalid_grant): bad password", err.Error())
	})

	t.Run("plain errors are unknown", func(t *testing.T) {
		require.Equal(t, autherrors.KindUnknown, autherrors.KindOf(cause))
		require.False(t, autherrors.IsRetryable(nil))
	})
}
