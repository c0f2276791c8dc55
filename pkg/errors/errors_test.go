package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestPolicyTable(t *testing.T) {
	tests := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
		CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
		CodeStateConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true, ExposeMessage: true},
		CodeInsufficientFunds: {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "insufficient wallet balance", DetailsAllowed: true, ExposeMessage: true},
		CodeRateLimit:         {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "too many requests", Retryable: true, ExposeMessage: true},
		CodeIndexUnavailable:  {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "search index unavailable", Retryable: true},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, want := range tests {
		t.Run(string(code), func(t *testing.T) {
			require.Equal(t, want, MetadataFor(code))
		})
	}
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("NO_SUCH_CODE"))
	require.False(t, MetadataFor(CodeInternal).ExposeMessage, "internal messages stay private")
}

func TestWrapKeepsCause(t *testing.T) {
	plain := New(CodeValidation, "items required")
	require.Equal(t, CodeValidation, plain.Code())
	require.Nil(t, plain.Details())
	require.NotNil(t, plain.WithDetails(map[string]any{"field": "items"}).Details())

	cause := stdErrors.New("connection refused")
	wrapped := Wrap(CodeDependency, cause, "sync listing")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "DEPENDENCY_ERROR: sync listing: connection refused", wrapped.Error())
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	err := fmt.Errorf("pay order: %w", New(CodeInsufficientFunds, "wallet balance too low"))

	typed := As(err)
	require.NotNil(t, typed)
	require.Equal(t, CodeInsufficientFunds, typed.Code())
	require.True(t, IsCode(err, CodeInsufficientFunds))
	require.False(t, IsCode(err, CodeForbidden))
	require.Nil(t, As(nil))
	require.Nil(t, As(stdErrors.New("plain")))
}

func TestLogFieldsCapturePostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "wallets_user_id_key", TableName: "wallets"}
	err := Wrap(CodeInternal, fmt.Errorf("insert wallet: %w", pgErr), "ensure wallet")

	fields := LogFields(err)
	require.Equal(t, CodeInternal, fields["error_code"])
	require.Equal(t, "23505", fields["pg_code"])
	require.Equal(t, "wallets_user_id_key", fields["pg_constraint"])
	require.Equal(t, "wallets", fields["pg_table"])
	require.NotContains(t, fields, "pg_detail", "empty values are omitted")
	require.Len(t, fields["error_chain"], 3)
	require.Empty(t, LogFields(nil))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "untyped", err: stdErrors.New("connection reset"), want: true},
		{name: "index outage", err: Wrap(CodeIndexUnavailable, stdErrors.New("dial tcp"), "sync"), want: true},
		{name: "not found", err: fmt.Errorf("sync: %w", New(CodeNotFound, "listing not found")), want: false},
		{name: "validation", err: New(CodeValidation, "bad payload"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
