package payment

import (
	"fmt"
	"net/http"

	"github.com/auroragems/backend-aurora/internal/common"
)

// Error codes returned by the payment endpoints. Input errors are
// client-correctable (400), configuration and upstream errors are not.
const (
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeMissingFields         = "MISSING_FIELDS"
	CodeMissingReference      = "MISSING_REFERENCE"
	CodeGatewayMisconfigured  = "GATEWAY_MISCONFIGURED"
	CodeUpstreamAuthFailure   = "UPSTREAM_AUTH_FAILURE"
	CodeUpstreamOrderCreation = "UPSTREAM_ORDER_CREATION"
	CodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected      = "UPSTREAM_REJECTED"
	CodeVerificationFailed    = "VERIFICATION_FAILED"
	CodeOrderUpdateFailed     = "ORDER_UPDATE_FAILED"
	CodeReplay                = "REPLAY"
)

func errInvalidAmount(cause error) *common.AppError {
	return common.NewAppError(CodeInvalidAmount, "amount must be a positive number", http.StatusBadRequest, cause)
}

func errMissingFields(fields string) *common.AppError {
	return common.NewAppError(CodeMissingFields, fmt.Sprintf("missing required fields: %s", fields), http.StatusBadRequest, nil)
}

func errMissingReference() *common.AppError {
	return common.NewAppError(CodeMissingReference, "provider order reference is required", http.StatusBadRequest, nil)
}

// errMisconfigured means server-held credentials are absent. This blocks all
// payments for the provider and must be loud in the logs.
func errMisconfigured(provider string) *common.AppError {
	return common.NewAppError(CodeGatewayMisconfigured, "payment gateway unavailable", http.StatusInternalServerError,
		fmt.Errorf("%s credentials are not configured", provider))
}

func errUpstreamAuth(provider string, cause error) *common.AppError {
	return common.NewAppError(CodeUpstreamAuthFailure, "payment gateway unavailable", http.StatusInternalServerError,
		fmt.Errorf("%s auth exchange failed: %w", provider, cause))
}

func errUpstreamOrderCreation(provider string, cause error) *common.AppError {
	return common.NewAppError(CodeUpstreamOrderCreation, "could not create payment order", http.StatusInternalServerError,
		fmt.Errorf("%s order creation rejected: %w", provider, cause))
}

func errUpstreamUnavailable(provider string, cause error) *common.AppError {
	return common.NewAppError(CodeUpstreamUnavailable, "payment could not be verified", http.StatusGatewayTimeout,
		fmt.Errorf("%s unreachable: %w", provider, cause))
}

func errUpstreamRejected(provider string, cause error) *common.AppError {
	return common.NewAppError(CodeUpstreamRejected, "payment could not be verified", http.StatusBadRequest,
		fmt.Errorf("%s rejected the request: %w", provider, cause))
}

func errOrderUpdateFailed(orderID, transactionID string, cause error) *common.AppError {
	// Money has moved but the system of record disagrees. Keep the ids in
	// the wrapped error so operators can reconcile manually from the logs.
	return common.NewAppError(CodeOrderUpdateFailed, "payment captured but order update failed", http.StatusInternalServerError,
		fmt.Errorf("order %s: transaction %s: %w", orderID, transactionID, cause))
}
