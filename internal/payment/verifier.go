// Package payment confirms that a job's payment transfer reached consensus
// and credited the function's payee.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/ledger/mirror"
	"github.com/Praises003/aether/internal/metrics"
)

// ErrUnavailable is returned when the mirror could not be asked. The payment
// is neither confirmed nor refuted.
var ErrUnavailable = errors.New("payment verification unavailable")

// resultSuccess is the mirror's result for a transaction that reached consensus.
const resultSuccess = "SUCCESS"

// Mirror fetches transaction records by mirror-form id.
type Mirror interface {
	Transaction(ctx context.Context, id string) (*mirror.Transaction, error)
}

// Verifier checks transfers against the mirror. It keeps no state.
type Verifier struct {
	mirror Mirror
}

func NewVerifier(m Mirror) *Verifier {
	return &Verifier{mirror: m}
}

// Verify reports whether transferRef is a successful transaction crediting
// payee with at least priceHbar. Anything that cannot be confirmed returns
// false; a mirror outage additionally returns an error wrapping ErrUnavailable.
func (v *Verifier) Verify(ctx context.Context, transferRef, payee, priceHbar string) (bool, error) {
	logger := log.With().Str("transfer", transferRef).Str("payee", payee).Logger()

	txID, err := ledger.ParseTransactionID(transferRef)
	if err != nil {
		logger.Warn().Err(err).Msg("Unparseable transfer reference")
		metrics.RecordPaymentVerification("rejected")
		return false, nil
	}

	required, err := ledger.HbarToTinybar(priceHbar)
	if err != nil {
		logger.Warn().Err(err).Str("price", priceHbar).Msg("Invalid expected price")
		metrics.RecordPaymentVerification("rejected")
		return false, nil
	}

	tx, err := v.mirror.Transaction(ctx, txID)
	if err != nil {
		if errors.Is(err, mirror.ErrNotFound) || isClientError(err) {
			logger.Info().Err(err).Msg("Transfer not found on mirror")
			metrics.RecordPaymentVerification("rejected")
			return false, nil
		}
		metrics.RecordPaymentVerification("unavailable")
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if tx.Result != resultSuccess {
		logger.Info().Str("result", tx.Result).Msg("Transfer did not succeed")
		metrics.RecordPaymentVerification("rejected")
		return false, nil
	}

	if !tx.Covers(payee, required) {
		logger.Info().
			Int64("required_tinybar", required).
			Msg("No transfer line covers the price")
		metrics.RecordPaymentVerification("rejected")
		return false, nil
	}

	logger.Debug().Int64("required_tinybar", required).Msg("Payment verified")
	metrics.RecordPaymentVerification("verified")
	return true, nil
}

// isClientError reports a 4xx other than rate limiting: the mirror answered
// and the request itself was bad.
func isClientError(err error) bool {
	var se *mirror.StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && !se.Temporary()
}
