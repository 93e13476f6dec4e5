// Package prover runs the chain validator on behalf of a caller and seals the
// resulting commitment into a receipt.
package prover

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"
	"github.com/yourusername/headerproof/internal/blockchain"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/internal/crypto"
	"github.com/yourusername/headerproof/internal/receipt"
)

var ErrNoKey = errors.New("prover key is required")

// ReceiptLog persists sealed receipts
type ReceiptLog interface {
	AppendReceipt(r *receipt.Receipt) (uint64, error)
}

// Config configures a Service
type Config struct {
	Options blockchain.Options
	Key     *crypto.ProverKey

	// Journal, when set, receives every commitment before it is sealed
	Journal blockchain.CommitmentSink

	// Receipts, when set, records every sealed receipt
	Receipts ReceiptLog

	Logger  zerolog.Logger
	Metrics *Metrics
}

// Service validates header sequences and seals their commitments
type Service struct {
	opts     blockchain.Options
	key      *crypto.ProverKey
	journal  blockchain.CommitmentSink
	receipts ReceiptLog
	logger   zerolog.Logger
	metrics  *Metrics
	imageID  chainhash.Hash
}

// New creates a Service
func New(cfg Config) (*Service, error) {
	if cfg.Key == nil {
		return nil, ErrNoKey
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Service{
		opts:     cfg.Options,
		key:      cfg.Key,
		journal:  cfg.Journal,
		receipts: cfg.Receipts,
		logger:   cfg.Logger.With().Str("component", "prover").Logger(),
		metrics:  metrics,
		imageID:  receipt.ImageID(cfg.Options.BaselineTime),
	}, nil
}

// ImageID returns the rule-set id receipts are sealed under
func (s *Service) ImageID() chainhash.Hash {
	return s.imageID
}

// Address returns the prover's address
func (s *Service) Address() string {
	return s.key.Address()
}

// Prove validates every header from src. On success it returns a sealed receipt
// whose journal is the double hash of the last header.
func (s *Service) Prove(ctx context.Context, src blockchain.RecordSource) (*receipt.Receipt, error) {
	start := time.Now()
	v := blockchain.NewValidator(s.opts)

	commitment, err := v.Run(ctx, src, s.journal)

	s.metrics.duration.Observe(time.Since(start).Seconds())
	s.metrics.headers.Add(float64(v.Processed()))

	if err != nil {
		kind := consensus.KindOf(err)
		outcome := kind
		if outcome == "" {
			outcome = "error"
		}
		s.metrics.runs.WithLabelValues(outcome).Inc()

		var verr *blockchain.ValidationError
		event := s.logger.Warn().Err(err).Str("kind", kind).Uint32("processed", v.Processed())
		if errors.As(err, &verr) {
			event = event.Uint32("height", verr.Height)
		}
		event.Msg("chain rejected")

		return nil, err
	}

	r := receipt.Seal(s.key, s.imageID, v.Processed(), commitment)

	if s.receipts != nil {
		seq, err := s.receipts.AppendReceipt(r)
		if err != nil {
			s.metrics.runs.WithLabelValues("error").Inc()
			return nil, err
		}
		s.logger.Debug().Uint64("seq", seq).Msg("receipt stored")
	}

	s.metrics.runs.WithLabelValues("committed").Inc()
	s.logger.Info().
		Uint32("count", r.Count).
		Str("commitment", r.JournalString()).
		Dur("took", time.Since(start)).
		Msg("chain committed")

	return r, nil
}

// Verify checks a receipt against this service's rule set
func (s *Service) Verify(_ context.Context, r *receipt.Receipt) error {
	return receipt.Verify(r, s.imageID)
}
