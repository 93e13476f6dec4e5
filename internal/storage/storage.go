package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/yourusername/headerproof/internal/receipt"
	"github.com/yourusername/headerproof/pkg/types"
)

const (
	// Database prefixes
	headerPrefix  = "header_"
	hashPrefix    = "hash_"
	receiptPrefix = "receipt_"
	tipKey        = "tip_header"
	receiptSeqKey = "seq_receipt"
	journalKey    = "journal_latest"
)

// ErrNotFound is returned when a key is absent
var ErrNotFound = errors.New("not found")

// Storage represents the LevelDB storage layer: a header store indexed by
// height and a log of published receipts
type Storage struct {
	db *leveldb.DB
}

// NewStorage creates a new storage instance
func NewStorage(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func heightKey(height uint32) []byte {
	key := make([]byte, len(headerPrefix)+4)
	copy(key, headerPrefix)
	binary.BigEndian.PutUint32(key[len(headerPrefix):], height)
	return key
}

func hashKey(hash chainhash.Hash) []byte {
	return append([]byte(hashPrefix), hash[:]...)
}

func get(db *leveldb.DB, key []byte) ([]byte, error) {
	data, err := db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// PutHeader stores a serialized header at height and advances the tip
func (s *Storage) PutHeader(height uint32, raw []byte) error {
	header, err := types.NewBlockHeader(raw)
	if err != nil {
		return err
	}

	var h [4]byte
	binary.BigEndian.PutUint32(h[:], height)

	batch := new(leveldb.Batch)
	batch.Put(heightKey(height), raw)
	batch.Put(hashKey(header.Hash()), h[:])

	tip, ok, err := s.Tip()
	if err != nil {
		return err
	}
	if !ok || height > tip {
		batch.Put([]byte(tipKey), h[:])
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save header %d: %w", height, err)
	}

	return nil
}

// GetHeader retrieves the serialized header at height
func (s *Storage) GetHeader(height uint32) ([]byte, error) {
	data, err := get(s.db, heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("header %d: %w", height, err)
	}
	return data, nil
}

// HeightOf returns the height of the header with the given hash
func (s *Storage) HeightOf(hash chainhash.Hash) (uint32, error) {
	data, err := get(s.db, hashKey(hash))
	if err != nil {
		return 0, fmt.Errorf("header %s: %w", hash, err)
	}
	return binary.BigEndian.Uint32(data), nil
}

// HasHeader checks if a header exists at height
func (s *Storage) HasHeader(height uint32) bool {
	exists, _ := s.db.Has(heightKey(height), nil)
	return exists
}

// Tip returns the highest stored height; ok is false for an empty store
func (s *Storage) Tip() (uint32, bool, error) {
	data, err := get(s.db, []byte(tipKey))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint32(data), true, nil
}

// Range returns a record source streaming count headers starting at from
func (s *Storage) Range(from, count uint32) *RangeSource {
	start := heightKey(from)

	var limit []byte
	if end := uint64(from) + uint64(count); end <= uint64(^uint32(0)) {
		limit = heightKey(uint32(end))
	} else {
		limit = util.BytesPrefix([]byte(headerPrefix)).Limit
	}

	return &RangeSource{
		iter:  s.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil),
		next:  from,
		count: count,
	}
}

// Commit records the latest published commitment
func (s *Storage) Commit(_ context.Context, commitment types.Commitment) error {
	if err := s.db.Put([]byte(journalKey), commitment[:], nil); err != nil {
		return fmt.Errorf("failed to save commitment: %w", err)
	}
	return nil
}

// LatestCommitment returns the last commitment recorded by Commit
func (s *Storage) LatestCommitment() (types.Commitment, error) {
	var commitment types.Commitment

	data, err := get(s.db, []byte(journalKey))
	if err != nil {
		return commitment, fmt.Errorf("commitment: %w", err)
	}

	copy(commitment[:], data)

	return commitment, nil
}

// ReceiptRecord is a receipt as kept in the commitment log
type ReceiptRecord struct {
	Seq      uint64
	StoredAt time.Time
	Receipt  *receipt.Receipt
}

func receiptKey(seq uint64) []byte {
	key := make([]byte, len(receiptPrefix)+8)
	copy(key, receiptPrefix)
	binary.BigEndian.PutUint64(key[len(receiptPrefix):], seq)
	return key
}

// AppendReceipt adds a receipt to the commitment log and returns its sequence number
func (s *Storage) AppendReceipt(r *receipt.Receipt) (uint64, error) {
	seq, err := s.receiptSeq()
	if err != nil {
		return 0, err
	}
	seq++

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ReceiptRecord{Seq: seq, StoredAt: time.Now().UTC(), Receipt: r}); err != nil {
		return 0, fmt.Errorf("failed to encode receipt: %w", err)
	}

	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)

	batch := new(leveldb.Batch)
	batch.Put(receiptKey(seq), buf.Bytes())
	batch.Put([]byte(receiptSeqKey), seqBytes[:])

	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("failed to save receipt: %w", err)
	}

	return seq, nil
}

func (s *Storage) receiptSeq() (uint64, error) {
	data, err := get(s.db, []byte(receiptSeqKey))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// GetReceipt retrieves a receipt by sequence number
func (s *Storage) GetReceipt(seq uint64) (*ReceiptRecord, error) {
	data, err := get(s.db, receiptKey(seq))
	if err != nil {
		return nil, fmt.Errorf("receipt %d: %w", seq, err)
	}
	return decodeReceipt(data)
}

// LatestReceipt returns the most recently appended receipt
func (s *Storage) LatestReceipt() (*ReceiptRecord, error) {
	seq, err := s.receiptSeq()
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, fmt.Errorf("receipt: %w", ErrNotFound)
	}
	return s.GetReceipt(seq)
}

// Receipts returns every receipt in the log, oldest first
func (s *Storage) Receipts() ([]*ReceiptRecord, error) {
	var records []*ReceiptRecord

	iter := s.db.NewIterator(&util.Range{Start: receiptKey(0), Limit: receiptKey(^uint64(0))}, nil)
	defer iter.Release()

	for iter.Next() {
		record, err := decodeReceipt(iter.Value())
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, iter.Error()
}

func decodeReceipt(data []byte) (*ReceiptRecord, error) {
	var record ReceiptRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &record, nil
}
