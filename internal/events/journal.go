// Package events persists ledger events as an append-only journal.
//
// The journal implements ledger.EventSink: every committed mutation is
// appended as a sequence-numbered JSON record. Records are advisory and
// never read back by the ledger itself; they exist for operators and
// API consumers auditing account history.
package events

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/casperliquid/liquidstake/internal/ledger"
	klog "github.com/casperliquid/liquidstake/internal/log"
	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/rs/zerolog"
)

// Storage keys.
//
//	e/<seq(8, big-endian)> -> Record JSON
//	n/                     -> next sequence number (8 bytes, big-endian)
var (
	prefixRecord = []byte("e/")
	keyNextSeq   = []byte("n/")
)

// Record is one journal entry: a ledger event plus its position.
type Record struct {
	Seq uint64 `json:"seq"`
	ledger.Event
}

// Journal is a durable, append-only event log over a key-value store.
// Appends and reads may come from different goroutines (the RPC layer
// lists while the ledger appends), so the journal locks internally.
type Journal struct {
	mu     sync.RWMutex
	db     storage.DB
	next   uint64
	logger zerolog.Logger
}

// Open creates a journal over db, resuming the sequence counter if
// records were written before.
func Open(db storage.DB) (*Journal, error) {
	j := &Journal{
		db:     db,
		logger: klog.WithComponent("events"),
	}

	has, err := db.Has(keyNextSeq)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	if has {
		raw, err := db.Get(keyNextSeq)
		if err != nil {
			return nil, fmt.Errorf("journal open: %w", err)
		}
		if len(raw) != 8 {
			return nil, fmt.Errorf("journal sequence counter must be 8 bytes, got %d", len(raw))
		}
		j.next = binary.BigEndian.Uint64(raw)
	}
	return j, nil
}

// Emit appends the event as the next record. Implements ledger.EventSink.
func (j *Journal) Emit(ev ledger.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record{Seq: j.next, Event: ev}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal marshal: %w", err)
	}
	if err := j.db.Put(recordKey(rec.Seq), data); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], rec.Seq+1)
	if err := j.db.Put(keyNextSeq, seqBuf[:]); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	j.next = rec.Seq + 1

	j.logger.Debug().Uint64("seq", rec.Seq).Str("kind", string(ev.Kind)).Msg("event appended")
	return nil
}

// Len returns the number of records appended so far.
func (j *Journal) Len() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.next
}

// List returns up to limit records starting at sequence number from, in
// append order. A limit of zero means no limit.
func (j *Journal) List(from uint64, limit int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Record
	for seq := from; seq < j.next; seq++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, found, err := j.get(seq)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ByAccount returns up to limit records that touch addr, in append order:
// stakes and unstakes on the account, transfers it sent or received, and
// approvals it granted or was granted. A limit of zero means no limit.
func (j *Journal) ByAccount(addr types.Address, limit int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Record
	for seq := uint64(0); seq < j.next; seq++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, found, err := j.get(seq)
		if err != nil {
			return nil, err
		}
		if !found || !touches(rec.Event, addr) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (j *Journal) get(seq uint64) (Record, bool, error) {
	has, err := j.db.Has(recordKey(seq))
	if err != nil {
		return Record{}, false, fmt.Errorf("journal read: %w", err)
	}
	if !has {
		return Record{}, false, nil
	}
	raw, err := j.db.Get(recordKey(seq))
	if err != nil {
		return Record{}, false, fmt.Errorf("journal read: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("journal record %d: %w", seq, err)
	}
	return rec, true, nil
}

func touches(ev ledger.Event, addr types.Address) bool {
	switch ev.Kind {
	case ledger.EventStaked, ledger.EventUnstaked:
		return ev.Account == addr
	case ledger.EventTransfer:
		return ev.From == addr || ev.To == addr
	case ledger.EventApproval:
		return ev.Owner == addr || ev.Spender == addr
	}
	return false
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(prefixRecord)+8)
	copy(key, prefixRecord)
	binary.BigEndian.PutUint64(key[len(prefixRecord):], seq)
	return key
}
