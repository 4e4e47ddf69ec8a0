package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/math/omnipool"
)

const (
	AssetsBucket    = "assets"
	FeesBucket      = "fees"
	PositionsBucket = "positions"
	IntentsBucket   = "intents"
	RoundsBucket    = "rounds"
	MetaBucket      = "meta"

	stateKey = "state"

	DefaultDBPath = "./data/omnipool.db"
)

// IntentStatus is the lifecycle of a stored intent. Records are never
// deleted; a terminal status hides them from LoadPendingIntents.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentResolved  IntentStatus = "resolved"
	IntentExpired   IntentStatus = "expired"
	IntentCancelled IntentStatus = "cancelled"
)

type StoredIntent struct {
	Intent    *domain.Intent `json:"intent"`
	Status    IntentStatus   `json:"status"`
	UpdatedAt uint64         `json:"updatedAt"`
}

type StoredFee struct {
	Entry dynamicfees.FeeEntry `json:"entry"`
	// Price is the inner value of the hub price at the last round close.
	Price string `json:"price,omitempty"`
}

type StoredPosition struct {
	Position *domain.Position `json:"position"`
	PriceN   string           `json:"priceN"`
	PriceD   string           `json:"priceD"`
	Closed   bool             `json:"closed,omitempty"`
}

type StoredMeta struct {
	Round             uint64 `json:"round"`
	Imbalance         string `json:"imbalance"`
	ImbalanceNegative bool   `json:"imbalanceNegative"`
	NextPosition      uint64 `json:"nextPosition"`
}

type StoredRound struct {
	Round    uint64 `json:"round"`
	Proposer string `json:"proposer,omitempty"`
	Score    uint64 `json:"score"`
	Resolved int    `json:"resolved"`
	Expired  int    `json:"expired"`
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[Storage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type batchWriter struct {
	db  *boltdb.BoltDatabase
	ops []*boltdb.WriteOperation
}

func (s *Storage) newBatch() *batchWriter {
	return &batchWriter{db: s.db}
}

func (w *batchWriter) put(bucket, key string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", bucket, key, err)
	}
	value := data
	w.ops = append(w.ops, &boltdb.WriteOperation{
		Bucket: []byte(bucket),
		Key:    []byte(key),
		Value:  &value,
		Op:     boltdb.OpSet,
	})
	return nil
}

func (w *batchWriter) execute() error {
	if len(w.ops) == 0 {
		return nil
	}
	batch := w.db.NewBatch()
	for _, op := range w.ops {
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add %s/%s to batch: %w", op.Bucket, op.Key, err)
		}
	}
	return batch.Execute()
}

// SaveState writes the executor state in one batch. Positions that are no
// longer open are written back as closed.
func (s *Storage) SaveState(st *executor.State) error {
	stored := s.listOrEmpty(PositionsBucket)

	w := s.newBatch()
	for id, a := range st.Assets {
		if err := w.put(AssetsBucket, assetKey(id), a); err != nil {
			return err
		}
		fee := StoredFee{Entry: st.Fees[id]}
		if p, ok := st.Prices[id]; ok {
			fee.Price = p.Inner().Dec()
		}
		if err := w.put(FeesBucket, assetKey(id), fee); err != nil {
			return err
		}
	}

	for id, p := range st.Positions {
		sp := StoredPosition{Position: p, PriceN: decOf(p.Price.N), PriceD: decOf(p.Price.D)}
		if err := w.put(PositionsBucket, positionKey(id), sp); err != nil {
			return err
		}
	}
	for key, value := range stored {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		if _, open := st.Positions[id]; open {
			continue
		}
		var sp StoredPosition
		if err := sonic.Unmarshal(value, &sp); err != nil || sp.Closed {
			continue
		}
		sp.Closed = true
		if err := w.put(PositionsBucket, key, sp); err != nil {
			return err
		}
	}

	meta := StoredMeta{
		Round:             st.Round,
		Imbalance:         decOf(st.Imbalance.Amount),
		ImbalanceNegative: st.Imbalance.Negative,
		NextPosition:      st.NextPosition,
	}
	if err := w.put(MetaBucket, stateKey, meta); err != nil {
		return err
	}

	if err := w.execute(); err != nil {
		log.Error().Err(err).Int("assets", len(st.Assets)).Msg("[Storage] FAILED to save state")
		return err
	}
	log.Debug().Uint64("round", st.Round).Int("assets", len(st.Assets)).Msg("[Storage] saved state")
	return nil
}

// LoadState rebuilds the executor state. It returns false when nothing was
// stored yet.
func (s *Storage) LoadState() (*executor.State, bool, error) {
	raw, ok := s.listOrEmpty(MetaBucket)[stateKey]
	if !ok {
		return nil, false, nil
	}
	var meta StoredMeta
	if err := sonic.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal meta: %w", err)
	}

	assetData, err := s.db.List(AssetsBucket)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list assets: %w", err)
	}
	assets := make([]*domain.AssetState, 0, len(assetData))
	for key, value := range assetData {
		var a domain.AssetState
		if err := sonic.Unmarshal(value, &a); err != nil {
			log.Error().Str("asset", key).Err(err).Msg("[Storage] failed to unmarshal asset, skipping")
			continue
		}
		assets = append(assets, &a)
	}

	st := executor.NewState(meta.Round, assets)
	st.NextPosition = meta.NextPosition
	imbalance, err := parseDec(meta.Imbalance)
	if err != nil {
		return nil, false, fmt.Errorf("invalid imbalance: %w", err)
	}
	st.Imbalance = omnipool.BalanceUpdate{Amount: imbalance, Negative: meta.ImbalanceNegative}

	feeData, err := s.db.List(FeesBucket)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list fees: %w", err)
	}
	for key, value := range feeData {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			continue
		}
		var f StoredFee
		if err := sonic.Unmarshal(value, &f); err != nil {
			log.Warn().Str("asset", key).Err(err).Msg("[Storage] failed to unmarshal fee entry, skipping")
			continue
		}
		if _, ok := st.Assets[domain.AssetID(id)]; !ok {
			continue
		}
		st.Fees[domain.AssetID(id)] = f.Entry
		if f.Price != "" {
			if p, err := parseDec(f.Price); err == nil {
				st.Prices[domain.AssetID(id)] = fixed.FixedFromInner(p)
			}
		}
	}

	positionData, err := s.db.List(PositionsBucket)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list positions: %w", err)
	}
	for key, value := range positionData {
		var sp StoredPosition
		if err := sonic.Unmarshal(value, &sp); err != nil {
			log.Warn().Str("position", key).Err(err).Msg("[Storage] failed to unmarshal position, skipping")
			continue
		}
		if sp.Closed || sp.Position == nil {
			continue
		}
		n, errN := parseDec(sp.PriceN)
		d, errD := parseDec(sp.PriceD)
		if errN != nil || errD != nil {
			log.Warn().Str("position", key).Msg("[Storage] invalid position price, skipping")
			continue
		}
		sp.Position.Price = fixed.NewRatio(n, d)
		st.Positions[sp.Position.ID] = sp.Position
	}

	log.Info().
		Uint64("round", st.Round).
		Int("assets", len(st.Assets)).
		Int("positions", len(st.Positions)).
		Msg("[Storage] state loaded")
	return st, true, nil
}

// SaveIntents writes intents with the given status.
func (s *Storage) SaveIntents(intents []*domain.Intent, status IntentStatus, now uint64) error {
	if len(intents) == 0 {
		return nil
	}
	w := s.newBatch()
	for _, in := range intents {
		if err := w.put(IntentsBucket, in.ID.String(), StoredIntent{Intent: in, Status: status, UpdatedAt: now}); err != nil {
			return err
		}
	}
	return w.execute()
}

// SaveRound records a closed round together with the intents it changed.
// Partially filled intents are rewritten as pending with their remainder.
func (s *Storage) SaveRound(r *executor.RoundResult, now uint64) error {
	w := s.newBatch()

	stored := StoredRound{Round: r.Round, Proposer: r.Proposer, Score: r.Score, Expired: len(r.Expired)}
	for _, u := range r.Updates {
		stored.Resolved++
		rec := StoredIntent{Status: IntentResolved, UpdatedAt: now, Intent: &domain.Intent{ID: u.ID}}
		if !u.Removed && u.Intent != nil {
			rec = StoredIntent{Intent: u.Intent, Status: IntentPending, UpdatedAt: now}
		}
		if err := w.put(IntentsBucket, u.ID.String(), rec); err != nil {
			return err
		}
	}
	for _, in := range r.Expired {
		if err := w.put(IntentsBucket, in.ID.String(), StoredIntent{Intent: in, Status: IntentExpired, UpdatedAt: now}); err != nil {
			return err
		}
	}
	if err := w.put(RoundsBucket, roundKey(r.Round), stored); err != nil {
		return err
	}
	return w.execute()
}

// LoadPendingIntents returns every intent still pending.
func (s *Storage) LoadPendingIntents() ([]*domain.Intent, error) {
	data := s.listOrEmpty(IntentsBucket)

	out := make([]*domain.Intent, 0, len(data))
	failed := 0
	for key, value := range data {
		var si StoredIntent
		if err := sonic.Unmarshal(value, &si); err != nil {
			log.Error().Str("intent", key).Err(err).Msg("[Storage] failed to unmarshal intent, skipping")
			failed++
			continue
		}
		if si.Status != IntentPending || si.Intent == nil {
			continue
		}
		out = append(out, si.Intent)
	}

	log.Info().
		Int("total_in_db", len(data)).
		Int("pending", len(out)).
		Int("failed", failed).
		Msg("[Storage] intent loading completed")
	return out, nil
}

// LoadRounds returns the recorded round history keyed by round.
func (s *Storage) LoadRounds() (map[uint64]StoredRound, error) {
	data := s.listOrEmpty(RoundsBucket)
	out := make(map[uint64]StoredRound, len(data))
	for key, value := range data {
		var r StoredRound
		if err := sonic.Unmarshal(value, &r); err != nil {
			log.Warn().Str("round", key).Err(err).Msg("[Storage] failed to unmarshal round, skipping")
			continue
		}
		out[r.Round] = r
	}
	return out, nil
}

// listOrEmpty treats a bucket that cannot be listed as empty. Buckets are
// created on first write.
func (s *Storage) listOrEmpty(bucket string) map[string][]byte {
	data, err := s.db.List(bucket)
	if err != nil {
		log.Debug().Str("bucket", bucket).Err(err).Msg("[Storage] bucket not readable, treating as empty")
		return map[string][]byte{}
	}
	return data
}

func assetKey(id domain.AssetID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func positionKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// zero padded so keys sort by round
func roundKey(round uint64) string {
	return fmt.Sprintf("%020d", round)
}

func decOf(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return fixed.Zero(), nil
	}
	return uint256.FromDecimal(s)
}
