// Package lots matches normalized transactions into closed trades and open
// lots using FIFO consumption, and synthesizes seed lots for positions whose
// observed history cannot explain currently-held quantity.
package lots

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

const qtyEpsilon = 1e-9

// Service implements the FIFO lot matcher.
type Service struct {
	logger *common.Logger
}

// NewService creates a new lot matching service.
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

// symbolKey groups replay streams. Direction is handled inside the replay
// state; FIFO ordering is per (symbol, currency, direction).
type symbolKey struct {
	Symbol   string
	Currency string
}

// replayState tracks open lots for one symbol-currency stream.
type replayState struct {
	longs    []models.OpenLot // FIFO: oldest first
	shorts   []models.OpenLot
	seenAny  bool // at least one transaction replayed for this stream
	sequence int
}

// Match replays transactions chronologically per symbol-currency stream and
// returns the resulting lot ledger. suppressed lists symbols for which short
// inference is disabled by the delta-gap policy; unmatched exits there become
// incomplete trades instead of inferred shorts.
func (s *Service) Match(txs []models.Transaction, suppressed map[string]bool) models.LotLedger {
	streams := make(map[symbolKey]*replayState)
	keys := make([]symbolKey, 0)

	ledger := models.LotLedger{}
	for sym := range suppressed {
		if suppressed[sym] {
			ledger.SuppressedShorts = append(ledger.SuppressedShorts, sym)
		}
	}
	sort.Strings(ledger.SuppressedShorts)

	// Transactions arrive sorted from the normalizer; replay in order.
	for _, tx := range txs {
		key := symbolKey{Symbol: tx.Symbol, Currency: tx.Currency}
		st, ok := streams[key]
		if !ok {
			st = &replayState{}
			streams[key] = st
			keys = append(keys, key)
		}

		switch tx.Side {
		case models.SideBuy:
			st.longs = append(st.longs, openLotFrom(tx, models.DirectionLong, false))
			st.seenAny = true
		case models.SideShort:
			st.shorts = append(st.shorts, openLotFrom(tx, models.DirectionShort, false))
			st.seenAny = true
		case models.SideSell:
			s.consumeExit(st, tx, models.DirectionLong, suppressed[tx.Symbol], &ledger)
			st.seenAny = true
		case models.SideCover:
			s.consumeExit(st, tx, models.DirectionShort, suppressed[tx.Symbol], &ledger)
			st.seenAny = true
		default:
			// Income sides carry no lot impact.
		}
	}

	// Collect surviving open lots in deterministic stream order.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Currency < keys[j].Currency
	})
	for _, key := range keys {
		st := streams[key]
		ledger.OpenLots = append(ledger.OpenLots, st.longs...)
		ledger.OpenLots = append(ledger.OpenLots, st.shorts...)
	}

	s.logger.Debug().
		Int("open_lots", len(ledger.OpenLots)).
		Int("closed_trades", len(ledger.ClosedTrades)).
		Int("incomplete", len(ledger.IncompleteTrades)).
		Msg("Lot matching complete")

	return ledger
}

// consumeExit consumes open lots oldest-first until the exit quantity is
// satisfied. direction names the side of the book being reduced: a sell
// reduces longs, a cover reduces shorts.
func (s *Service) consumeExit(st *replayState, tx models.Transaction, direction models.Direction, inferenceSuppressed bool, ledger *models.LotLedger) {
	book := &st.longs
	if direction == models.DirectionShort {
		book = &st.shorts
	}

	remaining := tx.Quantity
	totalQty := tx.Quantity
	firstTransaction := !st.seenAny

	for remaining > qtyEpsilon && len(*book) > 0 {
		lot := &(*book)[0]
		matched := remaining
		if lot.Quantity < matched {
			matched = lot.Quantity
		}

		exitFeeShare := 0.0
		if totalQty > 0 {
			exitFeeShare = tx.Fees * (matched / totalQty)
		}
		entryFeeShare := 0.0
		if lot.Quantity > 0 {
			entryFeeShare = lot.Fees * (matched / lot.Quantity)
		}

		gross := (tx.Price - lot.EntryPrice) * matched
		if direction == models.DirectionShort {
			gross = (lot.EntryPrice - tx.Price) * matched
		}

		ledger.ClosedTrades = append(ledger.ClosedTrades, models.ClosedTrade{
			Symbol:        tx.Symbol,
			Currency:      tx.Currency,
			Direction:     direction,
			Quantity:      matched,
			EntryPrice:    lot.EntryPrice,
			EntryDate:     lot.EntryDate,
			ExitPrice:     tx.Price,
			ExitDate:      tx.Date,
			Fees:          entryFeeShare + exitFeeShare,
			RealizedPL:    gross - entryFeeShare - exitFeeShare,
			HoldingDays:   int(tx.Date.Sub(lot.EntryDate).Hours() / 24),
			FromSynthetic: lot.IsSynthetic,
			Source:        tx.Source,
			Account:       tx.Account,
		})

		lot.Fees -= entryFeeShare
		lot.Quantity -= matched
		remaining -= matched

		if lot.Quantity <= qtyEpsilon {
			*book = (*book)[1:]
		}
	}

	if remaining <= qtyEpsilon {
		return
	}

	// Unmatched exit quantity. A first-ever transaction that exits is always
	// flagged rather than inferred: there is no basis to call it a short.
	if firstTransaction || inferenceSuppressed {
		ledger.IncompleteTrades = append(ledger.IncompleteTrades, models.IncompleteTrade{
			Symbol:             tx.Symbol,
			Currency:           tx.Currency,
			Side:               tx.Side,
			Quantity:           remaining,
			Price:              tx.Price,
			Date:               tx.Date,
			UnresolvedNotional: remaining * tx.Price,
			FirstTransaction:   firstTransaction,
			Source:             tx.Source,
			Account:            tx.Account,
		})
		return
	}

	// Inference enabled: the surplus opens an opposite-direction lot.
	inferred := models.DirectionShort
	if direction == models.DirectionShort {
		inferred = models.DirectionLong
	}
	lot := models.OpenLot{
		ID:         deterministicLotID(tx, remaining),
		Symbol:     tx.Symbol,
		Currency:   tx.Currency,
		Direction:  inferred,
		Quantity:   remaining,
		EntryPrice: tx.Price,
		EntryDate:  tx.Date,
		Source:     tx.Source,
		Account:    tx.Account,
	}
	if inferred == models.DirectionShort {
		st.shorts = append(st.shorts, lot)
	} else {
		st.longs = append(st.longs, lot)
	}
}

func openLotFrom(tx models.Transaction, direction models.Direction, synthetic bool) models.OpenLot {
	return models.OpenLot{
		ID:          deterministicLotID(tx, tx.Quantity),
		Symbol:      tx.Symbol,
		Currency:    tx.Currency,
		Direction:   direction,
		Quantity:    tx.Quantity,
		EntryPrice:  tx.Price,
		EntryDate:   tx.Date,
		Fees:        tx.Fees,
		IsSynthetic: synthetic,
		Source:      tx.Source,
		Account:     tx.Account,
	}
}

// deterministicLotID derives a stable lot ID from the originating
// transaction so reruns on identical inputs reproduce identical ledgers.
func deterministicLotID(tx models.Transaction, qty float64) string {
	key := tx.ID + "|" + tx.Symbol + "|" + tx.Date.Format(time.RFC3339) + "|" + strconv.FormatFloat(qty, 'f', -1, 64)
	return "lot_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()[:8]
}
