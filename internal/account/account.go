// Package account is the C6 component: the balance and position ledgers,
// and the reserve/release/settle operations that tie them to the order
// ledger. It is grounded in internal/balance/manager.go (Lock/Unlock/
// Deduct/Add, generalized here from one cached balance to a per-Token
// ledger) and internal/state/manager.go's RecordFill (whose BUY/SELL
// flip-and-reweight logic generalizes directly into applyPositionDelta).
package account

import (
	"fmt"
	"hash/fnv"
	"time"

	"simexchange/internal/model"
)

const epsilon = 1e-9

// reservation tracks what was set aside against one resting order, so
// ReleaseOnCancel and SettleFill know exactly how much to give back or
// consume. Rate is fixed at reservation time (amount per unit of order
// quantity); Amount is the remaining, not-yet-consumed-or-released balance.
type reservation struct {
	Token  model.Token
	Amount float64
	Rate   float64
}

// Account holds one exchange account's balances and positions. It carries
// no locking of its own: per spec §5, the exchange event loop is the sole
// owner and serializes every mutation, so the per-map locks the source used
// collapse entirely (spec §9 design notes).
type Account struct {
	Exchange  string
	Config    model.AccountConfig
	Balances  map[model.Token]*model.Balance
	Positions model.AccountPositions

	reservations map[model.OrderID]reservation
}

// New creates an account with empty ledgers.
func New(exchange string, cfg model.AccountConfig) *Account {
	return &Account{
		Exchange:     exchange,
		Config:       cfg,
		Balances:     make(map[model.Token]*model.Balance),
		Positions:    make(model.AccountPositions),
		reservations: make(map[model.OrderID]reservation),
	}
}

// SetBalance seeds (or overwrites) a token's balance, used at account setup.
func (a *Account) SetBalance(token model.Token, bal model.Balance) {
	b := bal
	a.Balances[token] = &b
}

// Balance returns a copy of a token's current balance (zero value if the
// account has never held it).
func (a *Account) Balance(token model.Token) model.Balance {
	return *a.balance(token)
}

func (a *Account) balance(token model.Token) *model.Balance {
	b, ok := a.Balances[token]
	if !ok {
		b = &model.Balance{}
		a.Balances[token] = b
	}
	return b
}

func (a *Account) leverage() float64 {
	if a.Config.AccountLeverageRate <= 0 {
		return 1
	}
	return a.Config.AccountLeverageRate
}

// reservationRateFor returns the token reserved against an order and the
// amount reserved per unit of its current remaining quantity, per spec
// §4.5. Spot orders reserve the token that's actually delivered — quote for
// a Buy, base for a Sell — unleveraged, since a Spot account must hold what
// it sells. Margin instruments reserve quote margin, but only against the
// portion of size that adds new exposure: in NetMode, the part of an order
// that merely offsets an existing opposite position is closing risk, not
// opening it, and reserves nothing (the position's own margin already
// covers it, and is released as that position shrinks).
func (a *Account) reservationRateFor(order *model.Order, leverage float64) (model.Token, float64) {
	if order.Instrument.Kind == model.Spot {
		if order.Side == model.SideBuy {
			return order.Instrument.Quote, order.Price
		}
		return order.Instrument.Base, 1
	}

	qty := order.RemainingQuantity()
	if qty <= epsilon {
		return order.Instrument.Quote, order.Price / leverage
	}
	netQty := qty
	if a.Config.PositionMode == model.NetMode {
		if opp := a.oppositePositionSize(order.Instrument, order.Side); opp > 0 {
			netQty = qty - opp
			if netQty < 0 {
				netQty = 0
			}
		}
	}
	return order.Instrument.Quote, (netQty / qty) * (order.Price / leverage)
}

// ReserveForOpen reduces the relevant token's Available (leaving Total
// untouched) by the amount a RequestOpen/Open order requires, failing with
// ErrInsufficientBalance if Available can't cover it.
func (a *Account) ReserveForOpen(order *model.Order) error {
	if order.ReduceOnly && !a.hasOffsettingPosition(order.Instrument, order.Side) {
		return fmt.Errorf("%w: reduce-only order with no offsetting position", model.ErrInvalidRequest)
	}

	token, rate := a.reservationRateFor(order, a.leverage())
	amount := rate * order.RemainingQuantity()
	bal := a.balance(token)
	if err := bal.Apply(model.BalanceDelta{Available: -amount}); err != nil {
		return err
	}
	a.reservations[order.ID] = reservation{Token: token, Amount: amount, Rate: rate}
	return nil
}

// hasOffsettingPosition reports whether the account holds a position on the
// opposite side of `side` for `instrument` — the condition a reduce-only
// order requires to be valid.
func (a *Account) hasOffsettingPosition(instrument model.Instrument, side model.Side) bool {
	want := side.Opposite()
	for key := range a.Positions {
		if key.Instrument == instrument && key.Side == want {
			return true
		}
	}
	return false
}

// oppositePositionSize returns the current size of the position on the
// opposite side of `side` for `instrument`, or zero if none is held.
func (a *Account) oppositePositionSize(instrument model.Instrument, side model.Side) float64 {
	kind, ok := positionKindFor(instrument.Kind)
	if !ok {
		return 0
	}
	key := model.PositionKey{Kind: kind, Side: side.Opposite(), Instrument: instrument}
	if p, ok := a.Positions[key]; ok {
		return p.Meta.CurrentSize
	}
	return 0
}

// ReleaseOnCancel restores a resting order's full remaining reservation to
// Available. A no-op if nothing was reserved (e.g. a non-resting order that
// already had its leftover released at match time).
func (a *Account) ReleaseOnCancel(order *model.Order) error {
	res, ok := a.reservations[order.ID]
	if !ok {
		return nil
	}
	bal := a.balance(res.Token)
	if err := bal.Apply(model.BalanceDelta{Available: res.Amount}); err != nil {
		return err
	}
	delete(a.reservations, order.ID)
	return nil
}

// ReleaseUnfilledRemainder gives back the reservation on the part of a
// Market/IOC order that could not be filled (it never rests, so it can
// never be Cancelled — this is its only path back to Available).
func (a *Account) ReleaseUnfilledRemainder(order *model.Order, unfilledQty float64) {
	if unfilledQty <= epsilon {
		return
	}
	res, ok := a.reservations[order.ID]
	if !ok {
		return
	}
	amount := res.Rate * unfilledQty
	if amount > res.Amount {
		amount = res.Amount
	}
	bal := a.balance(res.Token)
	_ = bal.Apply(model.BalanceDelta{Available: amount})
	res.Amount -= amount
	if res.Amount <= epsilon {
		delete(a.reservations, order.ID)
	} else {
		a.reservations[order.ID] = res
	}
}

// HasLongPosition reports whether the account holds a long (Buy-origin)
// position for instrument, in any position kind.
func (a *Account) HasLongPosition(instrument model.Instrument) bool {
	return a.hasPositionSide(instrument, model.SideBuy)
}

// HasShortPosition reports whether the account holds a short (Sell-origin)
// position for instrument, in any position kind.
func (a *Account) HasShortPosition(instrument model.Instrument) bool {
	return a.hasPositionSide(instrument, model.SideSell)
}

func (a *Account) hasPositionSide(instrument model.Instrument, side model.Side) bool {
	for key := range a.Positions {
		if key.Instrument == instrument && key.Side == side {
			return true
		}
	}
	return false
}

// SettleFill charges commission, moves the filled portion out of its
// reservation, and updates the position ledger. It returns the
// ClientTrade settlement record (spec §3).
//
// Margin-accounting discipline (DESIGN.md Open Question 1): the filled
// notional is removed from Total only — it was already removed from
// Available when the order was opened — while commission is removed from
// both Total and Available on the quote token, since it was never reserved
// for. This keeps `available + reservations == total` intact on each token
// across a fill; margin backing an open position is taken out of Total and
// only comes back into it when the position is reduced (applyPositionDelta).
func (a *Account) SettleFill(order *model.Order, fillPrice, fillQty float64, role model.OrderRole, ts time.Time) (model.ClientTrade, error) {
	if fillQty <= 0 {
		return model.ClientTrade{}, fmt.Errorf("%w: non-positive fill quantity", model.ErrInvalidRequest)
	}

	commission := fillPrice * fillQty * a.Config.Rate(order.Instrument.Kind, role)
	quote := a.balance(order.Instrument.Quote)

	if order.Instrument.Kind == model.Spot {
		if order.Side == model.SideBuy {
			consumed := fillPrice * fillQty
			a.consumeReservation(order.ID, consumed)
			if err := quote.Apply(model.BalanceDelta{Total: -consumed}); err != nil {
				return model.ClientTrade{}, err
			}
			if err := quote.Apply(model.BalanceDelta{Total: -commission, Available: -commission}); err != nil {
				return model.ClientTrade{}, err
			}
			base := a.balance(order.Instrument.Base)
			if err := base.Apply(model.BalanceDelta{Total: fillQty, Available: fillQty}); err != nil {
				return model.ClientTrade{}, err
			}
		} else {
			a.consumeReservation(order.ID, fillQty)
			base := a.balance(order.Instrument.Base)
			if err := base.Apply(model.BalanceDelta{Total: -fillQty}); err != nil {
				return model.ClientTrade{}, err
			}
			proceeds := fillPrice*fillQty - commission
			if err := quote.Apply(model.BalanceDelta{Total: proceeds, Available: proceeds}); err != nil {
				return model.ClientTrade{}, err
			}
		}
	} else {
		// Margin instruments: consume the reservation at its fixed rate
		// (reservationRateFor), which already nets out any portion of the
		// order that was merely closing existing exposure — no base-token
		// transfer happens at all.
		var consumed float64
		if res, ok := a.reservations[order.ID]; ok {
			consumed = res.Rate * fillQty
		} else {
			consumed = fillPrice * fillQty / a.leverage()
		}
		a.consumeReservation(order.ID, consumed)
		if err := quote.Apply(model.BalanceDelta{Total: -consumed}); err != nil {
			return model.ClientTrade{}, err
		}
		if err := quote.Apply(model.BalanceDelta{Total: -commission, Available: -commission}); err != nil {
			return model.ClientTrade{}, err
		}

		if err := a.applyPositionDelta(order.Instrument, order.Side, fillPrice, fillQty, commission, ts); err != nil {
			return model.ClientTrade{}, err
		}
	}

	return model.ClientTrade{
		Instrument: order.Instrument,
		Price:      fillPrice,
		Quantity:   fillQty,
		Fees:       commission,
		Side:       order.Side,
		Timestamp:  ts,
	}, nil
}

func (a *Account) consumeReservation(id model.OrderID, amount float64) {
	res, ok := a.reservations[id]
	if !ok {
		return
	}
	res.Amount -= amount
	if res.Amount <= epsilon {
		delete(a.reservations, id)
	} else {
		a.reservations[id] = res
	}
}

func positionKindFor(kind model.InstrumentKind) (model.PositionKind, bool) {
	switch kind {
	case model.Perpetual:
		return model.PositionPerpetual, true
	case model.Future, model.CommodityFuture:
		return model.PositionFuture, true
	case model.CryptoLeveragedToken:
		return model.PositionLeveragedToken, true
	case model.CryptoOption, model.CommodityOption:
		return model.PositionOption, true
	default:
		return 0, false
	}
}

func realizedPnL(positionSide model.Side, entryAvg, exitPrice, qty float64) float64 {
	if positionSide == model.SideBuy {
		return (exitPrice - entryAvg) * qty
	}
	return (entryAvg - exitPrice) * qty
}

func positionID(instrument model.Instrument, ts time.Time) model.PositionID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(instrument.String()))
	_, _ = fmt.Fprintf(h, "|%d", ts.UnixNano())
	return model.PositionID(h.Sum64())
}

// applyPositionDelta opens/augments/reduces/flips a position, per spec
// §4.5. `side` is the side of the fill (the order's side), not the
// position's side.
func (a *Account) applyPositionDelta(instrument model.Instrument, side model.Side, price, qty, fees float64, ts time.Time) error {
	kind, ok := positionKindFor(instrument.Kind)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnsupportedInstrument, instrument.Kind)
	}

	sameKey := model.PositionKey{Kind: kind, Side: side, Instrument: instrument}
	oppKey := model.PositionKey{Kind: kind, Side: side.Opposite(), Instrument: instrument}
	opposite, hasOpposite := a.Positions[oppKey]

	if hasOpposite && a.Config.PositionMode == model.NetMode {
		closedQty := qty
		if closedQty > opposite.Meta.CurrentSize {
			closedQty = opposite.Meta.CurrentSize
		}

		marginPerUnit := opposite.Margin / opposite.Meta.CurrentSize
		releasedMargin := marginPerUnit * closedQty
		pnl := realizedPnL(opposite.Meta.Side, opposite.Meta.CurrentAvgPrice, price, closedQty)

		opposite.Meta.RealisedPnL += pnl
		opposite.Meta.CurrentSize -= closedQty
		opposite.Margin -= releasedMargin
		opposite.Meta.CurrentFeesTotal += fees
		opposite.Meta.CurrentSymbolPrice = price
		opposite.Meta.UpdateTS = ts
		if opposite.Meta.CurrentSize <= epsilon {
			delete(a.Positions, oppKey)
		}

		// The margin that secured the closed portion, plus whatever it
		// realised or lost, flows back into spendable balance.
		quote := a.balance(instrument.Quote)
		_ = quote.Apply(model.BalanceDelta{Total: releasedMargin + pnl, Available: releasedMargin + pnl})

		remainder := qty - closedQty
		if remainder > epsilon {
			a.openOrAugment(sameKey, kind, instrument, side, price, remainder, fees, ts)
		}
		return nil
	}

	a.openOrAugment(sameKey, kind, instrument, side, price, qty, fees, ts)
	return nil
}

func (a *Account) openOrAugment(key model.PositionKey, kind model.PositionKind, instrument model.Instrument, side model.Side, price, qty, fees float64, ts time.Time) {
	existing, ok := a.Positions[key]
	if !ok {
		a.open(key, kind, instrument, side, price, qty, fees, ts)
		return
	}
	totalNotional := existing.Meta.CurrentAvgPrice*existing.Meta.CurrentSize + price*qty
	existing.Meta.CurrentSize += qty
	if existing.Meta.CurrentSize > epsilon {
		existing.Meta.CurrentAvgPrice = totalNotional / existing.Meta.CurrentSize
		existing.Meta.CurrentAvgPriceGross = existing.Meta.CurrentAvgPrice
	}
	existing.Meta.CurrentFeesTotal += fees
	existing.Meta.CurrentSymbolPrice = price
	existing.Meta.UpdateTS = ts
}

func (a *Account) open(key model.PositionKey, kind model.PositionKind, instrument model.Instrument, side model.Side, price, qty, fees float64, ts time.Time) {
	leverage := a.leverage()
	margin := price * qty / leverage

	// Liquidation price: same formula for Buy and Sell with only a sign
	// flip (DESIGN.md Open Question 2) — ignores maintenance margin, kept
	// for parity with the source rather than corrected.
	var liq float64
	if side == model.SideBuy {
		liq = price * (1 - margin/(qty*price))
	} else {
		liq = price * (1 + margin/(qty*price))
	}

	a.Positions[key] = &model.Position{
		Kind: kind,
		Meta: model.PositionMeta{
			ID:                   positionID(instrument, ts),
			EnterTS:              ts,
			UpdateTS:             ts,
			Exchange:             a.Exchange,
			Instrument:           instrument,
			Side:                 side,
			CurrentSize:          qty,
			CurrentFeesTotal:     fees,
			CurrentAvgPriceGross: price,
			CurrentSymbolPrice:   price,
			CurrentAvgPrice:      price,
		},
		Config: model.PositionConfig{
			PosMarginMode: a.Config.PositionMarginMode,
			Leverage:      leverage,
			PositionMode:  a.Config.PositionMode,
		},
		LiquidationPrice: liq,
		Margin:           margin,
	}
}

// Snapshot returns a point-in-time copy of balances and positions together,
// so external readers never observe a torn view between the two ledgers
// (spec §5).
func (a *Account) Snapshot() (balances []model.TokenBalance, positions []model.Position) {
	for token, bal := range a.Balances {
		balances = append(balances, model.TokenBalance{Token: token, Balance: *bal})
	}
	for _, pos := range a.Positions {
		positions = append(positions, *pos)
	}
	return balances, positions
}
