package models

import "time"

type PositionSide string
type PendingType string
type TradeAction string
type RoundMode string
type TradeSide string

const (
	PositionSideBuy  PositionSide = "BUY"
	PositionSideSell PositionSide = "SELL"

	PendingTypeBuyStop  PendingType = "BUY_STOP"
	PendingTypeSellStop PendingType = "SELL_STOP"

	TradeActionPlace    TradeAction = "PENDING"
	TradeActionRemove   TradeAction = "REMOVE"
	TradeActionDeal     TradeAction = "DEAL"
	TradeActionModifySL TradeAction = "SLTP"

	RoundNearest RoundMode = "nearest"
	RoundUp      RoundMode = "up"
	RoundDown    RoundMode = "down"

	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
	TradeSideBoth TradeSide = "both"
)

const (
	FillModeReturn = "RETURN"
	FillModeFOK    = "FOK"
	FillModeIOC    = "IOC"
)

// FillModes — порядок перебора режимов исполнения при отправке ордера.
var FillModes = []string{FillModeReturn, FillModeFOK, FillModeIOC}

const (
	RetCodeDone        = 10009
	RetCodeRequote     = 10004
	RetCodeInvalidFill = 10030
	RetCodeTooMany     = 10033
)

type PendingOrder struct {
	Ticket  int64       `json:"ticket"`
	Symbol  string      `json:"symbol"`
	Type    PendingType `json:"type"`
	Price   float64     `json:"price"`
	Volume  float64     `json:"volume"`
	Magic   int64       `json:"magic"`
	Comment string      `json:"comment"`
}

type Position struct {
	Ticket    int64        `json:"ticket"`
	Symbol    string       `json:"symbol"`
	Side      PositionSide `json:"side"`
	PriceOpen float64      `json:"price_open"`
	Volume    float64      `json:"volume"`
	StopLoss  float64      `json:"stop_loss"`
	TakeProf  float64      `json:"take_profit"`
	Profit    float64      `json:"profit"`
	Magic     int64        `json:"magic"`
}

type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

type SymbolInfo struct {
	Symbol          string  `json:"symbol"`
	Digits          int     `json:"digits"`
	Point           float64 `json:"point"`
	MinStopDistance float64 `json:"min_stop_distance"`
}

type AccountInfo struct {
	Login   int64   `json:"login"`
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}

type TradeRequest struct {
	Action    TradeAction  `json:"action"`
	Symbol    string       `json:"symbol"`
	Type      PendingType  `json:"type,omitempty"`
	Side      PositionSide `json:"side,omitempty"`
	Price     float64      `json:"price,omitempty"`
	Volume    float64      `json:"volume,omitempty"`
	StopLoss  float64      `json:"sl,omitempty"`
	TakeProf  float64      `json:"tp,omitempty"`
	Ticket    int64        `json:"ticket,omitempty"`
	Position  int64        `json:"position,omitempty"`
	Deviation int          `json:"deviation,omitempty"`
	Magic     int64        `json:"magic,omitempty"`
	Comment   string       `json:"comment,omitempty"`
	FillMode  string       `json:"fill_mode,omitempty"`
}

type TradeResult struct {
	RetCode int    `json:"retcode"`
	Ticket  int64  `json:"ticket"`
	Comment string `json:"comment"`
}

func (r TradeResult) Done() bool {
	return r.RetCode == RetCodeDone
}

func Opposite(side PositionSide) PositionSide {
	if side == PositionSideBuy {
		return PositionSideSell
	}
	return PositionSideBuy
}

// MirrorTypeFor возвращает тип отложенного ордера, зеркального к позиции.
func MirrorTypeFor(side PositionSide) PendingType {
	if side == PositionSideBuy {
		return PendingTypeSellStop
	}
	return PendingTypeBuyStop
}

func (s TradeSide) AllowsBuy() bool {
	return s == TradeSideBuy || s == TradeSideBoth
}

func (s TradeSide) AllowsSell() bool {
	return s == TradeSideSell || s == TradeSideBoth
}
