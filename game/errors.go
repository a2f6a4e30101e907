package game

import "errors"

var (
	// ErrInvalidIndex is returned by SelectCard for a position outside the deck.
	ErrInvalidIndex = errors.New("invalid card index")
	// ErrInvalidSymbols is returned when a symbol set cannot build a deck.
	ErrInvalidSymbols = errors.New("invalid symbol set")
)
