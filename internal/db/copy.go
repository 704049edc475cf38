package db

import (
	"github.com/jackc/pgx/v5"
)

// CopyRow is a row that knows its own COPY column values.
type CopyRow interface {
	CopyValues() []any
}

// ChannelSource implements pgx.CopyFromSource by reading rows from a channel.
// This provides natural backpressure between the result expander and the
// COPY writer.
type ChannelSource[R CopyRow] struct {
	ch      <-chan R
	current R
	err     error
}

// NewChannelSource creates a CopyFromSource backed by a channel.
func NewChannelSource[R CopyRow](ch <-chan R) *ChannelSource[R] {
	return &ChannelSource[R]{ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource[R]) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	return true
}

// Values returns the current row's values in COPY column order.
func (s *ChannelSource[R]) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns any error encountered during iteration.
func (s *ChannelSource[R]) Err() error {
	return s.err
}

// Compile-time check that ChannelSource satisfies the interface.
var _ pgx.CopyFromSource = (*ChannelSource[CopyRow])(nil)
