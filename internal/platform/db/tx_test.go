package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	require.True(t, b.tx.committed)
	require.False(t, b.tx.rolledBack)
	require.Equal(t, pgx.ReadCommitted, b.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	require.ErrorIs(t, WithTx(context.Background(), b, func(pgx.Tx) error { return boom }), boom)
	require.False(t, b.tx.committed)
	require.True(t, b.tx.rolledBack)
}

func TestWithTxCommitFailure(t *testing.T) {
	commitErr := errors.New("serialization failure")
	b := &fakeBeginner{tx: &fakeTx{commitErr: commitErr}}
	err := WithTxOptions(context.Background(), b, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, commitErr)
	require.True(t, b.tx.rolledBack)
	require.Equal(t, pgx.Serializable, b.opts.IsoLevel)
}

func TestWithTxBeginFailure(t *testing.T) {
	b := &fakeBeginner{err: errors.New("pool closed")}
	called := false
	require.Error(t, WithTx(context.Background(), b, func(pgx.Tx) error {
		called = true
		return nil
	}))
	require.False(t, called)
}
