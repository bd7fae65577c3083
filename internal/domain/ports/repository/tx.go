package repository

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories must accept NoTX and run outside a transaction.
type Tx interface{}

var NoTX Tx
