// Package storage defines the content-store boundary the resolution engine
// fetches from. Real-vs-mock backing is an interface choice, invisible to the
// engine: a Kubo node, a local directory and an in-memory map all satisfy the
// same contract.
package storage

import "github.com/ipfs/go-cid"

// CAS is the minimal content-addressable store interface.
//
// Contract:
//   - Put MUST be idempotent: the same bytes always produce the same CID.
//   - Stored objects MUST be immutable; a CID is never reused for different bytes.
//   - Get MUST return ErrNotFound for a never-Put CID (absence, not failure).
//   - CIDs follow the cidutil contract (CIDv1 raw + sha2-256).
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
