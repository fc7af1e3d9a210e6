package store

import (
	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// Backend is everything the engine persists. memory, sqlite and postgres
// stores all satisfy it.
type Backend interface {
	contract.Store
	fixedterm.Store
	benefit.TxStore
	params.Store
	generic.AuditLog
}
