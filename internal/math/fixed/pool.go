package fixed

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

var uint256Pool = sync.Pool{
	New: func() interface{} {
		return new(uint256.Int)
	},
}

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

// GetU256 gets a scratch uint256.Int from the pool
func GetU256() *uint256.Int {
	return uint256Pool.Get().(*uint256.Int)
}

// PutU256 returns a uint256.Int to the pool
func PutU256(v *uint256.Int) {
	v.Clear()
	uint256Pool.Put(v)
}

// GetBigInt gets a scratch big.Int from the pool
func GetBigInt() *big.Int {
	return bigIntPool.Get().(*big.Int)
}

// PutBigInt returns a big.Int to the pool
func PutBigInt(v *big.Int) {
	v.SetInt64(0)
	bigIntPool.Put(v)
}
