package model

// PoolSnapshot is a point-in-time copy of the pool's global accounting state,
// keyed by the simulation run and step that produced it.
type PoolSnapshot struct {
	RunID                  string
	Step                   uint64
	Timestamp              uint64
	SqrtPriceX96           string
	Tick                   int32
	Liquidity              string
	LiquidityStaked        string
	FeeGrowthGlobal0X128   string
	FeeGrowthGlobal1X128   string
	RewardGrowthGlobalX128 string
	ProtocolFees0          string
	ProtocolFees1          string
}

// SimRun summarizes one completed simulation run.
type SimRun struct {
	RunID       string
	Seed        int64
	Steps       uint64
	SwapCount   uint64
	MintCount   uint64
	BurnCount   uint64
	StakeCount  uint64
	FlashCount  uint64
	FailedCount uint64
	Volume0     string
	Volume1     string
	FinalTick   int32
	StartedAt   uint64
	FinishedAt  uint64
}
