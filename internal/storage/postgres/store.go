package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
)

// Store provides Postgres persistence for simulation output.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertSnapshots inserts or updates pool state snapshots.
func (s *Store) UpsertSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				run_id, step, ts, sqrt_price_x96, tick, liquidity, liquidity_staked,
				fee_growth0_x128, fee_growth1_x128, reward_growth_x128,
				protocol_fees0, protocol_fees1, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (run_id, step)
			DO UPDATE SET
				ts = EXCLUDED.ts,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				tick = EXCLUDED.tick,
				liquidity = EXCLUDED.liquidity,
				liquidity_staked = EXCLUDED.liquidity_staked,
				fee_growth0_x128 = EXCLUDED.fee_growth0_x128,
				fee_growth1_x128 = EXCLUDED.fee_growth1_x128,
				reward_growth_x128 = EXCLUDED.reward_growth_x128,
				protocol_fees0 = EXCLUDED.protocol_fees0,
				protocol_fees1 = EXCLUDED.protocol_fees1,
				updated_at = now()
		`,
			snap.RunID,
			int64(snap.Step),
			int64(snap.Timestamp),
			snap.SqrtPriceX96,
			snap.Tick,
			snap.Liquidity,
			snap.LiquidityStaked,
			snap.FeeGrowthGlobal0X128,
			snap.FeeGrowthGlobal1X128,
			snap.RewardGrowthGlobalX128,
			snap.ProtocolFees0,
			snap.ProtocolFees1,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertRuns inserts or updates run summaries.
func (s *Store) UpsertRuns(ctx context.Context, runs []model.SimRun) error {
	if len(runs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, run := range runs {
		batch.Queue(`
			INSERT INTO sim_runs (
				run_id, seed, steps, swap_count, mint_count, burn_count, stake_count,
				flash_count, failed_count, volume0, volume1, final_tick,
				started_at_ts, finished_at_ts, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (run_id)
			DO UPDATE SET
				seed = EXCLUDED.seed,
				steps = EXCLUDED.steps,
				swap_count = EXCLUDED.swap_count,
				mint_count = EXCLUDED.mint_count,
				burn_count = EXCLUDED.burn_count,
				stake_count = EXCLUDED.stake_count,
				flash_count = EXCLUDED.flash_count,
				failed_count = EXCLUDED.failed_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				final_tick = EXCLUDED.final_tick,
				started_at_ts = EXCLUDED.started_at_ts,
				finished_at_ts = EXCLUDED.finished_at_ts,
				updated_at = now()
		`,
			run.RunID,
			run.Seed,
			int64(run.Steps),
			int64(run.SwapCount),
			int64(run.MintCount),
			int64(run.BurnCount),
			int64(run.StakeCount),
			int64(run.FlashCount),
			int64(run.FailedCount),
			run.Volume0,
			run.Volume1,
			run.FinalTick,
			int64(run.StartedAt),
			int64(run.FinishedAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range runs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last completed step for a run.
func (s *Store) LoadState(ctx context.Context, runID string) (uint64, bool, error) {
	if runID == "" {
		return 0, false, fmt.Errorf("run id required")
	}
	var step uint64
	row := s.pool.QueryRow(ctx, `SELECT last_step FROM sim_state WHERE run_id=$1`, runID)
	if err := row.Scan(&step); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return step, true, nil
}

// SaveState upserts the last completed step for a run.
func (s *Store) SaveState(ctx context.Context, runID string, step uint64) error {
	if runID == "" {
		return fmt.Errorf("run id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sim_state (run_id, last_step, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (run_id) DO UPDATE
		SET last_step = EXCLUDED.last_step, updated_at = now()
	`, runID, step)
	return err
}
