package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/model"
)

// IndicatorRepo persists C5's computed rows, one per (symbol, date).
type IndicatorRepo struct {
	db *sqlx.DB
}

func NewIndicatorRepo(db *sqlx.DB) *IndicatorRepo {
	return &IndicatorRepo{db: db}
}

const upsertIndicatorRowSQL = `
INSERT INTO indicator_rows (
	symbol, date, sma_50, sma_100, sma_200, ema_9, ema_12, ema_20, ema_21, ema_26, ema_50,
	rsi_14, macd_line, macd_signal, macd_histogram, atr_14,
	bollinger_mid, bollinger_upper, bollinger_lower, volume_mean_20,
	price_above_sma200, price_below_sma50, price_below_sma200,
	ema9_above_ema21, ema12_above_ema26, ema20_above_ema50, sma50_above_sma200,
	macd_above_signal, macd_histogram_positive, rsi_zone,
	volume_above_average, volume_spike, higher_highs, higher_lows
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	$12, $13, $14, $15, $16,
	$17, $18, $19, $20,
	$21, $22, $23,
	$24, $25, $26, $27,
	$28, $29, $30,
	$31, $32, $33, $34
)
ON CONFLICT (symbol, date) DO UPDATE SET
	sma_50 = EXCLUDED.sma_50, sma_100 = EXCLUDED.sma_100, sma_200 = EXCLUDED.sma_200,
	ema_9 = EXCLUDED.ema_9, ema_12 = EXCLUDED.ema_12, ema_20 = EXCLUDED.ema_20,
	ema_21 = EXCLUDED.ema_21, ema_26 = EXCLUDED.ema_26, ema_50 = EXCLUDED.ema_50,
	rsi_14 = EXCLUDED.rsi_14, macd_line = EXCLUDED.macd_line, macd_signal = EXCLUDED.macd_signal,
	macd_histogram = EXCLUDED.macd_histogram, atr_14 = EXCLUDED.atr_14,
	bollinger_mid = EXCLUDED.bollinger_mid, bollinger_upper = EXCLUDED.bollinger_upper,
	bollinger_lower = EXCLUDED.bollinger_lower, volume_mean_20 = EXCLUDED.volume_mean_20,
	price_above_sma200 = EXCLUDED.price_above_sma200, price_below_sma50 = EXCLUDED.price_below_sma50,
	price_below_sma200 = EXCLUDED.price_below_sma200, ema9_above_ema21 = EXCLUDED.ema9_above_ema21,
	ema12_above_ema26 = EXCLUDED.ema12_above_ema26, ema20_above_ema50 = EXCLUDED.ema20_above_ema50,
	sma50_above_sma200 = EXCLUDED.sma50_above_sma200, macd_above_signal = EXCLUDED.macd_above_signal,
	macd_histogram_positive = EXCLUDED.macd_histogram_positive, rsi_zone = EXCLUDED.rsi_zone,
	volume_above_average = EXCLUDED.volume_above_average, volume_spike = EXCLUDED.volume_spike,
	higher_highs = EXCLUDED.higher_highs, higher_lows = EXCLUDED.higher_lows
`

func (r *IndicatorRepo) Save(ctx context.Context, rows []model.IndicatorRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertIndicatorRowSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Symbol, row.Date, row.SMA50, row.SMA100, row.SMA200,
			row.EMA9, row.EMA12, row.EMA20, row.EMA21, row.EMA26, row.EMA50,
			row.RSI14, row.MACDLine, row.MACDSignal, row.MACDHistogram, row.ATR14,
			row.BollingerMid, row.BollingerUpper, row.BollingerLower, row.VolumeMean20,
			row.PriceAboveSMA200, row.PriceBelowSMA50, row.PriceBelowSMA200,
			row.EMA9AboveEMA21, row.EMA12AboveEMA26, row.EMA20AboveEMA50, row.SMA50AboveSMA200,
			row.MACDAboveSignal, row.MACDHistogramPositive, row.RSIZone,
			row.VolumeAboveAverage, row.VolumeSpike, row.HigherHighs, row.HigherLows,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *IndicatorRepo) Get(ctx context.Context, symbol string, date time.Time) (*model.IndicatorRow, error) {
	const q = `SELECT * FROM indicator_rows WHERE symbol = $1 AND date = $2`
	var row model.IndicatorRow
	if err := r.db.GetContext(ctx, &row, q, symbol, date); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *IndicatorRepo) Latest(ctx context.Context, symbol string, limit int) ([]model.IndicatorRow, error) {
	const q = `SELECT * FROM indicator_rows WHERE symbol = $1 ORDER BY date DESC LIMIT $2`
	var rows []model.IndicatorRow
	if err := r.db.SelectContext(ctx, &rows, q, symbol, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
