package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// PriceChunkSize bounds rows per market_prices batch
const PriceChunkSize = 100

// Repository implements contracts.Store on PostgreSQL
// ⭐ SSOT: 모든 DB 쓰기는 Repository를 통해서만
type Repository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

var _ contracts.Store = (*Repository)(nil)

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, logger: log.WithComponent("persistence")}
}

// Ping checks connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// =====================================================
// ticker_insights
// =====================================================

// UpsertTickerInsight writes the latest verdict for a ticker. Last write wins.
func (r *Repository) UpsertTickerInsight(ctx context.Context, row contracts.TickerInsight) error {
	query := `
		INSERT INTO ticker_insights (
			ticker, ai_score, ai_signal, ai_risk, ai_summary,
			current_price, market_cap, pe_ratio, analyst_rating, target_price,
			short_float, insider_held, sector, industry, vix, market_sentiment, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (ticker) DO UPDATE SET
			ai_score = EXCLUDED.ai_score,
			ai_signal = EXCLUDED.ai_signal,
			ai_risk = EXCLUDED.ai_risk,
			ai_summary = EXCLUDED.ai_summary,
			current_price = EXCLUDED.current_price,
			market_cap = EXCLUDED.market_cap,
			pe_ratio = EXCLUDED.pe_ratio,
			analyst_rating = EXCLUDED.analyst_rating,
			target_price = EXCLUDED.target_price,
			short_float = EXCLUDED.short_float,
			insider_held = EXCLUDED.insider_held,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			vix = EXCLUDED.vix,
			market_sentiment = EXCLUDED.market_sentiment,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		row.Ticker, row.Score, row.Signal, string(row.Risk), row.Summary,
		row.CurrentPrice, row.MarketCap, row.PERatio, nullString(row.AnalystRating), row.TargetPrice,
		row.ShortFloat, row.InsiderHeld, nullString(row.Sector), nullString(row.Industry),
		row.VIX, nullString(row.MarketSentiment), row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert ticker insight %s: %w", row.Ticker, err)
	}
	return nil
}

// GetTickerInsight returns the stored verdict. contracts.ErrNotFound when absent.
func (r *Repository) GetTickerInsight(ctx context.Context, ticker string) (*contracts.TickerInsight, error) {
	query := `
		SELECT ticker, ai_score, ai_signal, ai_risk, ai_summary,
		       current_price, market_cap, pe_ratio, COALESCE(analyst_rating, ''), target_price,
		       short_float, insider_held, COALESCE(sector, ''), COALESCE(industry, ''),
		       vix, COALESCE(market_sentiment, ''), updated_at
		FROM ticker_insights
		WHERE ticker = $1
	`

	var row contracts.TickerInsight
	var risk string
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(ticker)).Scan(
		&row.Ticker, &row.Score, &row.Signal, &risk, &row.Summary,
		&row.CurrentPrice, &row.MarketCap, &row.PERatio, &row.AnalystRating, &row.TargetPrice,
		&row.ShortFloat, &row.InsiderHeld, &row.Sector, &row.Industry,
		&row.VIX, &row.MarketSentiment, &row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticker insight %s: %w", ticker, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticker insight %s: %w", ticker, err)
	}
	row.Risk = contracts.RiskLevel(risk)
	return &row, nil
}

// =====================================================
// posts
// =====================================================

const postColumns = `id, COALESCE(user_id, ''), ticker, content, ai_score, COALESCE(ai_risk, ''), COALESCE(ai_summary, ''), created_at`

func scanPost(row pgx.Row) (contracts.Post, error) {
	var p contracts.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Ticker, &p.Content, &p.AIScore, &p.AIRisk, &p.AISummary, &p.CreatedAt)
	return p, err
}

// GetPost returns one post. contracts.ErrNotFound when absent.
func (r *Repository) GetPost(ctx context.Context, id int64) (*contracts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	p, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &p, nil
}

// PostsByIDs returns the posts among ids that exist, oldest first
func (r *Repository) PostsByIDs(ctx context.Context, ids []int64) ([]contracts.Post, error) {
	if len(ids) == 0 {
		return []contracts.Post{}, nil
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1) ORDER BY created_at ASC`
	return r.queryPosts(ctx, query, ids)
}

// PendingPosts returns posts without an AI score, oldest first, skipping the ids in exclude
func (r *Repository) PendingPosts(ctx context.Context, limit int, exclude []int64) ([]contracts.Post, error) {
	if exclude == nil {
		exclude = []int64{} // NULL 배열이면 <> ALL 이 NULL
	}
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE ai_score IS NULL AND id <> ALL($2)
		ORDER BY created_at ASC LIMIT $1`
	return r.queryPosts(ctx, query, limit, exclude)
}

func (r *Repository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]contracts.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []contracts.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// UpdatePost applies the non-nil fields of upd
func (r *Repository) UpdatePost(ctx context.Context, id int64, upd contracts.PostUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	sets, args := updateClauses(upd)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update post %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update post %d: %w", id, contracts.ErrNotFound)
	}
	return nil
}

// updateClauses builds "col = $n" pairs in a fixed column order
func updateClauses(upd contracts.PostUpdate) ([]string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.AIScore != nil {
		add("ai_score", *upd.AIScore)
	}
	if upd.AIRisk != nil {
		add("ai_risk", *upd.AIRisk)
	}
	if upd.UserSentimentLabel != nil {
		add("user_sentiment_label", *upd.UserSentimentLabel)
	}
	if upd.AISummary != nil {
		add("ai_summary", *upd.AISummary)
	}
	if upd.RawMarketData != nil {
		add("raw_market_data", []byte(upd.RawMarketData))
	}
	if upd.AnalystRating != nil {
		add("analyst_rating", *upd.AnalystRating)
	}
	if upd.TargetPrice != nil {
		add("target_price", *upd.TargetPrice)
	}
	if upd.ShortFloat != nil {
		add("short_float", *upd.ShortFloat)
	}
	if upd.InsiderHeld != nil {
		add("insider_held", *upd.InsiderHeld)
	}
	return sets, args
}

// MarkPostInvalid records the invalid-ticker sentinel on a post
func (r *Repository) MarkPostInvalid(ctx context.Context, id int64) error {
	score := contracts.InvalidScore
	summary := contracts.InvalidSummary
	return r.UpdatePost(ctx, id, contracts.PostUpdate{AIScore: &score, AISummary: &summary})
}

// AppendReputation adds points to a profile.
// Prefers the atomic increment_reputation function; falls back to read-modify-write.
func (r *Repository) AppendReputation(ctx context.Context, userID string, points int) error {
	if userID == "" || points == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx, `SELECT increment_reputation($1, $2)`, userID, points)
	if err == nil {
		return nil
	}
	r.logger.WithError(err).WithField("user_id", userID).Warn("increment_reputation unavailable, using read-modify-write")

	// 읽고-쓰기 (경합 허용)
	var current int
	err = r.pool.QueryRow(ctx, `SELECT reputation_score FROM profiles WHERE id = $1`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = r.pool.Exec(ctx, `INSERT INTO profiles (id, reputation_score) VALUES ($1, $2)`, userID, points)
		if err != nil {
			return fmt.Errorf("insert reputation %s: %w", userID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read reputation %s: %w", userID, err)
	}

	if _, err := r.pool.Exec(ctx, `UPDATE profiles SET reputation_score = $2 WHERE id = $1`, userID, current+points); err != nil {
		return fmt.Errorf("update reputation %s: %w", userID, err)
	}
	return nil
}

// =====================================================
// market tables
// =====================================================

// UpsertMarketPrices writes prices in batches of PriceChunkSize.
// A failed chunk is logged and skipped; returns the number of rows written.
func (r *Repository) UpsertMarketPrices(ctx context.Context, prices []contracts.MarketPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO market_prices (symbol, price, change_percent, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			change_percent = EXCLUDED.change_percent,
			updated_at = EXCLUDED.updated_at
	`

	written := 0
	var lastErr error
	for start := 0; start < len(prices); start += PriceChunkSize {
		end := start + PriceChunkSize
		if end > len(prices) {
			end = len(prices)
		}
		chunk := prices[start:end]

		batch := &pgx.Batch{}
		for _, p := range chunk {
			batch.Queue(query, p.Symbol, p.Price, p.ChangePercent, p.UpdatedAt)
		}

		if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
			lastErr = fmt.Errorf("upsert market prices [%d:%d]: %w", start, end, err)
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"start": start,
				"end":   end,
			}).Warn("market price chunk failed")
			continue
		}
		written += len(chunk)
	}

	if written == 0 && lastErr != nil {
		return 0, lastErr
	}
	return written, nil
}

// ReplaceMarketNews swaps the whole market_news table for items
func (r *Repository) ReplaceMarketNews(ctx context.Context, items []contracts.MarketNews) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM market_news`); err != nil {
		return fmt.Errorf("clear market news: %w", err)
	}

	query := `
		INSERT INTO market_news (title, source, url, topic, published_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, n := range items {
		if _, err := tx.Exec(ctx, query, n.Title, nullString(n.Source), nullString(n.URL), nullString(n.Topic), nullTime(n.PublishedAt)); err != nil {
			return fmt.Errorf("insert market news: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RefreshTrending recomputes trending_tickers server-side
func (r *Repository) RefreshTrending(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `SELECT refresh_trending()`); err != nil {
		return fmt.Errorf("refresh trending: %w", err)
	}
	return nil
}
