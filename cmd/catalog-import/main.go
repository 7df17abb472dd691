// Command catalog-import loads vendor and product catalog dumps into the
// database and seeds an API key for the storefront.
//
// Vendors come from a single vendors.json array. Products come from one or
// more newline-delimited JSON shard files (products-*.ndjson, optionally
// gzip-compressed), exported independently per source system, so the same
// product can appear in several shards. A first concurrent pass builds a
// bloom filter per shard; the second pass imports each shard, skipping rows
// whose IDs an earlier shard already claimed.
package main

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Fabricesimpore/zakamall/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
)

const (
	upsertVendorSQL = `
INSERT INTO vendors (id, user_id, name, commission_rate)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    name = EXCLUDED.name,
    commission_rate = EXCLUDED.commission_rate`

	upsertProductSQL = `
INSERT INTO products (id, vendor_id, name, price, quantity, track_quantity)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    vendor_id = EXCLUDED.vendor_id,
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    quantity = EXCLUDED.quantity,
    track_quantity = EXCLUDED.track_quantity`

	upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
    key_hash = EXCLUDED.key_hash,
    name = EXCLUDED.name`
)

type vendorJSON struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	Name           string           `json:"name"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

type productJSON struct {
	ID            string          `json:"id"`
	VendorID      string          `json:"vendorId"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int32           `json:"quantity"`
	TrackQuantity *bool           `json:"trackQuantity"`
}

func main() {
	var (
		dataDir      string
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing vendors.json and products-*.ndjson[.gz] shards")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or ZAKA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ZAKA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ZAKA_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ZAKA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, apiKey, pepper string) error {
	shards, err := findProductShards(dataDir)
	if err != nil {
		return errors.Wrap(err, "find product shards")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := importVendors(ctx, pool, filepath.Join(dataDir, "vendors.json")); err != nil {
		return errors.Wrap(err, "import vendors")
	}

	if len(shards) > 0 {
		// Pass 1: one bloom filter per shard, built concurrently.
		slog.Info("pass 1: indexing product shards", slog.Int("shards", len(shards)))

		filters, err := buildShardFilters(ctx, shards)
		if err != nil {
			return errors.Wrap(err, "index product shards")
		}

		// Pass 2: import shard by shard, first shard wins on duplicates.
		slog.Info("pass 2: importing products")

		if err := importProducts(ctx, pool, shards, filters); err != nil {
			return errors.Wrap(err, "import products")
		}
	}

	if apiKey != "" {
		if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

// findProductShards returns the product shard files in dataDir, sorted by name
// so that duplicate resolution is deterministic across runs.
func findProductShards(dataDir string) ([]string, error) {
	plain, err := filepath.Glob(filepath.Join(dataDir, "products-*.ndjson"))
	if err != nil {
		return nil, err
	}
	gzipped, err := filepath.Glob(filepath.Join(dataDir, "products-*.ndjson.gz"))
	if err != nil {
		return nil, err
	}

	shards := append(plain, gzipped...)
	sort.Strings(shards)
	return shards, nil
}

func importVendors(ctx context.Context, pool *pgxpool.Pool, path string) error {
	slog.Info("reading vendors file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read vendors file")
	}

	var vendors []vendorJSON
	if err := json.Unmarshal(data, &vendors); err != nil {
		return errors.Wrap(err, "parse vendors JSON")
	}

	slog.Info("upserting vendors", slog.Int("count", len(vendors)))

	for _, v := range vendors {
		if _, err := pool.Exec(ctx, upsertVendorSQL, v.ID, v.UserID, v.Name, v.CommissionRate); err != nil {
			return errors.Wrapf(err, "upsert vendor %s", v.ID)
		}
	}

	return nil
}

// buildShardFilters streams every shard concurrently and records its product
// IDs in a per-shard bloom filter.
func buildShardFilters(ctx context.Context, shards []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range shards {
		g.Go(buildFilterForShard(ctx, i, path, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForShard(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamShard(ctx, path, func(p productJSON) error {
			filter.AddString(p.ID)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.String("shard", filepath.Base(path)),
					slog.Uint64("products", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "index shard %s", path)
		}

		slog.Info("pass 1 shard complete",
			slog.String("shard", filepath.Base(path)),
			slog.Uint64("products", count),
		)

		filters[idx] = filter
		return nil
	}
}

// importProducts upserts each shard in order. A product whose ID tests
// positive in an earlier shard's filter is treated as a duplicate export and
// skipped; the earlier shard's row stands. Upserts keep a rare bloom false
// positive from corrupting existing data.
func importProducts(ctx context.Context, pool *pgxpool.Pool, shards []string, filters []*bloom.BloomFilter) error {
	var imported, skipped uint64

	for i, path := range shards {
		err := streamShard(ctx, path, func(p productJSON) error {
			for j := range i {
				if filters[j].TestString(p.ID) {
					skipped++
					return nil
				}
			}

			track := true
			if p.TrackQuantity != nil {
				track = *p.TrackQuantity
			}

			if _, err := pool.Exec(ctx, upsertProductSQL,
				p.ID, p.VendorID, p.Name, p.Price, p.Quantity, track,
			); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}

			imported++
			if imported%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Uint64("imported", imported))
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "import shard %s", path)
		}
	}

	slog.Info("products imported",
		slog.Uint64("imported", imported),
		slog.Uint64("duplicates_skipped", skipped),
	)

	return nil
}

// streamShard opens a shard file (gzip-compressed when the name ends in .gz)
// and calls fn for each JSON line. Blank lines are ignored.
func streamShard(ctx context.Context, path string, fn func(productJSON) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var p productJSON
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return errors.Wrapf(err, "parse line %d", line)
		}
		if err := fn(p); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, "default", keyHash, "Default storefront key"); err != nil {
		return errors.Wrap(err, "upsert API key")
	}

	return nil
}
