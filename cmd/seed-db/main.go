// Command seed-db loads development fixtures (products, discount locations,
// buyers and their access tokens) into PostgreSQL. It is idempotent: running
// it twice leaves the database in the same state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/toybox-checkout/internal/domain/auth"
	"github.com/xenking/toybox-checkout/internal/domain/discount"
	"github.com/xenking/toybox-checkout/internal/storage/postgres"
)

type seedFile struct {
	Products  []productSeed  `json:"products"`
	Locations []locationSeed `json:"locations"`
	Buyers    []buyerSeed    `json:"buyers"`
}

type productSeed struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type locationSeed struct {
	Slug               string          `json:"slug"`
	DisplayName        string          `json:"display_name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

type buyerSeed struct {
	Username     string          `json:"username"`
	Balance      decimal.Decimal `json:"balance"`
	LocationSlug string          `json:"location_slug"`
	Token        string          `json:"token"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
		tokenPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for buyer token hashing (or TOYBOX_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("TOYBOX_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, pepper string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
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

	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedLocations(ctx, pool, seed.Locations); err != nil {
		return errors.Wrap(err, "seed locations")
	}
	if err := seedBuyers(ctx, pool, seed.Buyers, pepper); err != nil {
		return errors.Wrap(err, "seed buyers")
	}

	return nil
}

const insertProductSQL = `INSERT INTO products (name, unit_price, stock_quantity)
	SELECT $1, $2, $3
	WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productSeed) error {
	for _, p := range products {
		if _, err := pool.Exec(ctx, insertProductSQL, p.Name, p.Price, p.Stock); err != nil {
			return errors.Wrapf(err, "insert product %q", p.Name)
		}
		slog.Info("seeded product", slog.String("name", p.Name), slog.String("price", p.Price.StringFixed(2)))
	}
	return nil
}

const upsertLocationSQL = `INSERT INTO locations (slug, display_name, discount_percentage)
	VALUES ($1, $2, $3)
	ON CONFLICT (slug) DO UPDATE SET
		display_name        = EXCLUDED.display_name,
		discount_percentage = EXCLUDED.discount_percentage`

func seedLocations(ctx context.Context, pool *pgxpool.Pool, locations []locationSeed) error {
	for _, l := range locations {
		l.Slug = discount.NormalizeSlug(l.Slug)
		if l.DisplayName == "" {
			l.DisplayName = discount.FriendlyName(l.Slug)
		}
		if _, err := pool.Exec(ctx, upsertLocationSQL, l.Slug, l.DisplayName, l.DiscountPercentage); err != nil {
			return errors.Wrapf(err, "upsert location %s", l.Slug)
		}
		slog.Info("seeded location", slog.String("slug", l.Slug))
	}
	return nil
}

const upsertBuyerSQL = `INSERT INTO buyers (username, balance, location_slug)
	VALUES ($1, $2, NULLIF($3, ''))
	ON CONFLICT (username) DO UPDATE SET
		balance       = EXCLUDED.balance,
		location_slug = EXCLUDED.location_slug
	RETURNING id`

func seedBuyers(ctx context.Context, pool *pgxpool.Pool, buyers []buyerSeed, pepper string) error {
	tokens := postgres.NewTokenRepository(pool)

	for _, b := range buyers {
		var buyerID int64
		err := pool.QueryRow(ctx, upsertBuyerSQL, b.Username, b.Balance, b.LocationSlug).Scan(&buyerID)
		if err != nil {
			return errors.Wrapf(err, "upsert buyer %s", b.Username)
		}

		if b.Token != "" {
			hash := auth.HashToken(b.Token, []byte(pepper))
			if err := tokens.Insert(ctx, buyerID, hash); err != nil {
				return errors.Wrapf(err, "insert token for %s", b.Username)
			}
		}

		slog.Info("seeded buyer", slog.String("username", b.Username), slog.Int64("id", buyerID))
	}
	return nil
}
