// Package store persists generated bundles to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

// ErrNotFound is returned by Fetch for an unknown slug.
var ErrNotFound = errors.New("bundle not found")

// Store persists bundles in PostgreSQL with a pgvector search embedding on
// the bundle row.
type Store struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	logger   *logger.Logger
}

// New connects to PostgreSQL and ensures the schema exists. embedder may be
// nil, in which case bundles are stored without a search embedding.
func New(ctx context.Context, databaseURL string, embedder llm.Embedder, log *logger.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, embedder: embedder, logger: log}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS bundles (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL,
			occasion TEXT NOT NULL DEFAULT '',
			humor_style TEXT NOT NULL,
			min_price NUMERIC(10,2) NOT NULL,
			max_price NUMERIC(10,2) NOT NULL,
			page_title TEXT NOT NULL DEFAULT '',
			meta_description TEXT NOT NULL DEFAULT '',
			intro TEXT NOT NULL DEFAULT '',
			embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS gift_ideas (
			id BIGSERIAL PRIMARY KEY,
			bundle_id BIGINT NOT NULL REFERENCES bundles(id) ON DELETE CASCADE,
			position INT NOT NULL,
			title TEXT NOT NULL,
			tagline TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS idea_products (
			id BIGSERIAL PRIMARY KEY,
			idea_id BIGINT NOT NULL REFERENCES gift_ideas(id) ON DELETE CASCADE,
			position INT NOT NULL,
			product_id TEXT NOT NULL,
			title TEXT NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			image_url TEXT NOT NULL,
			affiliate_url TEXT NOT NULL,
			source TEXT NOT NULL,
			rating DOUBLE PRECISION,
			review_count INT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Save writes a generated result atomically and returns its permalink slug.
// The search embedding is computed from the recipient description; embedding
// failure degrades to a NULL column, never a failed save. A slug collision is
// retried once with a fresh suffix.
func (s *Store) Save(ctx context.Context, req model.GenerationRequest, ideas []model.GiftIdea, seo model.SEOContent) (string, error) {
	if len(ideas) == 0 {
		return "", errors.New("refusing to save a bundle with no ideas")
	}

	var embedding any
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, req.Description)
		if err != nil {
			s.logger.Warn("embedding generation failed, saving without one", zap.Error(err))
		} else {
			embedding = vectorLiteral(vec)
		}
	}

	slug := newSlug(ideas[0].Concept.Title)
	err := s.save(ctx, slug, req, ideas, seo, embedding)
	if isUniqueViolation(err) {
		slug = newSlug(ideas[0].Concept.Title)
		err = s.save(ctx, slug, req, ideas, seo, embedding)
	}
	if err != nil {
		return "", err
	}
	return slug, nil
}

func (s *Store) save(ctx context.Context, slug string, req model.GenerationRequest, ideas []model.GiftIdea, seo model.SEOContent, embedding any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var bundleID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO bundles (slug, description, occasion, humor_style, min_price, max_price,
		                      page_title, meta_description, intro, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
		 RETURNING id`,
		slug, req.Description, req.Occasion, string(req.HumorStyle), req.MinPrice, req.MaxPrice,
		seo.PageTitle, seo.MetaDescription, seo.Intro, embedding,
	).Scan(&bundleID)
	if err != nil {
		return fmt.Errorf("insert bundle: %w", err)
	}

	for i, idea := range ideas {
		var ideaID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO gift_ideas (bundle_id, position, title, tagline, description)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			bundleID, i, idea.Concept.Title, idea.Concept.Tagline, idea.Concept.Description,
		).Scan(&ideaID)
		if err != nil {
			return fmt.Errorf("insert idea %d: %w", i, err)
		}

		for j, p := range idea.Products {
			_, err = tx.Exec(ctx,
				`INSERT INTO idea_products (idea_id, position, product_id, title, price, currency,
				                            image_url, affiliate_url, source, rating, review_count)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				ideaID, j, p.ID, p.Title, p.Price, p.Currency,
				p.ImageURL, p.AffiliateURL, p.Source, p.Rating, p.ReviewCount,
			)
			if err != nil {
				return fmt.Errorf("insert product %d/%d: %w", i, j, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// Fetch rehydrates a persisted bundle by slug.
func (s *Store) Fetch(ctx context.Context, slug string) (*model.Bundle, error) {
	var (
		bundleID int64
		b        model.Bundle
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, description, occasion, humor_style, page_title, meta_description, intro
		 FROM bundles WHERE slug = $1`,
		slug,
	).Scan(&bundleID, &b.Slug, &b.Description, &b.Occasion, &b.HumorStyle,
		&b.SEO.PageTitle, &b.SEO.MetaDescription, &b.SEO.Intro)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}

	ideaRows, err := s.pool.Query(ctx,
		`SELECT id, title, tagline, description
		 FROM gift_ideas WHERE bundle_id = $1 ORDER BY position`,
		bundleID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch ideas: %w", err)
	}
	defer ideaRows.Close()

	var ideaIDs []int64
	for ideaRows.Next() {
		var (
			ideaID int64
			idea   model.GiftIdea
		)
		if err := ideaRows.Scan(&ideaID, &idea.Concept.Title, &idea.Concept.Tagline, &idea.Concept.Description); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideaIDs = append(ideaIDs, ideaID)
		b.Ideas = append(b.Ideas, idea)
	}
	if err := ideaRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ideas: %w", err)
	}

	for i, ideaID := range ideaIDs {
		products, err := s.fetchProducts(ctx, ideaID)
		if err != nil {
			return nil, err
		}
		b.Ideas[i].Products = products
	}

	return &b, nil
}

func (s *Store) fetchProducts(ctx context.Context, ideaID int64) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, title, price, currency, image_url, affiliate_url, source, rating, review_count
		 FROM idea_products WHERE idea_id = $1 ORDER BY position`,
		ideaID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Currency,
			&p.ImageURL, &p.AffiliateURL, &p.Source, &p.Rating, &p.ReviewCount); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// vectorLiteral renders an embedding in pgvector's input format.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
