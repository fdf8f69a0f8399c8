package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/gamestore/internal/browse"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// Storefront assembles the unified product grid from games and products.
type Storefront struct {
	games    *Games
	products *Products
	logger   *zap.Logger
}

// NewStorefront creates a Storefront.
func NewStorefront(games *Games, products *Products, logger *zap.Logger) *Storefront {
	return &Storefront{
		games:    games,
		products: products,
		logger:   logger,
	}
}

// Load fetches games and products concurrently and merges them, games
// first. A products failure degrades to games only; a games failure is
// returned.
func (s *Storefront) Load(ctx context.Context) ([]browse.Listing, error) {
	var (
		games    []model.Game
		products []model.Product
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		games, err = s.games.List(gctx, nil)
		return err
	})

	g.Go(func() error {
		var err error
		products, err = s.products.List(gctx)
		if err != nil {
			s.logger.Warn("products unavailable, showing games only", zap.Error(err))
			products = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading storefront: %w", err)
	}

	listings := browse.FromGames(games)
	listings = append(listings, browse.FromProducts(products)...)

	return listings, nil
}
