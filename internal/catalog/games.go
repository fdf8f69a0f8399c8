// Package catalog maps the backend's games, products, home and auth
// resources onto typed calls. Each call issues exactly one request.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const gamesPath = "/games"

// ErrUnknownConsole is returned for a per-console listing outside
// playstation, xbox and nintendo.
var ErrUnknownConsole = errors.New("console must be one of: playstation, xbox, nintendo")

// GameFilter holds the optional query parameters of the game list. Nil
// fields are omitted.
type GameFilter struct {
	Console     string
	Genre       string
	MinPrice    *float64
	MaxPrice    *float64
	InStock     *bool
	Multiplayer *bool
}

// Query encodes the filter as backend query parameters.
func (f *GameFilter) Query() url.Values {
	q := url.Values{}
	if f == nil {
		return q
	}

	if f.Console != "" {
		q.Set("consola", f.Console)
	}
	if f.Genre != "" {
		q.Set("genero", f.Genre)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.InStock != nil {
		q.Set("inStock", strconv.FormatBool(*f.InStock))
	}
	if f.Multiplayer != nil {
		q.Set("multiplayer", strconv.FormatBool(*f.Multiplayer))
	}

	return q
}

// Games is the game catalog.
type Games struct {
	client *apiclient.Client
}

// NewGames creates the game service.
func NewGames(client *apiclient.Client) *Games {
	return &Games{client: client}
}

// List returns the games matching filter. A nil filter lists everything.
func (g *Games) List(ctx context.Context, filter *GameFilter) ([]model.Game, error) {
	var games []model.Game
	if err := g.client.Get(ctx, gamesPath, filter.Query(), &games); err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return nonNil(games), nil
}

// Get returns one game.
func (g *Games) Get(ctx context.Context, id string) (*model.Game, error) {
	if id == "" {
		return nil, apiclient.ValidationError(model.ErrEmptyItemID)
	}

	var game model.Game
	if err := g.client.Get(ctx, gamesPath+"/"+url.PathEscape(id), nil, &game); err != nil {
		return nil, fmt.Errorf("getting game %s: %w", id, err)
	}
	return &game, nil
}

// ByGenre lists the games of one genre.
func (g *Games) ByGenre(ctx context.Context, genre string) ([]model.Game, error) {
	if genre == "" {
		return nil, apiclient.ValidationError(model.ErrEmptyGenre)
	}
	return g.listPath(ctx, gamesPath+"/genre/"+url.PathEscape(genre))
}

// Multiplayer lists the multiplayer games.
func (g *Games) Multiplayer(ctx context.Context) ([]model.Game, error) {
	return g.listPath(ctx, gamesPath+"/multiplayer/available")
}

// InStock lists the games with stock available.
func (g *Games) InStock(ctx context.Context) ([]model.Game, error) {
	return g.listPath(ctx, gamesPath+"/stock/available")
}

// ByConsole lists the games of one console family.
func (g *Games) ByConsole(ctx context.Context, console string) ([]model.Game, error) {
	if !model.ValidConsole(console) {
		return nil, apiclient.ValidationError(ErrUnknownConsole)
	}
	return g.List(ctx, &GameFilter{Console: console})
}

func (g *Games) listPath(ctx context.Context, path string) ([]model.Game, error) {
	var games []model.Game
	if err := g.client.Get(ctx, path, nil, &games); err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	return nonNil(games), nil
}

// Create validates and creates a game.
func (g *Games) Create(ctx context.Context, game *model.Game) (*model.Game, error) {
	if err := game.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var created model.Game
	if err := g.client.Post(ctx, gamesPath, game, &created); err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	return &created, nil
}

// Update applies a partial update.
func (g *Games) Update(ctx context.Context, id string, patch *model.GamePatch) (*model.Game, error) {
	if id == "" {
		return nil, apiclient.ValidationError(model.ErrEmptyItemID)
	}
	if err := patch.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var updated model.Game
	if err := g.client.Put(ctx, gamesPath+"/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, fmt.Errorf("updating game %s: %w", id, err)
	}
	return &updated, nil
}

// Delete removes a game.
func (g *Games) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apiclient.ValidationError(model.ErrEmptyItemID)
	}

	if err := g.client.Delete(ctx, gamesPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting game %s: %w", id, err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
