package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const productsPath = "/api/products"

// Products is the console and accessory catalog.
type Products struct {
	client *apiclient.Client
}

// NewProducts creates the product service.
func NewProducts(client *apiclient.Client) *Products {
	return &Products{client: client}
}

// List returns every product.
func (p *Products) List(ctx context.Context) ([]model.Product, error) {
	return p.listPath(ctx, productsPath)
}

// Consoles returns the console subset.
func (p *Products) Consoles(ctx context.Context) ([]model.Product, error) {
	return p.listPath(ctx, productsPath+"/consoles")
}

// Accessories returns the accessory subset.
func (p *Products) Accessories(ctx context.Context) ([]model.Product, error) {
	return p.listPath(ctx, productsPath+"/accessories")
}

func (p *Products) listPath(ctx context.Context, path string) ([]model.Product, error) {
	var products []model.Product
	if err := p.client.Get(ctx, path, nil, &products); err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	return nonNil(products), nil
}

// Get returns one product.
func (p *Products) Get(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		return nil, apiclient.ValidationError(model.ErrEmptyItemID)
	}

	var product model.Product
	if err := p.client.Get(ctx, productsPath+"/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}
	return &product, nil
}

// Create validates and creates a generic product.
func (p *Products) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	return p.create(ctx, productsPath, product)
}

// CreateConsole creates a product in the console subset.
func (p *Products) CreateConsole(ctx context.Context, product *model.Product) (*model.Product, error) {
	return p.create(ctx, productsPath+"/consoles", product)
}

// CreateAccessory creates a product in the accessory subset.
func (p *Products) CreateAccessory(ctx context.Context, product *model.Product) (*model.Product, error) {
	return p.create(ctx, productsPath+"/accessories", product)
}

func (p *Products) create(ctx context.Context, path string, product *model.Product) (*model.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var created model.Product
	if err := p.client.Post(ctx, path, product, &created); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return &created, nil
}

// Update applies a partial update.
func (p *Products) Update(ctx context.Context, id string, patch *model.ProductPatch) (*model.Product, error) {
	if id == "" {
		return nil, apiclient.ValidationError(model.ErrEmptyItemID)
	}
	if err := patch.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var updated model.Product
	if err := p.client.Put(ctx, productsPath+"/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, fmt.Errorf("updating product %s: %w", id, err)
	}
	return &updated, nil
}

// Delete removes a product.
func (p *Products) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apiclient.ValidationError(model.ErrEmptyItemID)
	}

	if err := p.client.Delete(ctx, productsPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting product %s: %w", id, err)
	}
	return nil
}
