package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/browse"
	"github.com/vyrodovalexey/gamestore/internal/catalog"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const msgUnknownPriceRange = "Rango de precio inválido"

// Product kinds accepted by the product list and create endpoints.
const (
	kindConsole   = "consola"
	kindAccessory = "accesorio"
)

// CatalogHandler serves read-only catalog views.
type CatalogHandler struct {
	responder
	games      *catalog.Games
	products   *catalog.Products
	home       *catalog.Home
	storefront *catalog.Storefront
	pageSize   int
}

// NewCatalogHandler creates a new CatalogHandler instance. A page size
// below 1 uses browse.DefaultPageSize.
func NewCatalogHandler(
	games *catalog.Games,
	products *catalog.Products,
	home *catalog.Home,
	storefront *catalog.Storefront,
	pageSize int,
	logger *zap.Logger,
) *CatalogHandler {
	if pageSize < 1 {
		pageSize = browse.DefaultPageSize
	}

	return &CatalogHandler{
		responder:  responder{logger: logger},
		games:      games,
		products:   products,
		home:       home,
		storefront: storefront,
		pageSize:   pageSize,
	}
}

// RegisterRoutes registers the catalog routes under the API router.
func (h *CatalogHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/catalog/games", h.ListGames).Methods(http.MethodGet)
	api.HandleFunc("/catalog/games/{id}", h.GetGame).Methods(http.MethodGet)
	api.HandleFunc("/catalog/consoles/{console}/games", h.GamesByConsole).Methods(http.MethodGet)
	api.HandleFunc("/catalog/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/catalog/products/{id}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/catalog/home", h.GetHome).Methods(http.MethodGet)
	api.HandleFunc("/catalog/listings", h.ListListings).Methods(http.MethodGet)
}

// ListGames handles GET /api/v1/catalog/games requests. The query accepts
// consola, genero, minPrice, maxPrice, inStock and multiplayer.
func (h *CatalogHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	filter, err := parseGameFilter(r.URL.Query())
	if err != nil {
		h.handleError(w, err, "list games")
		return
	}

	games, err := h.games.List(r.Context(), filter)
	if err != nil {
		h.handleError(w, err, "list games")
		return
	}

	h.writeSuccess(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/catalog/games/{id} requests.
func (h *CatalogHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "get game")
		return
	}

	h.writeSuccess(w, http.StatusOK, game)
}

// GamesByConsole handles GET /api/v1/catalog/consoles/{console}/games requests.
func (h *CatalogHandler) GamesByConsole(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ByConsole(r.Context(), mux.Vars(r)["console"])
	if err != nil {
		h.handleError(w, err, "list games by console")
		return
	}

	h.writeSuccess(w, http.StatusOK, games)
}

// ListProducts handles GET /api/v1/catalog/products requests. kind=consola
// or kind=accesorio narrows the list.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []model.Product
		err      error
	)

	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
		products, err = h.products.List(r.Context())
	case kindConsole:
		products, err = h.products.Consoles(r.Context())
	case kindAccessory:
		products, err = h.products.Accessories(r.Context())
	default:
		err = apiclient.Validation(fmt.Sprintf("Tipo de producto inválido: %s", kind))
	}

	if err != nil {
		h.handleError(w, err, "list products")
		return
	}

	h.writeSuccess(w, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/catalog/products/{id} requests.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "get product")
		return
	}

	h.writeSuccess(w, http.StatusOK, product)
}

// GetHome handles GET /api/v1/catalog/home requests.
func (h *CatalogHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.home.Get(r.Context())
	if err != nil {
		h.handleError(w, err, "get home")
		return
	}

	h.writeSuccess(w, http.StatusOK, home)
}

// ListListings handles GET /api/v1/catalog/listings requests: the unified
// grid of games and products, filtered by category, type, price (a range
// label), inStock, and paginated by page and size.
func (h *CatalogHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, err := parseListingFilter(query)
	if err != nil {
		h.handleError(w, err, "list listings")
		return
	}

	page, err := intParam(query, "page", 1)
	if err != nil {
		h.handleError(w, err, "list listings")
		return
	}

	size, err := intParam(query, "size", h.pageSize)
	if err != nil {
		h.handleError(w, err, "list listings")
		return
	}

	listings, err := h.storefront.Load(r.Context())
	if err != nil {
		h.handleError(w, err, "list listings")
		return
	}

	h.writeSuccess(w, http.StatusOK, ListingsResponse{
		Page:        browse.Paginate(filter.Apply(listings), page, size),
		Categories:  categories(listings),
		PriceRanges: browse.ProductPriceRanges,
	})
}

func parseGameFilter(query url.Values) (*catalog.GameFilter, error) {
	filter := &catalog.GameFilter{
		Console: query.Get("consola"),
		Genre:   query.Get("genero"),
	}

	var err error
	if filter.MinPrice, err = floatParam(query, "minPrice"); err != nil {
		return nil, err
	}
	if filter.MaxPrice, err = floatParam(query, "maxPrice"); err != nil {
		return nil, err
	}
	if filter.InStock, err = boolParam(query, "inStock"); err != nil {
		return nil, err
	}
	if filter.Multiplayer, err = boolParam(query, "multiplayer"); err != nil {
		return nil, err
	}

	return filter, nil
}

func parseListingFilter(query url.Values) (*browse.Filter, error) {
	filter := &browse.Filter{
		Category: query.Get("category"),
		Type:     model.ItemType(query.Get("type")),
	}

	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apiclient.ValidationError(model.ErrInvalidItemType)
	}

	if label := query.Get("price"); label != "" {
		r, ok := browse.FindPriceRange(browse.ProductPriceRanges, label)
		if !ok {
			return nil, apiclient.Validation(msgUnknownPriceRange)
		}
		filter.Price = &r
	}

	inStock, err := boolParam(query, "inStock")
	if err != nil {
		return nil, err
	}
	filter.InStockOnly = inStock != nil && *inStock

	return filter, nil
}

// categories returns the distinct non-empty categories in first-seen order.
func categories(listings []browse.Listing) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, l := range listings {
		if l.Category != "" && !seen[l.Category] {
			seen[l.Category] = true
			out = append(out, l.Category)
		}
	}
	return out
}

func invalidParam(name string) error {
	return apiclient.Validation(fmt.Sprintf("Parámetro inválido: %s", name))
}

func floatParam(query url.Values, name string) (*float64, error) {
	val := query.Get(name)
	if val == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil, invalidParam(name)
	}
	return &f, nil
}

func boolParam(query url.Values, name string) (*bool, error) {
	val := query.Get(name)
	if val == "" {
		return nil, nil
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, invalidParam(name)
	}
	return &b, nil
}

func intParam(query url.Values, name string, fallback int) (int, error) {
	val := query.Get(name)
	if val == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, invalidParam(name)
	}
	return n, nil
}
