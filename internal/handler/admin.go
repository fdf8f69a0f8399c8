package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/catalog"
	"github.com/vyrodovalexey/gamestore/internal/model"
	"github.com/vyrodovalexey/gamestore/internal/upload"
)

// multipartOverhead is the room left for form fields around the image part.
const multipartOverhead = 1 << 20

const imageFormField = "image"

// AdminHandler serves the catalog management endpoints. Its routes must be
// mounted behind the session guard.
type AdminHandler struct {
	responder
	games    *catalog.Games
	products *catalog.Products
	home     *catalog.Home
	uploader *upload.Uploader
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(
	games *catalog.Games,
	products *catalog.Products,
	home *catalog.Home,
	uploader *upload.Uploader,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		responder: responder{logger: logger},
		games:     games,
		products:  products,
		home:      home,
		uploader:  uploader,
	}
}

// RegisterRoutes registers the admin routes on the guarded admin router.
func (h *AdminHandler) RegisterRoutes(admin *mux.Router) {
	admin.HandleFunc("/games", h.CreateGame).Methods(http.MethodPost)
	admin.HandleFunc("/games/{id}", h.UpdateGame).Methods(http.MethodPut)
	admin.HandleFunc("/games/{id}", h.DeleteGame).Methods(http.MethodDelete)
	admin.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/home/categories", h.CreateCategory).Methods(http.MethodPost)
	admin.HandleFunc("/home/features", h.CreateFeature).Methods(http.MethodPost)
	admin.HandleFunc("/home/hero", h.UpdateHero).Methods(http.MethodPut)
	admin.HandleFunc("/images", h.UploadImage).Methods(http.MethodPost)
}

// CreateGame handles POST /api/v1/admin/games requests.
func (h *AdminHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var game model.Game
	if !h.decodeBody(w, r, &game) {
		return
	}

	created, err := h.games.Create(r.Context(), &game)
	if err != nil {
		h.handleError(w, err, "create game")
		return
	}

	h.writeSuccess(w, http.StatusCreated, created)
}

// UpdateGame handles PUT /api/v1/admin/games/{id} requests.
func (h *AdminHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	var patch model.GamePatch
	if !h.decodeBody(w, r, &patch) {
		return
	}

	updated, err := h.games.Update(r.Context(), mux.Vars(r)["id"], &patch)
	if err != nil {
		h.handleError(w, err, "update game")
		return
	}

	h.writeSuccess(w, http.StatusOK, updated)
}

// DeleteGame handles DELETE /api/v1/admin/games/{id} requests.
func (h *AdminHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.handleError(w, err, "delete game")
		return
	}

	h.writeSuccess(w, http.StatusOK, nil)
}

// CreateProduct handles POST /api/v1/admin/products requests. kind=consola
// or kind=accesorio creates the product in that subset.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product model.Product
	if !h.decodeBody(w, r, &product) {
		return
	}

	var (
		created *model.Product
		err     error
	)

	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
		created, err = h.products.Create(r.Context(), &product)
	case kindConsole:
		created, err = h.products.CreateConsole(r.Context(), &product)
	case kindAccessory:
		created, err = h.products.CreateAccessory(r.Context(), &product)
	default:
		err = apiclient.Validation(fmt.Sprintf("Tipo de producto inválido: %s", kind))
	}

	if err != nil {
		h.handleError(w, err, "create product")
		return
	}

	h.writeSuccess(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/v1/admin/products/{id} requests.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch model.ProductPatch
	if !h.decodeBody(w, r, &patch) {
		return
	}

	updated, err := h.products.Update(r.Context(), mux.Vars(r)["id"], &patch)
	if err != nil {
		h.handleError(w, err, "update product")
		return
	}

	h.writeSuccess(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id} requests.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.handleError(w, err, "delete product")
		return
	}

	h.writeSuccess(w, http.StatusOK, nil)
}

// CreateCategory handles POST /api/v1/admin/home/categories requests.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category model.Category
	if !h.decodeBody(w, r, &category) {
		return
	}

	created, err := h.home.CreateCategory(r.Context(), &category)
	if err != nil {
		h.handleError(w, err, "create category")
		return
	}

	h.writeSuccess(w, http.StatusCreated, created)
}

// CreateFeature handles POST /api/v1/admin/home/features requests.
func (h *AdminHandler) CreateFeature(w http.ResponseWriter, r *http.Request) {
	var feature model.Feature
	if !h.decodeBody(w, r, &feature) {
		return
	}

	created, err := h.home.CreateFeature(r.Context(), &feature)
	if err != nil {
		h.handleError(w, err, "create feature")
		return
	}

	h.writeSuccess(w, http.StatusCreated, created)
}

// UpdateHero handles PUT /api/v1/admin/home/hero requests. The data is null
// when the backend does not echo the hero back.
func (h *AdminHandler) UpdateHero(w http.ResponseWriter, r *http.Request) {
	var patch model.HeroPatch
	if !h.decodeBody(w, r, &patch) {
		return
	}

	hero, err := h.home.UpdateHero(r.Context(), &patch)
	if err != nil {
		h.handleError(w, err, "update hero")
		return
	}

	h.writeSuccess(w, http.StatusOK, hero)
}

// UploadImage handles POST /api/v1/admin/images requests: a multipart form
// with the file in "image", an optional "target" (default "image") and an
// "ownerId" for the game and product targets.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.uploader.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, upload.Rejection(upload.ErrFileTooLarge), "upload image")
			return
		}
		h.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	targetName := r.FormValue("target")
	if targetName == "" {
		targetName = string(upload.TargetImage)
	}
	target, ok := upload.ParseTarget(targetName)
	if !ok {
		h.handleError(w, upload.Rejection(upload.ErrUnknownTarget), "upload image")
		return
	}

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		h.handleError(w, upload.Rejection(upload.ErrEmptyFile), "upload image")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := h.uploader.Upload(r.Context(), target, header.Filename, data, r.FormValue("ownerId"))
	if err != nil {
		h.handleError(w, err, "upload image")
		return
	}

	h.writeSuccess(w, http.StatusCreated, result)
}
