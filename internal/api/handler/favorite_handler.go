package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/core/ports"
)

type FavoriteHandler struct {
	favorites ports.FavoriteService
}

func NewFavoriteHandler(favorites ports.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites}
}

type favoritesResponse struct {
	ProductIDs []int `json:"product_ids"`
}

// List handles GET /favorites: the signed-in identity's favorite product IDs.
func (h *FavoriteHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, favoritesResponse{ProductIDs: h.favorites.CurrentIDs()})
}

// Add handles PUT /favorites/:product_id.
func (h *FavoriteHandler) Add(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	h.favorites.Add(c.Request().Context(), productID)
	return c.JSON(http.StatusOK, favoritesResponse{ProductIDs: h.favorites.CurrentIDs()})
}

// Remove handles DELETE /favorites/:product_id.
func (h *FavoriteHandler) Remove(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	h.favorites.Remove(c.Request().Context(), productID)
	return c.JSON(http.StatusOK, favoritesResponse{ProductIDs: h.favorites.CurrentIDs()})
}
