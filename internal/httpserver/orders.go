package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/address"
)

type addressListResponse struct {
	Data    []domain.Address `json:"data"`
	Default *domain.Address  `json:"default,omitempty"`
}

// bearer returns the access token of the browser's identity.
func bearer(c *gin.Context) (string, bool) {
	token, err := browserSession(c).Token(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return token, true
}

func (h *handlers) listOrders(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	q := domain.OrderQuery{Status: domain.OrderStatus(c.Query("status"))}
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		writeError(c, err)
		return
	}
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, err)
		return
	}
	page, err := h.deps.Orders.MyOrders(c.Request.Context(), token, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getOrder(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	o, err := h.deps.Orders.Order(c.Request.Context(), token, c.Param("id"))
	if err != nil {
		writeNotFound(c, err, backToOrders)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) orderConfirmation(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	conf, err := h.deps.Orders.Confirmation(c.Request.Context(), token, c.Param("id"))
	if err != nil {
		writeNotFound(c, err, backToOrders)
		return
	}
	c.JSON(http.StatusOK, conf)
}

func (h *handlers) trackShipment(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	tracking, err := h.deps.Orders.Track(c.Request.Context(), token, c.Param("number"), c.Query("carrier"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", tracking)
}

func (h *handlers) listAddresses(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	addrs, err := h.deps.Addresses.List(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, addressListResponse{Data: addrs, Default: address.Default(addrs)})
}

func (h *handlers) createAddress(c *gin.Context) {
	var in domain.AddressInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	token, ok := bearer(c)
	if !ok {
		return
	}
	a, err := h.deps.Addresses.Create(c.Request.Context(), token, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handlers) updateAddress(c *gin.Context) {
	var in domain.AddressInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	token, ok := bearer(c)
	if !ok {
		return
	}
	a, err := h.deps.Addresses.Update(c.Request.Context(), token, c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handlers) deleteAddress(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		return
	}
	if err := h.deps.Addresses.Delete(c.Request.Context(), token, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
