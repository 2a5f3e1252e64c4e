package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/cart"
	"pixel-storefront/internal/storefront"
)

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type cartResponse struct {
	Cart    *domain.Cart       `json:"cart"`
	Summary domain.CartSummary `json:"summary"`
	Loading bool               `json:"loading"`
	Stale   bool               `json:"stale"`
	Pending int                `json:"pending"`
	// LineID is the line a mutation touched; for a queued add it is a
	// temporary id the browser may keep using.
	LineID string `json:"line_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

func toCartResponse(v cart.View) cartResponse {
	out := cartResponse{
		Cart:    v.Cart,
		Summary: v.Summary,
		Loading: v.Loading,
		Stale:   v.Stale,
		Pending: v.Pending,
	}
	if v.Err != nil && v.Cart == nil {
		_, body := classify(v.Err)
		out.Error = body.Message
	}
	return out
}

func (h *handlers) getCart(c *gin.Context) {
	v, err := browserSession(c).CartView()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(v))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeNotify(c, invalidBody(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	s := browserSession(c)
	id, err := s.CurrentIdentity()
	if err != nil {
		writeNotify(c, err)
		return
	}
	p, err := h.deps.Catalog.Product(c.Request.Context(), req.ProductID)
	if err != nil {
		writeNotify(c, fmt.Errorf("product %s: %w", req.ProductID, err))
		return
	}
	tx, err := s.Cart.AddItem(id.ID, p.ID, cartProduct(p), req.Quantity)
	h.commit(c, s, id, tx, err)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeNotify(c, invalidBody(err))
		return
	}
	s := browserSession(c)
	id, err := s.CurrentIdentity()
	if err != nil {
		writeNotify(c, err)
		return
	}
	tx, err := s.Cart.UpdateItem(id.ID, c.Param("id"), req.Quantity)
	h.commit(c, s, id, tx, err)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	s := browserSession(c)
	id, err := s.CurrentIdentity()
	if err != nil {
		writeNotify(c, err)
		return
	}
	tx, err := s.Cart.RemoveItem(id.ID, c.Param("id"))
	h.commit(c, s, id, tx, err)
}

func (h *handlers) clearCart(c *gin.Context) {
	s := browserSession(c)
	id, err := s.CurrentIdentity()
	if err != nil {
		writeNotify(c, err)
		return
	}
	tx, err := s.Cart.Clear(id.ID)
	h.commit(c, s, id, tx, err)
}

// commit answers a queued cart mutation. With "Prefer: respond-async" the
// optimistic view is returned straight away; otherwise the handler waits for
// the server and reports a rollback as a notification.
func (h *handlers) commit(c *gin.Context, s *storefront.Session, id *domain.Identity, tx *cart.Tx, err error) {
	if err != nil {
		writeNotify(c, err)
		return
	}
	if respondAsync(c) {
		v, err := s.Cart.Get(id.ID)
		if err != nil {
			writeNotify(c, err)
			return
		}
		out := toCartResponse(v)
		out.LineID = tx.LineID()
		c.JSON(http.StatusAccepted, out)
		return
	}

	if _, err := tx.Wait(c.Request.Context()); err != nil {
		writeNotify(c, err)
		return
	}
	v, err := s.Cart.Get(id.ID)
	if err != nil {
		writeNotify(c, err)
		return
	}
	out := toCartResponse(v)
	out.LineID = tx.LineID()
	c.JSON(http.StatusOK, out)
}

func respondAsync(c *gin.Context) bool {
	for _, pref := range strings.Split(c.GetHeader("Prefer"), ",") {
		if strings.EqualFold(strings.TrimSpace(pref), "respond-async") {
			return true
		}
	}
	return false
}

func cartProduct(p *domain.Product) *domain.CartProduct {
	cp := &domain.CartProduct{
		Name:      p.Name,
		Price:     p.Price,
		SKU:       p.SKU,
		Inventory: p.InventoryQuantity,
	}
	if img, ok := p.PrimaryImage(); ok {
		cp.ImageURL = img.URL
	}
	return cp
}
