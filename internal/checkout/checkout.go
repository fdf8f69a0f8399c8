// Package checkout turns the cart into a WhatsApp order link.
package checkout

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// DefaultPhone is the shop's WhatsApp number.
const DefaultPhone = "573155230570"

// maxDetailedLength is the longest detailed message sent before falling
// back to the short form.
const maxDetailedLength = 1000

const msgEmptyCart = "Tu compra está vacía"

// pesoPrinter groups thousands with "." as Colombian prices are written.
var pesoPrinter = message.NewPrinter(language.Spanish)

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Items() []model.CartItem
	Clear(ctx context.Context)
	Hide()
}

// Result is a completed checkout.
type Result struct {
	URL       string  `json:"url"`
	Message   string  `json:"message"`
	Short     bool    `json:"short"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// Service performs checkouts.
type Service struct {
	cart   Cart
	phone  string
	logger *zap.Logger
}

// NewService creates a checkout service. An empty phone uses DefaultPhone.
func NewService(cart Cart, phone string, logger *zap.Logger) *Service {
	if phone == "" {
		phone = DefaultPhone
	}

	return &Service{
		cart:   cart,
		phone:  phone,
		logger: logger,
	}
}

// Checkout builds the order link from the current items, then clears and
// hides the cart.
func (s *Service) Checkout(ctx context.Context) (*Result, error) {
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, apiclient.Validation(msgEmptyCart)
	}

	text, short := Message(items)

	result := &Result{
		URL:       Link(s.phone, text),
		Message:   text,
		Short:     short,
		Total:     model.Total(items),
		ItemCount: model.ItemCount(items),
	}

	s.cart.Clear(ctx)
	s.cart.Hide()

	s.logger.Info("checkout completed",
		zap.Int("items", result.ItemCount),
		zap.Float64("total", result.Total),
		zap.Bool("short_message", short),
	)

	return result, nil
}

// Message returns the detailed order text, or the short one when the
// detailed text is longer than 1000 characters. short reports which was
// chosen.
func Message(items []model.CartItem) (text string, short bool) {
	detailed := DetailedMessage(items)
	if utf8.RuneCountInString(detailed) <= maxDetailedLength {
		return detailed, false
	}
	return ShortMessage(items), true
}

// DetailedMessage lists every item with brand, type, quantity, unit price
// and subtotal.
func DetailedMessage(items []model.CartItem) string {
	var b strings.Builder

	b.WriteString("NUEVO PEDIDO - Princegaming\n\n")
	b.WriteString("Productos solicitados:\n\n")

	for i, item := range items {
		brand := item.Brand
		if brand == "" {
			brand = "N/A"
		}

		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Name)
		fmt.Fprintf(&b, "   Marca: %s\n", brand)
		fmt.Fprintf(&b, "   Tipo: %s\n", item.Type.Label())
		fmt.Fprintf(&b, "   Cantidad: %d\n", item.Quantity)
		fmt.Fprintf(&b, "   Precio: %s c/u\n", FormatCOP(item.Price))
		fmt.Fprintf(&b, "   Subtotal: %s\n\n", FormatCOP(item.Subtotal()))
	}

	fmt.Fprintf(&b, "TOTAL: %s\n\n", FormatCOP(model.Total(items)))
	b.WriteString("Por favor, confirma mi pedido y proporciona información sobre el envío.")

	return b.String()
}

// ShortMessage lists only names and quantities.
func ShortMessage(items []model.CartItem) string {
	var b strings.Builder

	b.WriteString("🛒 *PEDIDO - PRINCEGAMING*\n\n")
	b.WriteString("📋 *Productos:*\n")

	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%dx)\n", i+1, item.Name, item.Quantity)
	}

	fmt.Fprintf(&b, "\n💰 *Total: %s*\n\n", FormatCOP(model.Total(items)))
	b.WriteString("Por favor, confirma mi pedido y proporciona información de envío.")

	return b.String()
}

// Link builds the wa.me URL for msg. Spaces are encoded as %20.
func Link(phone, msg string) string {
	text := strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
	return "https://wa.me/" + phone + "?text=" + text
}

// FormatCOP formats an amount as Colombian pesos rounded to whole units,
// e.g. "$ 1.250.000".
func FormatCOP(amount float64) string {
	rounded := int64(math.Round(amount))

	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	return sign + "$ " + pesoPrinter.Sprintf("%d", rounded)
}
