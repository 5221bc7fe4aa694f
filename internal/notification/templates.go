package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "₹" + d.StringFixed(2) },
	"method": func(m domain.PaymentMethod) string {
		if m.IsCOD() {
			return "Cash on Delivery"
		}
		return strings.ToUpper(strings.ReplaceAll(string(m), "_", " "))
	},
	"date": func(o domain.Order) string { return o.CreatedAt.Format("02 Jan 2006") },
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(`Hi {{.ShippingAddress.FullName}},

Your order #{{.OrderNumber}} has been confirmed!

Order Details:
- Order Date: {{date .}}
- Payment Method: {{method .PaymentMethod}}
- Payment Status: {{.PaymentStatus}}
{{range .Items}}- {{.ProductName}} ({{.Flavor}} / {{.Size}}) x{{.Quantity}}: {{money .TotalPrice}}
{{end}}
Subtotal: {{money .Subtotal}}
Tax (GST): {{money .TaxAmount}}
Shipping: {{money .ShippingAmount}}
{{- if .PaymentMethod.IsCOD}}
COD Charges: {{money .CODAmount}}{{end}}
{{- if .DiscountAmount.IsPositive}}
Discount: -{{money .DiscountAmount}}{{end}}
Total: {{money .TotalAmount}}
{{if .PaymentMethod.IsCOD}}
COD Instructions:
- Our team will call you within 24 hours to confirm
- Keep {{money .TotalAmount}} ready (including {{money .CODAmount}} COD charges)
- Delivery within 3-7 business days
{{else}}
We'll notify you when your order ships.
{{end}}`))

var adminTmpl = template.Must(template.New("admin").Funcs(funcs).Parse(`New order #{{.OrderNumber}}

Customer: {{.ShippingAddress.FullName}}
Phone: {{.ShippingAddress.Phone}}
Email: {{.CustomerEmail}}
Payment: {{method .PaymentMethod}} ({{.PaymentStatus}})
Total: {{money .TotalAmount}}

Ship to:
{{.ShippingAddress.AddressLine1}}
{{- with .ShippingAddress.AddressLine2}}
{{.}}{{end}}
{{.ShippingAddress.City}}, {{.ShippingAddress.State}} {{.ShippingAddress.PostalCode}}

Items:
{{range .Items}}- {{.ProductName}} ({{.Flavor}} / {{.Size}}) x{{.Quantity}}: {{money .TotalPrice}}
{{end}}`))

func render(t *template.Template, order domain.Order) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, order); err != nil {
		return fmt.Sprintf("Order #%s (details unavailable: %v)", order.OrderNumber, err)
	}
	return buf.String()
}

func renderConfirmation(order domain.Order) (string, string) {
	subject := fmt.Sprintf("Order Confirmation #%s - PowerFuel", order.OrderNumber)
	return subject, render(confirmationTmpl, order)
}

func renderAdminAlert(order domain.Order) (string, string) {
	kind := "NEW ORDER"
	if order.PaymentMethod.IsCOD() {
		kind = "URGENT COD ORDER"
	}
	subject := fmt.Sprintf("%s #%s - %s - PowerFuel", kind, order.OrderNumber, "₹"+order.TotalAmount.StringFixed(2))
	return subject, render(adminTmpl, order)
}

func renderStatusUpdate(order domain.Order, status domain.OrderStatus, message string) (string, string) {
	subject := fmt.Sprintf("Order #%s %s - PowerFuel", order.OrderNumber, status.Title())
	body := fmt.Sprintf("Hi %s,\n\n%s\n\nOrder #%s is now %s.\n",
		order.ShippingAddress.FullName, message, order.OrderNumber, status)
	return subject, body
}
