package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
)

const subjectFormat = "Your order %s is confirmed"

var templateFuncs = map[string]any{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"date":  func(o orders.Order) string { return o.EstimatedDelivery.Format("Monday, January 2, 2006") },
}

const htmlBody = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h1>Thanks for your order, {{.Shipping.FirstName}}!</h1>
  <p>Order <strong>{{.Reference}}</strong> is confirmed.</p>
  <table cellpadding="6" style="border-collapse: collapse; width: 100%;">
    <thead><tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr></thead>
    <tbody>
    {{- range .Lines}}
      <tr><td>{{.Name}}{{if .Variant}} ({{.Variant}}){{end}}</td><td align="right">{{.Quantity}}</td><td align="right">{{money .LineTotal}}</td></tr>
    {{- end}}
    </tbody>
  </table>
  <p>Subtotal: {{money .Totals.Subtotal}}<br>
  Shipping: {{money .Totals.Shipping}}<br>
  Tax: {{money .Totals.Tax}}<br>
  <strong>Total: {{money .Totals.Total}}</strong></p>
  <h3>Shipping to</h3>
  <p>{{.Shipping.FullName}}<br>{{range .Shipping.AddressLines}}{{.}}<br>{{end}}</p>
  <p>Paid with {{.Payment.Summary}}</p>
  <p>Estimated delivery: {{date .Order}}</p>
</body>
</html>
`

const textBody = `Thanks for your order, {{.Shipping.FirstName}}!

Order {{.Reference}} is confirmed.
{{range .Lines}}
- {{.Name}}{{if .Variant}} ({{.Variant}}){{end}} x{{.Quantity}}  {{money .LineTotal}}
{{- end}}

Subtotal: {{money .Totals.Subtotal}}
Shipping: {{money .Totals.Shipping}}
Tax: {{money .Totals.Tax}}
Total: {{money .Totals.Total}}

Shipping to:
{{.Shipping.FullName}}
{{range .Shipping.AddressLines}}{{.}}
{{end}}
Paid with {{.Payment.Summary}}
Estimated delivery: {{date .Order}}
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("confirmation.html").Funcs(htmltemplate.FuncMap(templateFuncs)).Parse(htmlBody))
	textTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Funcs(texttemplate.FuncMap(templateFuncs)).Parse(textBody))
)

type view struct {
	orders.Order
	Reference string
}

// Rendered is the subject and both bodies of a confirmation email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render builds the confirmation email from the order snapshot.
func Render(order orders.Order) (Rendered, error) {
	ref := order.OrderNumber
	if ref == "" {
		ref = order.ID()
	}
	v := view{Order: order, Reference: ref}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&text, v); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	return Rendered{Subject: fmt.Sprintf(subjectFormat, ref), HTML: html.String(), Text: text.String()}, nil
}
