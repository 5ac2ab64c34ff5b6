package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerhouse/ledgerhouse/internal/invoices"
	"github.com/ledgerhouse/ledgerhouse/internal/quotes"
)

// Renderer turns quotes and invoices into printable PDF documents via
// Gotenberg.
type Renderer struct {
	client  *Client
	company string
	printer *message.Printer
}

// NewRenderer constructs a document renderer. The company name appears
// in document headers.
func NewRenderer(client *Client, company string) *Renderer {
	if company == "" {
		company = "Ledgerhouse"
	}
	return &Renderer{client: client, company: company, printer: message.NewPrinter(language.English)}
}

type documentLine struct {
	Description string
	Quantity    string
	UnitPrice   string
	Subtotal    string
}

type documentData struct {
	Company   string
	Title     string
	Number    string
	Status    string
	Customer  string
	Email     string
	Address   string
	DateLabel string
	Date      string
	DueLabel  string
	Due       string
	Lines     []documentLine
	Subtotal  string
	Discount  string
	TaxLabel  string
	Tax       string
	Total     string
	Extra     string
	Notes     string
	Terms     string
}

var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 2.5em; }
h1 { font-size: 1.4em; margin-bottom: 0; }
.meta { color: #555; margin: 0.2em 0 1.5em; }
table { width: 100%; border-collapse: collapse; margin: 1.5em 0; }
th { text-align: left; border-bottom: 2px solid #333; padding: 0.4em; }
td { border-bottom: 1px solid #ddd; padding: 0.4em; }
td.num, th.num { text-align: right; }
.totals { width: 40%; margin-left: auto; }
.totals td { border: none; padding: 0.2em 0.4em; }
.totals tr.grand td { border-top: 2px solid #333; font-weight: bold; }
.status { text-transform: uppercase; letter-spacing: 0.1em; color: #777; }
.notes { margin-top: 2em; color: #555; font-size: 0.9em; }
</style>
</head>
<body>
<h1>{{.Company}}</h1>
<p class="meta">{{.Title}} <strong>{{.Number}}</strong> &middot; <span class="status">{{.Status}}</span></p>
<p>
{{.Customer}}<br>
{{if .Email}}{{.Email}}<br>{{end}}
{{if .Address}}{{.Address}}<br>{{end}}
</p>
<p>{{.DateLabel}}: {{.Date}}<br>{{.DueLabel}}: {{.Due}}</p>
<table>
<tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
{{range .Lines}}<tr><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Subtotal}}</td></tr>
{{end}}</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
{{if .Discount}}<tr><td>Discount</td><td class="num">&minus;{{.Discount}}</td></tr>{{end}}
<tr><td>{{.TaxLabel}}</td><td class="num">{{.Tax}}</td></tr>
<tr class="grand"><td>Total</td><td class="num">{{.Total}}</td></tr>
{{if .Extra}}<tr><td>Outstanding</td><td class="num">{{.Extra}}</td></tr>{{end}}
</table>
{{if .Notes}}<p class="notes">{{.Notes}}</p>{{end}}
{{if .Terms}}<p class="notes">{{.Terms}}</p>{{end}}
</body>
</html>`))

func (r *Renderer) money(v float64) string {
	return r.printer.Sprintf("%.2f", v)
}

func (r *Renderer) qty(v float64) string {
	if v == float64(int64(v)) {
		return r.printer.Sprintf("%d", int64(v))
	}
	return r.printer.Sprintf("%.2f", v)
}

// RenderQuote produces a PDF for a customer quote.
func (r *Renderer) RenderQuote(ctx context.Context, q *quotes.Quote) ([]byte, error) {
	data := documentData{
		Company:   r.company,
		Title:     "Quote",
		Number:    q.Number,
		Status:    string(q.Status),
		Customer:  q.CustomerName,
		Email:     q.CustomerEmail,
		Address:   q.CustomerAddress,
		DateLabel: "Quote date",
		Date:      q.QuoteDate.Format("2 January 2006"),
		DueLabel:  "Valid until",
		Due:       q.ValidUntil.Format("2 January 2006"),
		Subtotal:  r.money(q.Subtotal),
		TaxLabel:  fmt.Sprintf("Tax (%.1f%%)", q.TaxRate),
		Tax:       r.money(q.TaxAmount),
		Total:     r.money(q.Total),
		Notes:     q.Notes,
		Terms:     q.Terms,
	}
	if q.DiscountAmount > 0 {
		data.Discount = r.money(q.DiscountAmount)
	}
	for _, line := range q.Items {
		data.Lines = append(data.Lines, documentLine{
			Description: line.Description,
			Quantity:    r.qty(line.Quantity),
			UnitPrice:   r.money(line.UnitPrice),
			Subtotal:    r.money(line.Subtotal),
		})
	}
	return r.render(ctx, data)
}

// RenderInvoice produces a PDF for an invoice, including the remaining
// balance when it has been partially paid.
func (r *Renderer) RenderInvoice(ctx context.Context, inv *invoices.Invoice) ([]byte, error) {
	data := documentData{
		Company:   r.company,
		Title:     "Invoice",
		Number:    inv.Number,
		Status:    string(inv.Status),
		Customer:  inv.CustomerName,
		Email:     inv.CustomerEmail,
		Address:   inv.CustomerAddress,
		DateLabel: "Issue date",
		Date:      inv.IssueDate.Format("2 January 2006"),
		DueLabel:  "Due date",
		Due:       inv.DueDate.Format("2 January 2006"),
		Subtotal:  r.money(inv.Subtotal),
		TaxLabel:  fmt.Sprintf("Tax (%.1f%%)", inv.TaxRate),
		Tax:       r.money(inv.TaxAmount),
		Total:     r.money(inv.Total),
		Notes:     inv.Notes,
	}
	if inv.DiscountAmount > 0 {
		data.Discount = r.money(inv.DiscountAmount)
	}
	if inv.PaidAmount > 0 && inv.Status != invoices.StatusPaid {
		data.Extra = r.money(inv.Outstanding())
	}
	for _, line := range inv.Items {
		data.Lines = append(data.Lines, documentLine{
			Description: line.Description,
			Quantity:    r.qty(line.Quantity),
			UnitPrice:   r.money(line.UnitPrice),
			Subtotal:    r.money(line.Subtotal),
		})
	}
	return r.render(ctx, data)
}

func (r *Renderer) render(ctx context.Context, data documentData) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render document html: %w", err)
	}
	return r.client.RenderHTML(ctx, buf.String())
}
