package billing

import (
	"bytes"
	"fmt"
	"html/template"
)

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"currency": FormatCurrency,
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #6E59A5; padding: 20px; color: white;">
    <h1 style="margin: 0;">ScanBill Receipt</h1>
    <p>Order #{{.ID}}</p>
    <p>Date: {{.Date.Format "01/02/2006"}}</p>
  </div>
  <div style="padding: 20px;">
    <h2>Your Receipt</h2>
    <table style="width: 100%; border-collapse: collapse;">
      <thead>
        <tr style="background-color: #f3f3f3;">
          <th style="padding: 10px; text-align: left;">Item</th>
          <th style="padding: 10px; text-align: left;">Quantity</th>
          <th style="padding: 10px; text-align: left;">Price</th>
          <th style="padding: 10px; text-align: left;">Total</th>
        </tr>
      </thead>
      <tbody>
{{- range .Products}}
        <tr>
          <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Name}}</td>
          <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Quantity}}</td>
          <td style="padding: 10px; border-bottom: 1px solid #eee;">{{currency .Price}}</td>
          <td style="padding: 10px; border-bottom: 1px solid #eee;">{{currency .Total}}</td>
        </tr>
{{- end}}
      </tbody>
      <tfoot>
        <tr>
          <td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Subtotal:</td>
          <td style="padding: 10px;">{{currency .Total}}</td>
        </tr>
        <tr>
          <td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Tax:</td>
          <td style="padding: 10px;">{{currency .Tax}}</td>
        </tr>
        <tr style="background-color: #f9f9f9;">
          <td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
          <td style="padding: 10px; font-weight: bold;">{{currency .GrandTotal}}</td>
        </tr>
      </tfoot>
    </table>
    <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; text-align: center; color: #666;">
      <p>Thank you for your purchase!</p>
      <p>ScanBill Assistant</p>
    </div>
  </div>
</div>
`))

// RenderReceipt renders bill as an HTML e-mail body.
func RenderReceipt(bill *Bill) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, bill); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

// ReceiptSubject is the e-mail subject line for bill.
func ReceiptSubject(bill *Bill) string {
	return "Your Receipt - Order #" + bill.ID
}
