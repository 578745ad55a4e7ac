package email

const (
	TemplatePurchasePaid      = "purchase_paid"
	TemplateNewSale           = "new_sale"
	TemplateDeliverySubmitted = "delivery_submitted"
	TemplatePurchaseCompleted = "purchase_completed"
	TemplatePurchaseCancelled = "purchase_cancelled"
	TemplatePurchaseRefunded  = "purchase_refunded"
)

// BaseTemplate is the base layout for all emails
const BaseTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f5f7; color: #111; }
        .container { max-width: 600px; margin: 0 auto; padding: 32px 16px; }
        .card { background: #fff; border-radius: 10px; padding: 28px; border: 1px solid #e5e5ea; }
        h2 { font-size: 20px; margin: 0 0 12px; }
        p { font-size: 15px; line-height: 1.6; color: #444; margin: 0 0 12px; }
        .amount { font-size: 22px; font-weight: 600; color: #111; }
        .btn { display: inline-block; background: #2f6feb; color: #fff !important; text-decoration: none; padding: 12px 22px; border-radius: 6px; font-weight: 600; }
        .footer { text-align: center; font-size: 12px; color: #888; margin-top: 24px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">{{.Content}}</div>
        <div class="footer">DevMarket</div>
    </div>
</body>
</html>`

// PurchasePaidTemplate is sent to the buyer once funds are captured.
const PurchasePaidTemplate = `<h2>Payment received</h2>
<p>Your purchase of <strong>{{.ProjectTitle}}</strong> is paid.</p>
<p class="amount">{{.Amount}} {{.Currency}}</p>
<p>Reference: {{.Reference}}</p>
<p><a class="btn" href="{{.PurchaseURL}}">View purchase</a></p>`

// NewSaleTemplate is sent to the seller when a purchase is paid.
const NewSaleTemplate = `<h2>New sale</h2>
<p><strong>{{.ProjectTitle}}</strong> was purchased for {{.Amount}} {{.Currency}}.</p>
<p>Start work and submit the delivery from your dashboard.</p>
<p><a class="btn" href="{{.PurchaseURL}}">Open order</a></p>`

// DeliverySubmittedTemplate is sent to the buyer when the seller submits a delivery.
const DeliverySubmittedTemplate = `<h2>Delivery ready for review</h2>
<p>The seller submitted the delivery for <strong>{{.ProjectTitle}}</strong>.</p>
{{if .RepositoryURL}}<p>Repository: <a href="{{.RepositoryURL}}">{{.RepositoryURL}}</a></p>{{end}}
{{if .LiveURL}}<p>Live: <a href="{{.LiveURL}}">{{.LiveURL}}</a></p>{{end}}
<p><a class="btn" href="{{.PurchaseURL}}">Review delivery</a></p>`

// PurchaseCompletedTemplate is sent to the seller when earnings are credited.
const PurchaseCompletedTemplate = `<h2>Earnings credited</h2>
<p><strong>{{.ProjectTitle}}</strong> is complete.</p>
<p class="amount">+{{.Net}} {{.Currency}}</p>
<p>Platform fee: {{.Tax}} {{.Currency}}</p>`

// PurchaseCancelledTemplate is sent when a purchase or its delivery is cancelled.
const PurchaseCancelledTemplate = `<h2>Order cancelled</h2>
<p>The order for <strong>{{.ProjectTitle}}</strong> was cancelled.</p>
{{if .Reason}}<p>{{.Reason}}</p>{{end}}
<p><a class="btn" href="{{.PurchaseURL}}">View order</a></p>`

// PurchaseRefundedTemplate is sent to the buyer after a refund.
const PurchaseRefundedTemplate = `<h2>Refund issued</h2>
<p>Your purchase of <strong>{{.ProjectTitle}}</strong> was refunded.</p>
<p class="amount">{{.Amount}} {{.Currency}}</p>
<p>Funds were returned to your {{.Source}}.</p>`
