package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type view struct {
	Lead     *lead.Lead
	Quote    *quote.Quote
	Business string
	Segments string
	Addons   string
}

const businessText = `New lead from {{.Lead.Contact.Name}} <{{.Lead.Contact.Email}}>
{{- with .Lead.Contact.Phone}}
Phone: {{.}}{{end}}
{{- with .Lead.Contact.Address}}
Address: {{.}}{{end}}

Plan: {{.Quote.PlanName}} ({{.Lead.YardSizeID}} acre)
Term: {{.Quote.TermLabel}}{{if .Lead.PayUpfront}}, paid upfront{{end}}
Add-ons: {{.Addons}}
Segments: {{.Segments}}
{{- with .Lead.PromoCode}}
Promo code: {{.}}{{end}}

Monthly: ${{.Lead.DisplayedMonthly}}
Free months: {{.Lead.FreeMonths}}
Promotions: {{join .Lead.AppliedPromotions ", "}}
{{- with .Lead.Contact.Notes}}

Notes:
{{.}}{{end}}

Lead {{.Lead.ID}} / quote {{.Lead.QuoteID}}
`

const customerText = `Hi {{.Lead.Contact.Name}},

Thanks for requesting a quote from {{.Business}}. Here is what you picked:

  {{.Quote.PlanName}} plan, {{.Quote.TermLabel}}
  ${{.Lead.DisplayedMonthly}} per month
{{- if .Lead.FreeMonths}}
  {{.Lead.FreeMonths}} free month(s) at the end of your term{{end}}
{{- range .Lead.AppliedPromotions}}
  - {{.}}{{end}}

We'll be in touch shortly to schedule your first visit.

{{.Business}}
`

const customerHTML = `<p>Hi {{.Lead.Contact.Name}},</p>
<p>Thanks for requesting a quote from {{.Business}}. Here is what you picked:</p>
<ul>
  <li><strong>{{.Quote.PlanName}}</strong> plan, {{.Quote.TermLabel}}</li>
  <li><strong>${{.Lead.DisplayedMonthly}}</strong> per month</li>
  {{- if .Lead.FreeMonths}}
  <li>{{.Lead.FreeMonths}} free month(s) at the end of your term</li>
  {{- end}}
</ul>
{{- if .Lead.AppliedPromotions}}
<p>Savings applied:</p>
<ul>
  {{- range .Lead.AppliedPromotions}}
  <li>{{.}}</li>
  {{- end}}
</ul>
{{- end}}
<p>We'll be in touch shortly to schedule your first visit.</p>
<p>{{.Business}}</p>
`

var funcs = map[string]any{"join": strings.Join}

var (
	businessTextTmpl = texttemplate.Must(texttemplate.New("business").Funcs(funcs).Parse(businessText))
	customerTextTmpl = texttemplate.Must(texttemplate.New("customer").Funcs(funcs).Parse(customerText))
	customerHTMLTmpl = htmltemplate.Must(htmltemplate.New("customer").Funcs(funcs).Parse(customerHTML))
)

func newView(l *lead.Lead, q *quote.Quote, business string) view {
	segs := make([]string, len(l.Segments))
	for i, s := range l.Segments {
		segs[i] = string(s)
	}
	addons := append(append([]string{}, l.BasicAddonIDs...), l.PremiumAddonIDs...)
	return view{
		Lead:     l,
		Quote:    q,
		Business: business,
		Segments: orNone(strings.Join(segs, ", ")),
		Addons:   orNone(strings.Join(addons, ", ")),
	}
}

// RenderBusiness renders the internal new-lead email.
func RenderBusiness(l *lead.Lead, q *quote.Quote, business string) (Message, error) {
	var text bytes.Buffer
	if err := businessTextTmpl.Execute(&text, newView(l, q, business)); err != nil {
		return Message{}, fmt.Errorf("render business email: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("New lead: %s, %s plan, $%s/mo", l.Contact.Name, q.PlanName, l.DisplayedMonthly),
		Text:    text.String(),
	}, nil
}

// RenderCustomer renders the confirmation sent to the customer.
func RenderCustomer(l *lead.Lead, q *quote.Quote, business string) (Message, error) {
	v := newView(l, q, business)
	var text, html bytes.Buffer
	if err := customerTextTmpl.Execute(&text, v); err != nil {
		return Message{}, fmt.Errorf("render customer email: %w", err)
	}
	if err := customerHTMLTmpl.Execute(&html, v); err != nil {
		return Message{}, fmt.Errorf("render customer email: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("Your quote from %s", business),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
