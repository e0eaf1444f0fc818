package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnquote/decision/catalog"
	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func fixture() (*lead.Lead, *quote.Quote) {
	q := &quote.Quote{ID: uuid.New(), PlanName: "Premium", TermLabel: "1 year"}
	l := &lead.Lead{
		ID:                uuid.New(),
		QuoteID:           q.ID,
		Contact:           lead.Contact{Name: "Sam <Rivera>", Email: "sam@example.com", Phone: "555-0100"},
		PlanID:            catalog.PlanPremium,
		YardSizeID:        "1/2",
		Term:              catalog.TermOneYear,
		PayUpfront:        true,
		Segments:          []catalog.Segment{catalog.SegmentSenior},
		BasicAddonIDs:     []string{"edging"},
		DisplayedMonthly:  "284",
		FreeMonths:        2,
		AppliedPromotions: []string{"Pay upfront bonus month", "1-year commitment", "Senior discount"},
	}
	return l, q
}

func TestRenderBusiness(t *testing.T) {
	l, q := fixture()
	msg, err := RenderBusiness(l, q, "Greenline")
	require.NoError(t, err)

	assert.Contains(t, msg.Subject, "Premium plan")
	assert.Contains(t, msg.Subject, "$284/mo")
	assert.Contains(t, msg.Text, "Phone: 555-0100")
	assert.Contains(t, msg.Text, "Term: 1 year, paid upfront")
	assert.Contains(t, msg.Text, "Add-ons: edging")
	assert.Contains(t, msg.Text, "Promotions: Pay upfront bonus month, 1-year commitment, Senior discount")
	assert.NotContains(t, msg.Text, "Promo code:")
}

func TestRenderCustomerEscapesHTML(t *testing.T) {
	l, q := fixture()
	msg, err := RenderCustomer(l, q, "Greenline")
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "Hi Sam <Rivera>,")
	assert.Contains(t, msg.HTML, "Sam &lt;Rivera&gt;")
	assert.Contains(t, msg.HTML, "<li>Senior discount</li>")
	assert.Contains(t, msg.Text, "2 free month(s)")
}

func TestSESNotifierSends(t *testing.T) {
	l, q := fixture()
	ses := &fakeSES{}
	n := NewSESNotifierWithClient(ses, SESConfig{
		From:             "quotes@greenline.example",
		BusinessTo:       []string{"sales@greenline.example"},
		ConfigurationSet: "leads",
	})

	require.NoError(t, n.NotifyBusiness(context.Background(), l, q))
	require.NoError(t, n.NotifyCustomer(context.Background(), l, q))
	require.Len(t, ses.inputs, 2)

	biz := ses.inputs[0]
	assert.Equal(t, []string{"sales@greenline.example"}, biz.Destination.ToAddresses)
	assert.Equal(t, []string{"sam@example.com"}, biz.ReplyToAddresses)
	assert.Equal(t, "leads", aws.ToString(biz.ConfigurationSetName))
	assert.Nil(t, biz.Content.Simple.Body.Html)

	cust := ses.inputs[1]
	assert.Equal(t, []string{"sam@example.com"}, cust.Destination.ToAddresses)
	assert.NotNil(t, cust.Content.Simple.Body.Html)
	assert.Contains(t, aws.ToString(cust.Content.Simple.Subject.Data), "Greenline Lawn Care")
}

func TestSESNotifierSkipsBusinessWithoutInbox(t *testing.T) {
	l, q := fixture()
	ses := &fakeSES{}
	n := NewSESNotifierWithClient(ses, SESConfig{From: "quotes@greenline.example"})

	require.NoError(t, n.NotifyBusiness(context.Background(), l, q))
	assert.Empty(t, ses.inputs)
}

func TestSESNotifierWrapsErrors(t *testing.T) {
	l, q := fixture()
	n := NewSESNotifierWithClient(&fakeSES{err: errors.New("throttled")}, SESConfig{From: "a@b.c"})

	err := n.NotifyCustomer(context.Background(), l, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestWebhookForwardsLead(t *testing.T) {
	l, q := fixture()
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "tok", 0, time.Second)
	require.NoError(t, w.NotifyBusiness(context.Background(), l, q))
	require.NoError(t, w.NotifyCustomer(context.Background(), l, q))

	assert.Equal(t, "284", got.DisplayedMonthly)
	assert.Equal(t, "1-year", got.Term)
	assert.True(t, got.PayUpfront)
	assert.Equal(t, []string{"senior"}, got.Segments)
	assert.Equal(t, l.AppliedPromotions, got.AppliedPromos)
}

func TestWebhookReportsRejection(t *testing.T) {
	l, q := fixture()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "", 0, time.Second).NotifyBusiness(context.Background(), l, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestWebhookNegativeRetriesMakesOneAttempt(t *testing.T) {
	l, q := fixture()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "", -1, time.Second).NotifyBusiness(context.Background(), l, q)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
