package personalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/profile"
)

type fakeProfiles struct {
	profiles map[string]profile.Profile
	calls    int
}

func (f *fakeProfiles) Lookup(_ context.Context, userID string) profile.Profile {
	f.calls++
	if p, ok := f.profiles[userID]; ok {
		return p
	}
	return profile.Guest()
}

func newFake() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]profile.Profile{
		"sam": {UserID: "sam", Name: "Sam", PreferredProduct: "shoes", RecentOrder: "#12345"},
	}}
}

func TestRender_SpecialIntents(t *testing.T) {
	p := New(newFake())
	ctx := context.Background()

	tests := []struct {
		intent intent.Intent
		want   string
	}{
		{intent.TrackOrder, "Hi Sam! Your order #12345 for shoes is currently being processed."},
		{intent.ReturnItem, "Sure Sam, I’ve initiated a return for your shoes."},
		{intent.PaymentInfo, "Sam, you can pay using UPI, card, or COD — whichever you prefer."},
		{intent.RefundRequest, "Sam, your refund for shoes (order #12345) has been requested and will be processed within 5-7 business days."},
		{intent.CancelOrder, "Okay Sam, I've submitted a cancellation request for order #12345."},
	}

	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Render(ctx, "sam", tt.intent, BaseReply(tt.intent)))
		})
	}
}

func TestRender_UnknownUserGetsGuest(t *testing.T) {
	p := New(newFake())
	got := p.Render(context.Background(), "stranger", intent.TrackOrder, "ignored")
	assert.Equal(t, "Hi Guest! Your order #0000 for item is currently being processed.", got)
}

func TestRender_PassthroughForOtherIntents(t *testing.T) {
	fake := newFake()
	p := New(fake)

	for _, in := range []intent.Intent{intent.Greeting, intent.Goodbye, intent.Thanks, intent.ShippingInfo, intent.ProductInfo, intent.Uncertain} {
		base := BaseReply(in)
		assert.Equal(t, base, p.Render(context.Background(), "sam", in, base))
	}
	assert.Zero(t, fake.calls)
}

func TestRender_NilProfiles(t *testing.T) {
	p := New(nil)
	got := p.Render(context.Background(), "sam", intent.CancelOrder, "")
	assert.Equal(t, "Okay Guest, I've submitted a cancellation request for order #0000.", got)
}

func TestBaseReply(t *testing.T) {
	assert.Equal(t, "Let me check your order status.", BaseReply(intent.TrackOrder))
	assert.Equal(t, DefaultReply, BaseReply(intent.Greeting))
	assert.Equal(t, DefaultReply, BaseReply(intent.Uncertain))
}
