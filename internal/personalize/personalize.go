package personalize

import (
	"context"
	"fmt"

	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/profile"
)

const DefaultReply = "I'm not fully sure, but I'll try to help."

var baseReplies = map[intent.Intent]string{
	intent.Thanks:        "You're welcome! Is there anything else I can help with?",
	intent.TrackOrder:    "Let me check your order status.",
	intent.ReturnItem:    "I can help you return your item.",
	intent.PaymentInfo:   "Sure! Here are the payment options.",
	intent.RefundRequest: "I can help you with your refund.",
	intent.CancelOrder:   "I can help you cancel your order.",
	intent.ShippingInfo:  "Standard shipping takes 3-5 business days, and express delivery arrives in 1-2 days.",
	intent.ProductInfo:   "Happy to help with product details. Which item are you looking at?",
}

// BaseReply is the generic reply for an intent before personalization.
func BaseReply(in intent.Intent) string {
	if r, ok := baseReplies[in]; ok {
		return r
	}
	return DefaultReply
}

// ProfileLookup resolves a user's profile and never fails.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) profile.Profile
}

type Personalizer struct {
	profiles ProfileLookup
}

func New(profiles ProfileLookup) *Personalizer {
	return &Personalizer{profiles: profiles}
}

// Render rewrites base for personalized intents using the user's profile.
// Every other intent gets base back unchanged, without a profile lookup.
func (p *Personalizer) Render(ctx context.Context, userID string, in intent.Intent, base string) string {
	if !in.IsPersonalized() {
		return base
	}

	prof := profile.Guest()
	if p.profiles != nil {
		prof = p.profiles.Lookup(ctx, userID)
	}
	return render(in, prof, base)
}

func render(in intent.Intent, prof profile.Profile, base string) string {
	name, product, order := prof.Name, prof.PreferredProduct, prof.RecentOrder

	switch in {
	case intent.TrackOrder:
		return fmt.Sprintf("Hi %s! Your order %s for %s is currently being processed.", name, order, product)
	case intent.ReturnItem:
		return fmt.Sprintf("Sure %s, I’ve initiated a return for your %s.", name, product)
	case intent.PaymentInfo:
		return fmt.Sprintf("%s, you can pay using UPI, card, or COD — whichever you prefer.", name)
	case intent.RefundRequest:
		return fmt.Sprintf("%s, your refund for %s (order %s) has been requested and will be processed within 5-7 business days.", name, product, order)
	case intent.CancelOrder:
		return fmt.Sprintf("Okay %s, I've submitted a cancellation request for order %s.", name, order)
	default:
		return base
	}
}
