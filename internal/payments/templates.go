package payments

import (
	"fmt"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
)

// confirmationMessage is the user-facing copy for a confirmed payment.
type confirmationMessage struct {
	noticeType string
	title      string
	message    string
	subject    string
	body       string
}

func confirmationCopy(receipt Receipt) confirmationMessage {
	amount := receipt.Payment.Amount.StringFixed(2) + " " + receipt.Payment.Currency
	switch receipt.Payment.PaymentType {
	case models.PaymentTypeDonation:
		return confirmationMessage{
			noticeType: "donation",
			title:      "Donation received",
			message:    fmt.Sprintf("Thank you for your gift of %s.", amount),
			subject:    "Thank you for your donation",
			body:       fmt.Sprintf("We received your donation of %s. Reference: %s.\n\nThank you for supporting Christ Life Ministries.", amount, receipt.Payment.ID),
		}
	case models.PaymentTypeApplication:
		return confirmationMessage{
			noticeType: "payment",
			title:      "Application fee paid",
			message:    fmt.Sprintf("Your application fee of %s has been received. Your application is now with our team.", amount),
			subject:    "Application fee received",
			body:       fmt.Sprintf("We received your application fee of %s. Reference: %s.\n\nWe will let you know once your application has been reviewed.", amount, receipt.Payment.ID),
		}
	case models.PaymentTypeEventRegistration, models.PaymentTypeRegistration:
		ticket := ""
		if receipt.TicketNumber != "" {
			ticket = " Your ticket number is " + receipt.TicketNumber + "."
		}
		return confirmationMessage{
			noticeType: "event",
			title:      "Registration confirmed",
			message:    fmt.Sprintf("Your registration payment of %s is confirmed.%s", amount, ticket),
			subject:    "Your event registration is confirmed",
			body:       fmt.Sprintf("We received your payment of %s. Reference: %s.%s", amount, receipt.Payment.ID, ticket),
		}
	default:
		return confirmationMessage{
			noticeType: "payment",
			title:      "Payment confirmed",
			message:    fmt.Sprintf("Your payment of %s is confirmed.", amount),
			subject:    "Payment confirmed",
			body:       fmt.Sprintf("We received your payment of %s. Reference: %s.", amount, receipt.Payment.ID),
		}
	}
}

func confirmationIntents(receipt Receipt, recipientEmail string) []outbox.Intent {
	text := confirmationCopy(receipt)
	intents := []outbox.Intent{outbox.NotifyUser(outbox.Notice{
		UserID:    receipt.Payment.UserID,
		Type:      text.noticeType,
		Title:     text.title,
		Message:   text.message,
		RelatedID: receipt.Payment.ID,
	})}
	if recipientEmail != "" {
		intents = append(intents, outbox.SendEmail(outbox.Email{
			To:      recipientEmail,
			Subject: text.subject,
			Body:    text.body,
		}))
	}
	return intents
}
