package notify

import (
	"fmt"
	"html"

	"marketplace/internal/events"
)

// BookingCreatedMessage tells the provider about a new request.
func BookingCreatedMessage(p events.BookingEventPayload) Message {
	subject := "New booking request: " + p.ListingTitle
	text := fmt.Sprintf("Hello %s,\n\n%s requested \"%s\" on %s.\nOpen your dashboard to accept or reject the booking.\n",
		p.ProviderName, p.CustomerName, p.ListingTitle, p.BookingDate)
	body := fmt.Sprintf("<p>Hello %s,</p><p><b>%s</b> requested <b>%s</b> on <b>%s</b>.</p><p>Open your dashboard to accept or reject the booking.</p>",
		html.EscapeString(p.ProviderName),
		html.EscapeString(p.CustomerName),
		html.EscapeString(p.ListingTitle),
		html.EscapeString(p.BookingDate))

	return Message{To: p.ProviderEmail, Subject: subject, Text: text, HTML: body}
}

// BookingStatusMessage tells the customer their booking was decided.
func BookingStatusMessage(p events.BookingEventPayload) Message {
	subject := fmt.Sprintf("Booking %s: %s", p.Status, p.ListingTitle)
	text := fmt.Sprintf("Hello %s,\n\nYour booking for \"%s\" on %s is now %s.\n",
		p.CustomerName, p.ListingTitle, p.BookingDate, p.Status)
	body := fmt.Sprintf("<p>Hello %s,</p><p>Your booking for <b>%s</b> on <b>%s</b> is now <b>%s</b>.</p>",
		html.EscapeString(p.CustomerName),
		html.EscapeString(p.ListingTitle),
		html.EscapeString(p.BookingDate),
		html.EscapeString(p.Status))

	return Message{To: p.CustomerEmail, Subject: subject, Text: text, HTML: body}
}
