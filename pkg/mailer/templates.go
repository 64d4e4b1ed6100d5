package mailer

import (
	"fmt"
	"strings"

	"betihari-backend/pkg/models"
)

const signature = "\n\nWith gratitude,\nBeti Hari Society"

// Welcome greets a newly registered community member.
func Welcome(req models.CommunityMemberRequest) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", strings.TrimSpace(req.FirstName))
	b.WriteString("Thank you for joining the Beti Hari Society community. ")
	b.WriteString("We will keep you up to date with stories from the girls, teachers and families we work with.")
	b.WriteString(signature)
	return Message{
		To:      []string{models.NormalizeEmail(req.Email)},
		Subject: "Welcome to the Beti Hari Society community",
		Body:    b.String(),
	}
}

// ThankYou acknowledges a completed donation or membership.
func ThankYou(email, name string, amountCents int64, membership bool) Message {
	if name = strings.TrimSpace(name); name == "" {
		name = "friend"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	if membership {
		b.WriteString("Thank you for becoming a member of Beti Hari Society. Your support helps keep girls in school.")
	} else {
		fmt.Fprintf(&b, "Thank you for your donation of %s. Your gift helps keep girls in school.", FormatDollars(amountCents))
	}
	b.WriteString(signature)

	subject := "Thank you for your donation"
	if membership {
		subject = "Thank you for your membership"
	}
	return Message{To: []string{models.NormalizeEmail(email)}, Subject: subject, Body: b.String()}
}

// Contact forwards a contact form submission to the society inbox.
func Contact(inbox string, req models.ContactRequest) Message {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Website enquiry"
	}
	body := fmt.Sprintf("From: %s <%s>\n\n%s", req.Name, req.Email, req.Message)
	return Message{
		To:      []string{inbox},
		Subject: "[Contact] " + subject,
		Body:    body,
		ReplyTo: req.Email,
	}
}
