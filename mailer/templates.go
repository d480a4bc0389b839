package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const dateLayout = "January 2, 2006 at 3:04 PM"

var templates = map[string]*template.Template{}

func init() {
	for _, name := range []string{
		"vendor_request",
		"customer_confirmation",
		"request_completed",
		"request_cancelled",
		"ticket_admin",
		"ticket_customer",
	} {
		templates[name] = template.Must(template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

// Site identifies the storefront in every email.
type Site struct {
	SiteName string
	SiteURL  string
}

type VendorRequestData struct {
	Site
	VendorName    string
	Category      string
	Description   string
	RequestNumber string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ResponseURL   string
	Date          string
	ExpiresAt     string
}

type CustomerConfirmationData struct {
	Site
	CustomerName  string
	RequestNumber string
	Category      string
	Description   string
	VendorsCount  int
	Date          string
}

// RequestClosedData feeds both the completion and the cancellation email.
type RequestClosedData struct {
	Site
	CustomerName  string
	RequestNumber string
	Category      string
	Description   string
	Notes         string
	Date          string
}

type TicketData struct {
	Site
	TicketNumber  string
	CustomerName  string
	CustomerEmail string
	Category      string
	Priority      string
	Subject       string
	Message       string
	Date          string
	Overdue       string
	Escalated     bool
	Resolved      bool
}

// FormatDate renders t the way every email shows dates.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func render(name string, data any) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func VendorRequest(to, replyTo string, d VendorRequestData) (Message, error) {
	body, err := render("vendor_request", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] New Product Request - %s", d.SiteName, d.Category),
		HTMLBody: body,
		ReplyTo:  replyTo,
	}, nil
}

func CustomerConfirmation(to string, d CustomerConfirmationData) (Message, error) {
	body, err := render("customer_confirmation", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] Your Product Request Has Been Sent", d.SiteName),
		HTMLBody: body,
	}, nil
}

func RequestCompleted(to string, d RequestClosedData) (Message, error) {
	body, err := render("request_completed", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] Your Product Request Has Been Completed", d.SiteName),
		HTMLBody: body,
	}, nil
}

func RequestCancelled(to string, d RequestClosedData) (Message, error) {
	body, err := render("request_cancelled", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] Your Product Request Has Been Cancelled", d.SiteName),
		HTMLBody: body,
	}, nil
}

func TicketAdmin(to string, d TicketData) (Message, error) {
	body, err := render("ticket_admin", d)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("[%s] New Support Ticket: %s", d.SiteName, d.TicketNumber)
	if d.Escalated {
		subject = fmt.Sprintf("[URGENT] Overdue Ticket: %s", d.TicketNumber)
	}
	return Message{To: to, Subject: subject, HTMLBody: body, ReplyTo: d.CustomerEmail}, nil
}

func TicketCustomer(to string, d TicketData) (Message, error) {
	body, err := render("ticket_customer", d)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("[%s] Support Ticket Created: %s", d.SiteName, d.TicketNumber)
	if d.Resolved {
		subject = fmt.Sprintf("[%s] Ticket Resolved: %s", d.SiteName, d.TicketNumber)
	}
	return Message{To: to, Subject: subject, HTMLBody: body}, nil
}
