package services

import (
	"regexp"
	"strings"

	"github.com/princinho/sahoassist/models"
)

// orderPatterns are tried most specific first.
var orderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)order\s*#?\s*(\d+)`),
	regexp.MustCompile(`(?i)order\s*number\s*:?\s*(\d+)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(\d{4,})`),
}

// ExtractOrderNumber returns the first order number found in message, or "".
func ExtractOrderNumber(message string) string {
	for _, re := range orderPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	return ""
}

var siteProblemKeywords = []struct {
	category string
	words    []string
}{
	{models.TicketCategoryLogin, []string{"login", "password", "sign in", "log in", "account", "username"}},
	{models.TicketCategoryPayment, []string{"payment", "checkout", "card", "billing", "transaction", "pay"}},
	{models.TicketCategoryPageError, []string{"error", "404", "500", "page", "broken", "not found", "loading"}},
	{models.TicketCategoryPerformance, []string{"slow", "loading", "timeout", "speed", "performance", "lag"}},
}

// CategorizeSiteProblem maps a message to a ticket category; first match wins.
func CategorizeSiteProblem(message string) string {
	lower := strings.ToLower(message)
	for _, k := range siteProblemKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.category
			}
		}
	}
	return models.TicketCategoryGeneral
}

var siteProblemReplies = map[string]string{
	models.TicketCategoryLogin: "I understand you're having trouble logging in. Here are some quick solutions:\n\n" +
		"**Password Reset:**\n" +
		"1. Go to the login page\n" +
		"2. Click 'Lost Password'\n" +
		"3. Enter your email address\n" +
		"4. Check your email for reset instructions\n\n" +
		"**Common Issues:**\n" +
		"• Make sure Caps Lock is off\n" +
		"• Try clearing your browser cache\n" +
		"• Disable browser password managers temporarily\n\n" +
		"If you're still having trouble, I can create a support ticket for our technical team to help you directly.",
	models.TicketCategoryPayment: "I'm here to help with your payment issue. Let me provide some immediate assistance:\n\n" +
		"**Common Payment Solutions:**\n" +
		"• Try a different payment method\n" +
		"• Clear your browser cache and cookies\n" +
		"• Ensure your billing address matches your card\n" +
		"• Check that your card hasn't expired\n\n" +
		"**If payment was declined:**\n" +
		"• Contact your bank to ensure the transaction isn't blocked\n" +
		"• Try using a different browser\n\n" +
		"Would you like me to connect you with our payment support team for further assistance?",
	models.TicketCategoryPageError: "I'm sorry you're experiencing page errors. Let's try to resolve this:\n\n" +
		"**Quick Fixes:**\n" +
		"1. **Refresh the page** - Press F5 or Ctrl+R\n" +
		"2. **Clear browser cache** - This often fixes loading issues\n" +
		"3. **Try incognito/private mode** - This helps identify browser conflicts\n" +
		"4. **Check your internet connection**\n\n" +
		"**Still not working?**\n" +
		"Please share:\n" +
		"• The exact page URL where you're seeing the error\n" +
		"• Any error message displayed\n" +
		"• Your browser type (Chrome, Firefox, etc.)\n\n" +
		"I'll make sure our technical team investigates this immediately.",
	models.TicketCategoryPerformance: "I understand the site is running slowly for you. Let's improve your experience:\n\n" +
		"**Immediate Solutions:**\n" +
		"• **Clear browser cache** - This often speeds things up significantly\n" +
		"• **Close unused browser tabs** - Frees up memory\n" +
		"• **Check your internet speed** - Run a speed test\n" +
		"• **Try a different browser** - Sometimes switching helps\n\n" +
		"**On Mobile?**\n" +
		"• Close other apps running in the background\n" +
		"• Switch from WiFi to mobile data (or vice versa)\n\n" +
		"I've also notified our technical team about potential performance issues. Is there a specific page that's particularly slow?",
	models.TicketCategoryGeneral: "I'm sorry you're experiencing issues with our site. I want to help resolve this quickly!\n\n" +
		"To provide the best assistance, could you please share:\n\n" +
		"• **What specific problem** you're encountering\n" +
		"• **Which page or feature** isn't working\n" +
		"• **Any error messages** you're seeing\n" +
		"• **Your device type** (computer, phone, tablet)\n" +
		"• **Your browser** (Chrome, Safari, Firefox, etc.)\n\n" +
		"In the meantime, try:\n" +
		"1. Refreshing the page\n" +
		"2. Clearing your browser cache\n" +
		"3. Trying a different browser\n\n" +
		"I'm here to help get this sorted out for you!",
}

const requestOrderDetailsReply = "I'd be happy to help you with your order! To provide the most accurate information, could you please share:\n\n" +
	"• Your order number (usually starts with # followed by numbers)\n" +
	"• The email address used for the order\n" +
	"• Approximate order date\n\n" +
	"What specific information do you need about your order?"

func orderReferenceReply(number string) string {
	return "I found your order reference #" + number + ". Let me connect you with our support team who can provide specific details about your order status, shipping, or any other concerns you may have."
}

func orderNotFoundReply(number string) string {
	return "I couldn't find an order with number #" + number + ". Please double-check the order number or contact our support team for assistance."
}

var suggestedResponses = []struct {
	words []string
	text  string
}{
	{[]string{"order", "shipping"}, "Thank you for contacting us about your order. Let me check the status for you right away..."},
	{[]string{"refund", "return"}, "I understand you'd like to request a refund. I'll be happy to help you with this process..."},
	{[]string{"error", "bug"}, "I'm sorry to hear you're experiencing technical difficulties. Let me help you resolve this..."},
	{[]string{"account", "login"}, "I can help you with your account issue. Let me look into this for you..."},
}

const generalInquiryResponse = "Thank you for reaching out. I'll make sure to address all your questions..."

// SuggestedResponses returns canned agent replies matching the ticket content.
func SuggestedResponses(content string) []string {
	lower := strings.ToLower(content)
	out := []string{}
	for _, s := range suggestedResponses {
		for _, w := range s.words {
			if strings.Contains(lower, w) {
				out = append(out, s.text)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, generalInquiryResponse)
	}
	return out
}
