package ai

import "github.com/princinho/sahoassist/models"

const basePrompt = "You are a helpful AI assistant for an e-commerce website. You help customers find products, resolve issues, and provide support. Be friendly, helpful, and concise in your responses."

var contextPrompts = map[models.ChatContext]string{
	models.ContextProductSearch: " Focus on helping the user find products by understanding their needs and guiding them through the search process. If you cannot find specific products, help them identify the right category to contact vendors.",
	models.ContextOrderSupport:  " Focus on helping with order-related issues like tracking, returns, modifications, and delivery problems. Ask for order numbers when relevant and provide clear next steps.",
	models.ContextSiteProblem:   " Focus on troubleshooting website issues, technical problems, and user experience issues. Provide clear troubleshooting steps and escalation paths when needed.",
	models.ContextGeneral:       " Provide general customer support and try to understand what the customer needs help with.",
}

// SystemPrompt returns the prompt for c; unknown contexts use the general one.
func SystemPrompt(c models.ChatContext) string {
	suffix, ok := contextPrompts[c]
	if !ok {
		suffix = contextPrompts[models.ContextGeneral]
	}
	return basePrompt + suffix
}

const imageSystemPrompt = "You are a product identification expert. Analyze the image and provide a detailed description of the product, potential categories, and key features that would help in product search."

const imagePrompt = imageSystemPrompt + "\n\nPlease analyze this product image and provide: 1) A detailed description, 2) Potential product categories on a single line starting with \"Categories:\" separated by commas, 3) Key identifying features."

const categorySystemPrompt = "You are a product categorization expert. Based on the user's product description, suggest the most relevant product categories. Return only a JSON array of category objects with 'name' and 'slug' properties. Maximum 5 categories."

const pingPrompt = "Reply with the single word: ok"

// buildMessages assembles the system prompt, the last maxTurns exchanges and the new message.
func buildMessages(message string, c models.ChatContext, history []models.ChatTurn, maxTurns int) []Message {
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	msgs := make([]Message, 0, 2+2*len(history))
	msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt(c)})
	for _, turn := range history {
		if turn.User != "" {
			msgs = append(msgs, Message{Role: RoleUser, Content: turn.User})
		}
		if turn.Assistant != "" {
			msgs = append(msgs, Message{Role: RoleAssistant, Content: turn.Assistant})
		}
	}
	return append(msgs, Message{Role: RoleUser, Content: message})
}
