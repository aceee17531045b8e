// prompts.go - Prompt templates for extraction, price parsing and transcription
package ai

import (
	"fmt"
	"strings"
)

// BuildExtractionSystemInstruction renders the catalog and customer hints into the system prompt
func BuildExtractionSystemInstruction(catalogText string, customerNames []string) string {
	var sb strings.Builder
	sb.WriteString("You are an invoice extraction assistant for small Indian shops. ")
	sb.WriteString("Extract billing information from voice note transcriptions.\n")

	if catalogText != "" {
		sb.WriteString("\n")
		sb.WriteString(catalogText)
	}
	if len(customerNames) > 0 {
		if len(customerNames) > MaxCustomerHints {
			customerNames = customerNames[:MaxCustomerHints]
		}
		fmt.Fprintf(&sb, "\nKnown customers: %s\n", strings.Join(customerNames, ", "))
	}

	sb.WriteString(extractionRules)
	return sb.String()
}

const extractionRules = `
Return a JSON object:
{
  "customer_name": "EXACT customer name if mentioned, otherwise 'Walk-in Customer'",
  "items": [
    {"name": "item name (singular)", "quantity": number, "price": null}
  ]
}

CUSTOMER NAME:
1. Look for "to <name>", "for <name>", "sold to <name>", "customer <name>".
2. Copy the name exactly as spoken, even if it looks misspelled. Do not correct it to a known customer.
3. No name mentioned: "Walk-in Customer".

ITEMS AND PRICES:
1. price is null unless the speaker states a price for that item. Never take a price from the catalog and never guess one.
2. Item names are singular and lower case ("rices" -> "rice", "bags of rice" -> "rice").
3. quantity is a positive number; fractions are allowed ("half kilo dal" -> 0.5).

Examples:
- "sold 2 rice to Rajesh Kumar" -> {"customer_name": "Rajesh Kumar", "items": [{"name": "rice", "quantity": 2, "price": null}]}
- "sold 20 rice and five almond to peyush" -> {"customer_name": "peyush", "items": [{"name": "rice", "quantity": 20, "price": null}, {"name": "almond", "quantity": 5, "price": null}]}
- "two rices for Amit" -> {"customer_name": "Amit", "items": [{"name": "rice", "quantity": 2, "price": null}]}
- "sold 2 rice at 600 each" -> {"customer_name": "Walk-in Customer", "items": [{"name": "rice", "quantity": 2, "price": 600}]}
`

// BuildExtractionUserPrompt wraps the transcript
func BuildExtractionUserPrompt(transcript string) string {
	return "Extract invoice items from this voice note transcription: " + transcript
}

// PriceParsingSystemInstruction asks for the numbers of a price reply in order
const PriceParsingSystemInstruction = `Extract prices from the shopkeeper's text reply.

Return JSON: {"prices": [100, 200]} for several items or {"prices": [150]} for one.
Keep the numbers in the order they appear in the text. Words such as "hundred" or "सौ" are numbers.
Ignore quantities that are clearly not prices. If there is no price at all return {"prices": []}.`

// TranscriptionPrompt asks for a verbatim transcript of a voice note
const TranscriptionPrompt = `Transcribe this voice note exactly as spoken. It is a shopkeeper describing a sale, in English, Hindi or a mix of both.
Write numbers as digits. Return only the transcript text with no commentary.
If there is no speech, return an empty response.`
