// messages.go - Bot replies and invoice labels in English and Hindi

package conversation

import (
	"fmt"
	"strings"
)

// Messages is the reply vocabulary of one language
type Messages struct {
	Processing       string
	AskPrice         string // %[1]s missing items, %[2]s first item
	PriceUnavailable string // %s missing items
	NeedAllPrices    string
	PriceNotParsed   string
	Welcome          string
	Error            string
	Help             string
	RecentInvoices   string
	NoInvoices       string
	Customers        string
	NoCustomers      string
	LanguageChanged  string
	OnlyVoice        string
	PaymentReceived  string // %s invoice number
}

var messages = map[string]Messages{
	"en": {
		Processing:       "🎤 Processing your voice message...",
		AskPrice:         "Almost done! 📝\n\nWhat's the price for: *%[1]s*?\n\nJust reply with the price(s).\nExample: \"100\" or \"%[2]s is 100 rupees\"",
		PriceUnavailable: "⚠️ Price not available for: %s\n\nPlease add these products to your catalog first or mention the price in your voice message.",
		NeedAllPrices:    "Please provide prices for all items.",
		PriceNotParsed:   "Couldn't understand the price. Please try again with just numbers.",
		Welcome:          "Welcome to VoiceBill! 🎤\n\nSend me a voice message describing your sale:\ne.g., 'Sold 2 bags of rice at 500 rupees each'\n\nI'll automatically generate an invoice for you!",
		Error:            "Sorry, I encountered an error. Please try again.",
		Help:             "Welcome to VoiceBill! 🎤\n\nSend a voice message with your sale details.\n\nCommands:\n• \"help\" - Show this message\n• \"invoice\" - View recent invoices\n• \"customers\" - View customers\n• \"language hindi\" - Switch to Hindi",
		RecentInvoices:   "Your recent invoices:\n\n",
		NoInvoices:       "No invoices yet. Send a voice message to create one!",
		Customers:        "Your customers:\n\n",
		NoCustomers:      "No customers yet. Add them from the dashboard or mention a name in your voice message.",
		LanguageChanged:  "✅ Language changed to English. I'll now respond in English.",
		OnlyVoice:        "📎 File received, but I only process voice messages.",
		PaymentReceived:  "✅ Payment received for invoice %s. Thank you!",
	},
	"hi": {
		Processing:       "🎤 आपका वॉयस संदेश प्रोसेस हो रहा है...",
		AskPrice:         "लगभग पूरा! 📝\n\n*%[1]s* की कीमत क्या है?\n\nकेवल कीमत के साथ उत्तर दें।\nउदाहरण: \"100\" या \"%[2]s 100 रुपये है\"",
		PriceUnavailable: "⚠️ इनकी कीमत उपलब्ध नहीं है: %s\n\nकृपया पहले इन उत्पादों को अपने कैटलॉग में जोड़ें या वॉयस संदेश में कीमत बताएं।",
		NeedAllPrices:    "कृपया सभी वस्तुओं की कीमत बताएं।",
		PriceNotParsed:   "कीमत समझ नहीं आई। कृपया केवल अंकों के साथ फिर से भेजें।",
		Welcome:          "VoiceBill में आपका स्वागत है! 🎤\n\nअपनी बिक्री का विवरण देते हुए वॉयस संदेश भेजें:\nजैसे: '2 बैग चावल 500 रुपये प्रत्येक में बेचे'\n\nमैं स्वचालित रूप से चालान बना दूंगा!",
		Error:            "क्षमा करें, एक त्रुटि हुई। कृपया पुनः प्रयास करें।",
		Help:             "VoiceBill में आपका स्वागत है! 🎤\n\nअपनी बिक्री विवरण के साथ वॉयस संदेश भेजें।\n\nकमांड:\n• \"help\" - यह संदेश दिखाएं\n• \"invoice\" - हाल के चालान देखें\n• \"customers\" - ग्राहक देखें\n• \"language english\" - अंग्रेजी में बदलें",
		RecentInvoices:   "आपके हाल के चालान:\n\n",
		NoInvoices:       "अभी तक कोई चालान नहीं। वॉयस संदेश भेजकर बनाएं!",
		Customers:        "आपके ग्राहक:\n\n",
		NoCustomers:      "अभी तक कोई ग्राहक नहीं। डैशबोर्ड से जोड़ें या वॉयस संदेश में नाम बताएं।",
		LanguageChanged:  "✅ भाषा हिंदी में बदल गई। अब मैं हिंदी में जवाब दूंगा।",
		OnlyVoice:        "📎 फ़ाइल मिली, लेकिन मैं केवल वॉयस संदेश प्रोसेस करता हूं।",
		PaymentReceived:  "✅ चालान %s का भुगतान प्राप्त हुआ। धन्यवाद!",
	},
}

// For returns the vocabulary of lang, English when unknown
func For(lang string) Messages {
	if m, ok := messages[strings.ToLower(lang)]; ok {
		return m
	}
	return messages["en"]
}

var invoiceLabels = map[string]map[string]string{
	"en": {
		"invoice":        "INVOICE",
		"invoice_number": "Invoice Number",
		"date":           "Date",
		"customer":       "Customer",
		"email":          "Email",
		"phone":          "Phone",
		"items":          "ITEMS",
		"quantity":       "Quantity",
		"subtotal":       "Subtotal",
		"tax":            "Tax",
		"grand_total":    "TOTAL",
		"amount_paid":    "Amount Paid",
		"amount_due":     "Amount Due",
		"payment_due":    "Payment Due: On delivery",
		"thank_you":      "Thank you for your business!",
		"download_pdf":   "Download PDF Invoice",
		"pay_now":        "Pay Now (UPI/Cards/Net Banking)",
	},
	"hi": {
		"invoice":        "चालान",
		"invoice_number": "चालान संख्या",
		"date":           "तारीख",
		"customer":       "ग्राहक",
		"email":          "ईमेल",
		"phone":          "फोन",
		"items":          "वस्तुएं",
		"quantity":       "मात्रा",
		"subtotal":       "उप-योग",
		"tax":            "कर",
		"grand_total":    "कुल योग",
		"amount_paid":    "भुगतान राशि",
		"amount_due":     "बकाया राशि",
		"payment_due":    "भुगतान: डिलीवरी पर",
		"thank_you":      "आपके व्यापार के लिए धन्यवाद!",
		"download_pdf":   "PDF चालान डाउनलोड करें",
		"pay_now":        "अभी भुगतान करें (UPI/कार्ड/नेट बैंकिंग)",
	},
}

// label translates an invoice label, falling back to English and then the key
func label(key, lang string) string {
	if l, ok := invoiceLabels[strings.ToLower(lang)]; ok {
		if s, ok := l[key]; ok {
			return s
		}
	}
	if s, ok := invoiceLabels["en"][key]; ok {
		return s
	}
	return key
}

// PaymentReceivedMessage is the chat notice sent to the shop once an invoice is paid
func PaymentReceivedMessage(lang, invoiceNumber string) string {
	return fmt.Sprintf(For(lang).PaymentReceived, invoiceNumber)
}
