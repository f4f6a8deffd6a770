package receipt

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/domain"
)

// BuildPrompt embeds the caller's catalogs so the model answers with ids
// that already exist. Both catalogs must be non-empty.
func BuildPrompt(categories, sources []domain.CatalogEntry, today civil.Date) string {
	var b strings.Builder

	b.WriteString("You read photos of purchase receipts and extract one transaction.\n\n")
	b.WriteString("Return a single JSON object with EXACTLY these keys:\n")
	b.WriteString("- \"amount\": number, the total paid, positive, two decimal places\n")
	b.WriteString("- \"date\": string, the purchase date as \"YYYY-MM-DD\"\n")
	b.WriteString("- \"category\": string, one id from the Categories list\n")
	b.WriteString("- \"payment_source\": string, one id from the Payment sources list\n")
	b.WriteString("- \"notes\": string or null, the merchant name and a short description\n\n")

	writeCatalog(&b, "Categories", categories)
	writeCatalog(&b, "Payment sources", sources)

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- If the category cannot be determined, use %q.\n", categories[0].ID)
	fmt.Fprintf(&b, "- If the payment source cannot be determined, use %q.\n", sources[0].ID)
	fmt.Fprintf(&b, "- If the date cannot be read, use %q.\n", today.String())
	b.WriteString("- If there is nothing worth noting, set \"notes\" to null.\n")
	b.WriteString("- Use only ids from the lists above, never names.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}

func writeCatalog(b *strings.Builder, title string, entries []domain.CatalogEntry) {
	b.WriteString(title + " (id: name):\n")
	for _, e := range entries {
		fmt.Fprintf(b, "  - %s: %s\n", e.ID, e.Name)
	}
	b.WriteString("\n")
}
